package pricing

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ContractTerm is a contract length in months.
type ContractTerm int

const (
	Term12 ContractTerm = 12
	Term24 ContractTerm = 24
	Term36 ContractTerm = 36
)

// ContractTerms are the quotable terms in output order.
var ContractTerms = []ContractTerm{Term12, Term24, Term36}

// Valid reports whether the term is quotable.
func (t ContractTerm) Valid() bool {
	switch t {
	case Term12, Term24, Term36:
		return true
	}
	return false
}

// Suffix renders the term the way column headers carry it, e.g. "12m".
func (t ContractTerm) Suffix() string {
	return strconv.Itoa(int(t)) + "m"
}

// ParseContractTerm accepts "12", "12m" or "24 months" style values.
func ParseContractTerm(value string) (ContractTerm, error) {
	digits := make([]byte, 0, len(value))
	for i := 0; i < len(value); i++ {
		if value[i] >= '0' && value[i] <= '9' {
			digits = append(digits, value[i])
		} else if len(digits) > 0 {
			break
		}
	}
	n, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedContractTerm, value)
	}
	term := ContractTerm(n)
	if !term.Valid() {
		return 0, fmt.Errorf("%w: %d months", ErrUnsupportedContractTerm, n)
	}
	return term, nil
}

// parseTermValue reads a term as a user types it. Empty, "0" and "all" mean AllTerms.
func parseTermValue(value string) (ContractTerm, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "0", "all", "all terms":
		return AllTerms, nil
	}
	return ParseContractTerm(value)
}

// UnmarshalJSON accepts a month count or text such as "12m".
func (t *ContractTerm) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*t = ContractTerm(n)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("pricing: contract term: %w", err)
	}
	term, err := parseTermValue(text)
	if err != nil {
		return err
	}
	*t = term
	return nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (t *ContractTerm) UnmarshalYAML(node *yaml.Node) error {
	if node.ShortTag() == "!!int" {
		var n int
		if err := node.Decode(&n); err != nil {
			return err
		}
		*t = ContractTerm(n)
		return nil
	}
	term, err := parseTermValue(node.Value)
	if err != nil {
		return err
	}
	*t = term
	return nil
}

// TermPolicy selects how contract length is derived from dates.
type TermPolicy string

const (
	// TermPolicyCalendar counts calendar months. When the dates are not aligned
	// on the same day of month and the count misses a term by one month, the
	// day count decides (2024-01-01 to 2024-12-31 is 12).
	TermPolicyCalendar TermPolicy = "calendar"
	// TermPolicyCalendarStrict counts calendar months only.
	TermPolicyCalendarStrict TermPolicy = "calendar_strict"
	// TermPolicyDayCount rounds elapsed days to whole 365-day years.
	TermPolicyDayCount TermPolicy = "day_count"
)

// Valid reports whether the policy is known.
func (p TermPolicy) Valid() bool {
	switch p {
	case TermPolicyCalendar, TermPolicyCalendarStrict, TermPolicyDayCount:
		return true
	}
	return false
}

// TermResolver derives contract terms from start and end dates.
type TermResolver struct {
	Policy TermPolicy
}

// NewTermResolver constructs a resolver; an empty policy means calendar.
func NewTermResolver(policy TermPolicy) (TermResolver, error) {
	if policy == "" {
		policy = TermPolicyCalendar
	}
	if !policy.Valid() {
		return TermResolver{}, fmt.Errorf("pricing: unknown term policy %q", policy)
	}
	return TermResolver{Policy: policy}, nil
}

// Resolve returns the contract term between start and end. The error wraps
// ErrUnsupportedContractTerm when the length is not quotable, or
// ErrInvalidContractDates when the dates cannot describe a contract.
func (r TermResolver) Resolve(start, end time.Time) (ContractTerm, error) {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return 0, ErrInvalidContractDates
	}

	var months int
	switch r.Policy {
	case TermPolicyDayCount:
		months = DayCountMonths(start, end)
	case TermPolicyCalendarStrict:
		months = MonthsBetween(start, end)
	default:
		months = MonthsBetween(start, end)
		if !ContractTerm(months).Valid() && start.Day() != end.Day() {
			if counted := DayCountMonths(start, end); abs(counted-months) <= 1 {
				months = counted
			}
		}
	}

	term := ContractTerm(months)
	if !term.Valid() {
		return 0, fmt.Errorf("%w: %d months", ErrUnsupportedContractTerm, months)
	}
	return term, nil
}

// MonthsBetween counts calendar months from start to end, ignoring the day of month.
func MonthsBetween(start, end time.Time) int {
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
}

// DayCountMonths rounds elapsed days to whole 365-day years and returns months.
func DayCountMonths(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	days := e.Sub(s).Hours() / 24
	return int(math.Round(days/365)) * 12
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
