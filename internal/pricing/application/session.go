package application

import (
	"context"
	"errors"
	"io"
	"time"

	pricing "broker-pricing/internal/pricing/domain"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("pricing session: not found")
	// ErrMeterNotFound is returned when editing a meter the session does not hold.
	ErrMeterNotFound = errors.New("pricing session: meter not found")
	// ErrNilSession is returned when saving a nil session.
	ErrNilSession = errors.New("pricing session: nil session")
	// ErrSheetNotFound is returned when the workbook has no sheet for the pricing category.
	ErrSheetNotFound = errors.New("pricing session: sheet not found")
)

// Session is one user's imported tender with its editable uplift grid.
type Session struct {
	ID          string                 `json:"id"`
	Source      string                 `json:"source"`
	Category    string                 `json:"category"`
	CompanyName string                 `json:"company_name"`
	CompanyReg  string                 `json:"company_reg"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Records     []*pricing.MeterRecord `json:"records"`
	// Report holds the import warnings.
	Report Report `json:"report"`
}

// Record returns the record for a meter id.
func (s *Session) Record(meterID string) (*pricing.MeterRecord, bool) {
	for _, rec := range s.Records {
		if rec.MeterID == meterID {
			return rec, true
		}
	}
	return nil, false
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Records = make([]*pricing.MeterRecord, len(s.Records))
	for i, rec := range s.Records {
		out.Records[i] = rec.Clone()
	}
	out.Report = Report{Warnings: append([]Warning(nil), s.Report.Warnings...)}
	return &out
}

// SessionRepository stores sessions between requests.
type SessionRepository interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// TenderReader parses one pricing category sheet of a supplier workbook.
type TenderReader interface {
	ReadSheet(ctx context.Context, workbook io.Reader, sheet string) (pricing.TariffSheet, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
