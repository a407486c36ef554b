package application

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pricing "broker-pricing/internal/pricing/domain"
)

type stubReader struct {
	sheet pricing.TariffSheet
	err   error
	asked string
}

func (s *stubReader) ReadSheet(_ context.Context, _ io.Reader, sheet string) (pricing.TariffSheet, error) {
	s.asked = sheet
	return s.sheet, s.err
}

type stubRepo struct {
	mu   sync.Mutex
	data map[string]*Session
}

func newStubRepo() *stubRepo { return &stubRepo{data: map[string]*Session{}} }

func (r *stubRepo) Save(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[s.ID] = s.Clone()
	return nil
}

func (r *stubRepo) Get(_ context.Context, id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (r *stubRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.data, id)
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, reader TenderReader, repo SessionRepository, opts ...Option) *Service {
	t.Helper()
	calc, err := pricing.NewTACCalculator(nil, pricing.UpliftAdditive, pricing.LossFactors{})
	require.NoError(t, err)
	resolver, err := pricing.NewTermResolver(pricing.TermPolicyCalendar)
	require.NoError(t, err)
	opts = append([]Option{
		WithClock(fixedClock{now: d(2026, 1, 5)}),
		WithIDGenerator(func() string { return "session-1" }),
	}, opts...)
	svc, err := NewService(repo, reader, calc, resolver, opts...)
	require.NoError(t, err)
	return svc
}

func importSample(t *testing.T, svc *Service) *Session {
	t.Helper()
	session, err := svc.Import(context.Background(), ImportRequest{
		Source:      "tender.xlsx",
		Workbook:    bytes.NewReader(nil),
		CompanyName: "Acme Ltd",
		CompanyReg:  "01234567",
	})
	require.NoError(t, err)
	return session
}

func TestNewService_RejectsNilDependencies(t *testing.T) {
	calc, err := pricing.NewTACCalculator(nil, "", pricing.LossFactors{})
	require.NoError(t, err)
	resolver, _ := pricing.NewTermResolver("")

	_, err = NewService(nil, &stubReader{}, calc, resolver)
	assert.Error(t, err)
	_, err = NewService(newStubRepo(), nil, calc, resolver)
	assert.Error(t, err)
	_, err = NewService(newStubRepo(), &stubReader{}, nil, resolver)
	assert.Error(t, err)
	_, err = NewService(newStubRepo(), &stubReader{}, calc, pricing.TermResolver{})
	assert.Error(t, err)
}

func TestNewService_DefaultClockIsUTC(t *testing.T) {
	calc, err := pricing.NewTACCalculator(nil, "", pricing.LossFactors{})
	require.NoError(t, err)
	resolver, err := pricing.NewTermResolver("")
	require.NoError(t, err)
	svc, err := NewService(newStubRepo(), &stubReader{sheet: sampleSheet()}, calc, resolver)
	require.NoError(t, err)

	session := importSample(t, svc)
	assert.Equal(t, time.UTC, session.CreatedAt.Location())
	assert.WithinDuration(t, time.Now(), session.CreatedAt, time.Minute)
	assert.NotEmpty(t, session.ID)
}

func TestService_ImportStoresSession(t *testing.T) {
	reader := &stubReader{sheet: sampleSheet()}
	repo := newStubRepo()
	svc := newTestService(t, reader, repo)

	session := importSample(t, svc)
	assert.Equal(t, "session-1", session.ID)
	assert.Equal(t, "Standard", reader.asked)
	assert.Equal(t, "Standard", session.Category)
	assert.Len(t, session.Records, 3)
	assert.Equal(t, d(2026, 1, 5), session.CreatedAt)

	stored, err := svc.Get(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Len(t, stored.Records, 3)
	assert.Equal(t, 2, len(stored.Report.Warnings))
}

func TestService_ImportMissingEACStoresNothing(t *testing.T) {
	sheet := sampleSheet()
	delete(sheet.Columns, pricing.FieldEAC)
	repo := newStubRepo()
	svc := newTestService(t, &stubReader{sheet: sheet}, repo)

	_, err := svc.Import(context.Background(), ImportRequest{Workbook: bytes.NewReader(nil), Sheet: "Green"})
	assert.ErrorIs(t, err, pricing.ErrMissingRequiredField)
	assert.Empty(t, repo.data)
}

func TestService_ImportPropagatesReaderError(t *testing.T) {
	svc := newTestService(t, &stubReader{err: ErrSheetNotFound}, newStubRepo())
	_, err := svc.Import(context.Background(), ImportRequest{Workbook: bytes.NewReader(nil), Sheet: "Gas"})
	assert.ErrorIs(t, err, ErrSheetNotFound)
}

func TestService_PriceRecomputesAfterEdits(t *testing.T) {
	svc := newTestService(t, &stubReader{sheet: sampleSheet()}, newStubRepo())
	importSample(t, svc)
	ctx := context.Background()

	out, _, err := svc.Price(ctx, "session-1")
	require.NoError(t, err)
	nhh, ok := out.Table("NHH")
	require.True(t, ok)
	costCol := indexOf(nhh.Columns, CostColumn(pricing.Term12))
	require.GreaterOrEqual(t, costCol, 0)
	assert.Equal(t, 1363.00, nhh.Rows[0][costCol])

	_, ignored, err := svc.ApplyUplifts(ctx, "session-1", []pricing.UpliftEntry{
		{MeterType: pricing.MeterTypeNHH, Component: "day", Term: pricing.Term12, Value: 1},
		{MeterType: pricing.MeterTypeNHH, Component: "broker fee", Value: 1},
	})
	require.NoError(t, err)
	require.Len(t, ignored, 1)

	out, _, err = svc.Price(ctx, "session-1")
	require.NoError(t, err)
	nhh, _ = out.Table("NHH")
	// day uplift of 1p on 5000 kWh adds £50
	assert.Equal(t, 1413.00, nhh.Rows[0][costCol])

	_, _, err = svc.EditMeterUplifts(ctx, "session-1", "A", []MeterUpliftEdit{
		{Term: pricing.Term12, Component: "standing_charge", Value: 10},
	})
	require.NoError(t, err)

	out, _, err = svc.Price(ctx, "session-1")
	require.NoError(t, err)
	nhh, _ = out.Table("NHH")
	assert.Equal(t, 1449.50, nhh.Rows[0][costCol])
	scCol := indexOf(nhh.Columns, RateColumn(pricing.ComponentStandingCharge, pricing.Term12))
	assert.Equal(t, 30.0, nhh.Rows[0][scCol])
}

func TestService_EditMeterUpliftsErrors(t *testing.T) {
	svc := newTestService(t, &stubReader{sheet: sampleSheet()}, newStubRepo())
	importSample(t, svc)
	ctx := context.Background()

	_, _, err := svc.EditMeterUplifts(ctx, "session-1", "nope", nil)
	assert.ErrorIs(t, err, ErrMeterNotFound)

	_, _, err = svc.EditMeterUplifts(ctx, "session-1", "A", []MeterUpliftEdit{{Term: pricing.Term36, Component: "day", Value: 1}})
	assert.ErrorIs(t, err, pricing.ErrTermNotPresent)

	_, _, err = svc.EditMeterUplifts(ctx, "missing", "A", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_DefaultUpliftsPrefillImport(t *testing.T) {
	var defaults pricing.UpliftSet
	require.NoError(t, defaults.Set(pricing.MeterTypeHH, pricing.ComponentMeteringCharge, pricing.AllTerms, 0.5))
	svc := newTestService(t, &stubReader{sheet: sampleSheet()}, newStubRepo(), WithDefaultUplifts(defaults))

	session := importSample(t, svc)
	rec, ok := session.Record("B")
	require.True(t, ok)
	b, _ := rec.Block(pricing.Term12)
	assert.Equal(t, 0.5, b.Uplift(pricing.ComponentMeteringCharge))
}

func TestService_Delete(t *testing.T) {
	svc := newTestService(t, &stubReader{sheet: sampleSheet()}, newStubRepo())
	importSample(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, "session-1"))
	_, err := svc.Get(ctx, "session-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_IgnoredUpliftsAreReported(t *testing.T) {
	svc := newTestService(t, &stubReader{sheet: sampleSheet()}, newStubRepo())
	importSample(t, svc)
	ctx := context.Background()
	entries := []pricing.UpliftEntry{
		{MeterType: pricing.MeterTypeNHH, Component: "day", Term: pricing.Term12, Value: 1},
		{MeterType: pricing.MeterTypeNHH, Component: "broker fee", Value: 1},
	}

	session, _, err := svc.ApplyUplifts(ctx, "session-1", entries)
	require.NoError(t, err)
	assert.Equal(t, 1, session.Report.Count(WarningIgnoredUplift))

	// reapplying replaces the set-wide warnings instead of piling them up
	session, _, err = svc.ApplyUplifts(ctx, "session-1", entries)
	require.NoError(t, err)
	assert.Equal(t, 1, session.Report.Count(WarningIgnoredUplift))

	session, ignored, err := svc.EditMeterUplifts(ctx, "session-1", "A", []MeterUpliftEdit{
		{Term: pricing.Term24, Component: "admin fee", Value: 5},
	})
	require.NoError(t, err)
	require.Len(t, ignored, 1)
	assert.Equal(t, 2, session.Report.Count(WarningIgnoredUplift))

	out, _, err := svc.Price(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Report.Count(WarningIgnoredUplift))
	var meterWarning Warning
	for _, w := range out.Report.Warnings {
		if w.Kind == WarningIgnoredUplift && w.MeterID == "A" {
			meterWarning = w
		}
	}
	assert.Equal(t, pricing.Term24, meterWarning.Term)
	assert.Contains(t, meterWarning.Detail, "admin fee")
}

func TestService_ConcurrentMeterEditsAreNotLost(t *testing.T) {
	svc := newTestService(t, &stubReader{sheet: sampleSheet()}, newStubRepo())
	importSample(t, svc)
	ctx := context.Background()

	components := []string{"standing_charge", "day", "night", "evening_weekend"}
	terms := []pricing.ContractTerm{pricing.Term12, pricing.Term24}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i, term := range terms {
		for j, component := range components {
			wg.Add(1)
			go func(term pricing.ContractTerm, component string, value float64) {
				defer wg.Done()
				_, _, err := svc.EditMeterUplifts(ctx, "session-1", "A", []MeterUpliftEdit{
					{Term: term, Component: component, Value: value},
				})
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}(term, component, float64(i*10+j+1))
		}
	}
	wg.Wait()
	require.Empty(t, errs)

	session, err := svc.Get(ctx, "session-1")
	require.NoError(t, err)
	rec, ok := session.Record("A")
	require.True(t, ok)
	for i, term := range terms {
		b, ok := rec.Block(term)
		require.True(t, ok)
		for j, name := range components {
			component, _ := pricing.ParseComponent(name)
			assert.Equal(t, float64(i*10+j+1), b.Uplift(component), fmt.Sprintf("%s %s", term.Suffix(), name))
		}
	}
}

func TestService_PriceScenarios(t *testing.T) {
	svc := newTestService(t, &stubReader{sheet: sampleSheet()}, newStubRepo())
	importSample(t, svc)
	ctx := context.Background()

	_, _, err := svc.ApplyUplifts(ctx, "session-1", []pricing.UpliftEntry{
		{MeterType: pricing.MeterTypeNHH, Component: "day", Term: pricing.Term12, Value: 1},
	})
	require.NoError(t, err)

	costs, err := svc.PriceScenarios(ctx, "session-1", "A", []Scenario{
		{Name: "half year", Term: pricing.Term12, ContractDays: 180, Consumption: map[string]float64{"day": 1000, "night": 500}},
		{Name: "long", Term: pricing.Term36, ContractDays: 1095, Consumption: map[string]float64{"day": 1000}},
		{Name: "typo", Term: pricing.Term12, ContractDays: 30, Consumption: map[string]float64{"peak": 10}},
	})
	require.NoError(t, err)
	require.Len(t, costs, 3)

	require.NotNil(t, costs[0].TotalCost)
	assert.Equal(t, 246.00, *costs[0].TotalCost)
	assert.Empty(t, costs[0].Error)
	assert.Equal(t, "half year", costs[0].Name)

	assert.Nil(t, costs[1].TotalCost)
	assert.Contains(t, costs[1].Error, "term not present")
	assert.Nil(t, costs[2].TotalCost)
	assert.Contains(t, costs[2].Error, "peak")

	_, err = svc.PriceScenarios(ctx, "session-1", "nope", nil)
	assert.ErrorIs(t, err, ErrMeterNotFound)
	_, err = svc.PriceScenarios(ctx, "missing", "A", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}
