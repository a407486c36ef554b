package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"broker-pricing/internal/observability/metrics"
	pricing "broker-pricing/internal/pricing/domain"
)

// Service handles the pricing session use cases: import, uplift edits and pricing.
type Service struct {
	repo         SessionRepository
	reader       TenderReader
	calc         *pricing.TACCalculator
	resolver     pricing.TermResolver
	defaults     pricing.UpliftSet
	defaultSheet string
	logger       *zap.Logger
	clock        Clock
	newID        func() string
	locks        sessionLocks
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithDefaultUplifts pre-fills every imported session with the set.
func WithDefaultUplifts(set pricing.UpliftSet) Option {
	return func(s *Service) {
		s.defaults = set
	}
}

// WithDefaultSheet sets the pricing category used when an import names none.
func WithDefaultSheet(sheet string) Option {
	return func(s *Service) {
		if sheet != "" {
			s.defaultSheet = sheet
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService constructs the service.
func NewService(repo SessionRepository, reader TenderReader, calc *pricing.TACCalculator, resolver pricing.TermResolver, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("pricing service: nil repository")
	}
	if reader == nil {
		return nil, errors.New("pricing service: nil tender reader")
	}
	if calc == nil {
		return nil, errors.New("pricing service: nil calculator")
	}
	if !resolver.Policy.Valid() {
		return nil, fmt.Errorf("pricing service: invalid term policy %q", resolver.Policy)
	}
	s := &Service{
		repo:         repo,
		reader:       reader,
		calc:         calc,
		resolver:     resolver,
		defaultSheet: "Standard",
		logger:       zap.NewNop(),
		clock:        SystemClock{},
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ImportRequest carries an uploaded tender and the form inputs.
type ImportRequest struct {
	Source      string
	Workbook    io.Reader
	Sheet       string
	CompanyName string
	CompanyReg  string
}

// Import reads the tender sheet, pivots it and stores a new session. A missing
// required column fails the whole import and stores nothing.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*Session, error) {
	start := time.Now()
	session, err := s.importSession(ctx, req)
	switch {
	case err == nil:
		metrics.ObserveImport(metrics.ResultSuccess, len(session.Records), time.Since(start))
		for kind, n := range session.Report.counts() {
			metrics.AddRowsDropped(string(kind), n)
		}
	case errors.Is(err, pricing.ErrMissingRequiredField), errors.Is(err, ErrSheetNotFound):
		metrics.ObserveImport(metrics.ResultRejected, 0, time.Since(start))
	default:
		metrics.ObserveImport(metrics.ResultError, 0, time.Since(start))
	}
	return session, err
}

func (s *Service) importSession(ctx context.Context, req ImportRequest) (*Session, error) {
	if req.Workbook == nil {
		return nil, errors.New("pricing service: nil workbook")
	}
	sheetName := req.Sheet
	if sheetName == "" {
		sheetName = s.defaultSheet
	}

	sheet, err := s.reader.ReadSheet(ctx, req.Workbook, sheetName)
	if err != nil {
		return nil, err
	}
	pivot, err := BuildMeterRecords(sheet, PivotOptions{
		CompanyName: req.CompanyName,
		CompanyReg:  req.CompanyReg,
		Resolver:    s.resolver,
	})
	if err != nil {
		s.logger.Warn("tender import rejected",
			zap.String("source", req.Source),
			zap.String("sheet", sheet.Name),
			zap.Error(err))
		return nil, err
	}
	if s.defaults.Len() > 0 {
		for _, rec := range pivot.Records {
			rec.ApplyUplifts(s.defaults)
		}
	}

	now := s.clock.Now()
	session := &Session{
		ID:          s.newID(),
		Source:      req.Source,
		Category:    sheet.Name,
		CompanyName: req.CompanyName,
		CompanyReg:  req.CompanyReg,
		CreatedAt:   now,
		UpdatedAt:   now,
		Records:     pivot.Records,
		Report:      pivot.Report,
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("tender imported",
		zap.String("session_id", session.ID),
		zap.String("source", req.Source),
		zap.String("sheet", sheet.Name),
		zap.Int("rows", len(sheet.Rows)),
		zap.Int("meters", len(pivot.Records)),
		zap.Int("nhh_rows", pivot.NHHRows),
		zap.Int("hh_rows", pivot.HHRows),
		zap.Int("warnings", len(pivot.Report.Warnings)))
	return session, nil
}

// Get loads a session.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.repo.Get(ctx, id)
}

// Delete removes a session.
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.locks.forget(id)
	s.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

// ApplyUplifts writes an uplift set into every record of the session, replacing
// earlier uplifts. Entries with unknown component names are returned, not applied,
// and replace the session's earlier ignored_uplift warnings.
func (s *Service) ApplyUplifts(ctx context.Context, id string, entries []pricing.UpliftEntry) (*Session, []pricing.UpliftEntry, error) {
	set, ignored, err := pricing.NewUpliftSet(entries)
	if err != nil {
		return nil, nil, err
	}
	unlock := s.locks.lock(id)
	defer unlock()
	session, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	for _, rec := range session.Records {
		rec.ApplyUplifts(set)
	}
	session.Report.drop(WarningIgnoredUplift, "")
	for _, entry := range ignored {
		session.Report.add(Warning{
			Kind:   WarningIgnoredUplift,
			Term:   entry.Term,
			Detail: fmt.Sprintf("%s uplift for unknown component %q ignored", entry.MeterType, entry.Component),
		})
	}
	session.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, nil, err
	}
	metrics.IncUpliftEdit(metrics.UpliftScopeSession)
	for _, entry := range ignored {
		s.logger.Debug("uplift ignored",
			zap.String("session_id", id),
			zap.String("component", entry.Component))
	}
	return session, ignored, nil
}

// MeterUpliftEdit is one edited cell of the uplift grid.
type MeterUpliftEdit struct {
	Term      pricing.ContractTerm `json:"term" yaml:"term"`
	Component string               `json:"component" yaml:"component"`
	Value     float64              `json:"value" yaml:"value"`
}

// EditMeterUplifts applies grid edits to a single meter. Unknown component names
// are skipped, returned and reported against the meter.
func (s *Service) EditMeterUplifts(ctx context.Context, id, meterID string, edits []MeterUpliftEdit) (*Session, []MeterUpliftEdit, error) {
	unlock := s.locks.lock(id)
	defer unlock()
	session, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rec, ok := session.Record(meterID)
	if !ok {
		return nil, nil, ErrMeterNotFound
	}
	var ignored []MeterUpliftEdit
	for _, edit := range edits {
		component, ok := pricing.ParseComponent(edit.Component)
		if !ok {
			ignored = append(ignored, edit)
			continue
		}
		if err := rec.SetUplift(edit.Term, component, edit.Value); err != nil {
			return nil, nil, fmt.Errorf("meter %s term %d: %w", meterID, edit.Term, err)
		}
	}
	session.Report.drop(WarningIgnoredUplift, meterID)
	for _, edit := range ignored {
		session.Report.add(Warning{
			Kind:    WarningIgnoredUplift,
			MeterID: meterID,
			Term:    edit.Term,
			Detail:  fmt.Sprintf("uplift for unknown component %q ignored", edit.Component),
		})
	}
	session.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, nil, err
	}
	metrics.IncUpliftEdit(metrics.UpliftScopeMeter)
	return session, ignored, nil
}

// Price computes annual costs from the session's current uplifts and assembles
// the broker output. Nothing is cached; every call recomputes.
func (s *Service) Price(ctx context.Context, id string) (BrokerOutput, *Session, error) {
	start := time.Now()
	session, err := s.repo.Get(ctx, id)
	if err != nil {
		metrics.ObservePrice(metrics.ResultError, 0, time.Since(start))
		return BrokerOutput{}, nil, err
	}
	priced, report := PriceRecords(session.Records, s.calc)
	out := AssembleBrokerOutput(priced, session.Report.Merge(report))
	n := report.Count(WarningComputation)
	metrics.ObservePrice(metrics.ResultSuccess, n, time.Since(start))
	if n > 0 {
		s.logger.Warn("terms failed to price",
			zap.String("session_id", id),
			zap.Int("failed_terms", n))
	}
	return out, session, nil
}
