package core

import (
	"context"
	"sync"
	"time"

	"github.com/BKHilton/Ember/internal/auth"
	"github.com/BKHilton/Ember/internal/blob"
	"github.com/BKHilton/Ember/internal/infra/persistence/memory"
	"github.com/BKHilton/Ember/internal/mailer"
	"github.com/BKHilton/Ember/internal/notify"
	"github.com/BKHilton/Ember/pkg/domain"
	"go.uber.org/zap"
)

// Service exposes the transactional operations of the record keeper. All
// mutations funnel through the store's single write path.
type Service struct {
	store        domain.PersistentStore
	engine       *domain.RulesEngine
	logger       Logger
	clock        Clock
	audit        AuditRecorder
	metrics      MetricsRecorder
	tracer       Tracer
	blobs        blob.Store
	notifier     notify.Notifier
	mailers      mailer.Factory
	sessions     *auth.SessionStore
	reportFormat ReportFormat
	weekStart    time.Weekday
	location     *time.Location

	mail sync.WaitGroup
}

// Logger is the minimal structured logger the service writes to. Arguments
// are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger adapts a zap logger to Logger.
func NewZapLogger(log *zap.Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return zapLogger{s: log.Sugar()}
}

func (l zapLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l zapLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l zapLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l zapLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now returns f().
func (f ClockFunc) Now() time.Time { return f() }

// AuditStatus is the outcome of an audited operation.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry records one service operation.
type AuditEntry struct {
	Operation string
	Status    AuditStatus
	ChurchID  string
	EntityID  string
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives an entry for every service operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MetricsRecorder observes operation outcomes and latency.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan is ended once with the operation's error.
type TraceSpan interface {
	End(err error)
}

// Tracer starts a span per operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

func (noopSpan) End(error) {}

type serviceOptions struct {
	engine       *domain.RulesEngine
	logger       Logger
	clock        Clock
	audit        AuditRecorder
	metrics      MetricsRecorder
	tracer       Tracer
	blobs        blob.Store
	notifier     notify.Notifier
	mailers      mailer.Factory
	sessions     *auth.SessionStore
	reportFormat ReportFormat
	weekStart    time.Weekday
	location     *time.Location
}

// ServiceOption customises a Service.
type ServiceOption func(*serviceOptions)

// WithLogger sets the service logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the clock used for timestamps and digest windows. The clock
// is also installed on stores that accept one.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithRulesEngine registers the engine's rules on the store's engine.
func WithRulesEngine(engine *domain.RulesEngine) ServiceOption {
	return func(o *serviceOptions) {
		o.engine = engine
	}
}

// WithBlobStore sets where reports, photos and bundle files are kept.
func WithBlobStore(store blob.Store) ServiceOption {
	return func(o *serviceOptions) {
		if store != nil {
			o.blobs = store
		}
	}
}

// WithNotifier sets the event sink.
func WithNotifier(n notify.Notifier) ServiceOption {
	return func(o *serviceOptions) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithMailerFactory sets how per-church mailers are built.
func WithMailerFactory(factory mailer.Factory) ServiceOption {
	return func(o *serviceOptions) {
		if factory != nil {
			o.mailers = factory
		}
	}
}

// WithSessionStore shares a session store with the service.
func WithSessionStore(sessions *auth.SessionStore) ServiceOption {
	return func(o *serviceOptions) {
		if sessions != nil {
			o.sessions = sessions
		}
	}
}

// WithReportFormat selects the encoding of report files.
func WithReportFormat(format ReportFormat) ServiceOption {
	return func(o *serviceOptions) {
		if format != "" {
			o.reportFormat = format
		}
	}
}

// WithWeekStart sets the first day of the weekly digest window.
func WithWeekStart(day time.Weekday) ServiceOption {
	return func(o *serviceOptions) {
		o.weekStart = day
	}
}

// WithLocation sets the fallback location for churches whose primary campus
// has no usable timezone.
func WithLocation(loc *time.Location) ServiceOption {
	return func(o *serviceOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

type clockSetter interface {
	SetNowFunc(func() time.Time)
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	cfg := serviceOptions{
		logger:       noopLogger{},
		clock:        ClockFunc(func() time.Time { return time.Now().UTC() }),
		audit:        noopAuditRecorder{},
		metrics:      noopMetricsRecorder{},
		tracer:       noopTracer{},
		notifier:     notify.Nop,
		mailers:      mailer.NewSMTP,
		reportFormat: ReportJSON,
		weekStart:    time.Sunday,
		location:     time.UTC,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	engine := store.RulesEngine()
	if cfg.engine != nil && engine != nil && cfg.engine != engine {
		for _, rule := range cfg.engine.Rules() {
			engine.Register(rule)
		}
	}
	if setter, ok := store.(clockSetter); ok {
		setter.SetNowFunc(func() time.Time { return cfg.clock.Now().UTC() })
	}
	if cfg.blobs == nil {
		cfg.blobs = blob.NewMemory()
	}
	if cfg.sessions == nil {
		cfg.sessions = auth.NewSessionStore(cfg.clock.Now)
	}

	return &Service{
		store:        store,
		engine:       engine,
		logger:       cfg.logger,
		clock:        cfg.clock,
		audit:        cfg.audit,
		metrics:      cfg.metrics,
		tracer:       cfg.tracer,
		blobs:        cfg.blobs,
		notifier:     cfg.notifier,
		mailers:      cfg.mailers,
		sessions:     cfg.sessions,
		reportFormat: cfg.reportFormat,
		weekStart:    cfg.weekStart,
		location:     cfg.location,
	}
}

// NewInMemoryService creates a service over a fresh in-memory store using
// the default rules.
func NewInMemoryService(opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(NewDefaultRulesEngine()), opts...)
}

// Store returns the underlying persistent store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Sessions returns the session store.
func (s *Service) Sessions() *auth.SessionStore { return s.sessions }

// Blobs returns the blob store.
func (s *Service) Blobs() blob.Store { return s.blobs }

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.clock.Now().UTC() }

// Close waits for outstanding notification email.
func (s *Service) Close() {
	s.mail.Wait()
}

// run wraps an operation with tracing, metrics, audit and logging. fn returns
// the id of the entity it touched.
func (s *Service) run(ctx context.Context, op, churchID string, fn func(ctx context.Context) (string, error)) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	entityID, err := fn(ctx)
	elapsed := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, elapsed)

	entry := AuditEntry{
		Operation: op,
		Status:    AuditStatusSuccess,
		ChurchID:  churchID,
		EntityID:  entityID,
		Duration:  elapsed,
		Timestamp: s.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.logger.Error("service operation failed", "operation", op, "church_id", churchID, "duration", elapsed, "error", err)
	} else {
		s.logger.Debug("service operation completed", "operation", op, "church_id", churchID, "entity_id", entityID, "duration", elapsed)
	}
	s.audit.Record(ctx, entry)
	return err
}

// update runs fn in a transaction and logs non-blocking rule findings.
func (s *Service) update(ctx context.Context, fn func(domain.Transaction) error) error {
	res, err := s.store.RunInTransaction(ctx, fn)
	for _, v := range res.Violations {
		if v.Severity != domain.SeverityBlock {
			s.logger.Warn("rule finding", "rule", v.Rule, "severity", v.Severity, "entity", v.Entity, "entity_id", v.EntityID, "message", v.Message)
		}
	}
	return err
}

func (s *Service) view(ctx context.Context, fn func(domain.TransactionView) error) error {
	return s.store.View(ctx, fn)
}

// emit delivers an event and logs delivery failures.
func (s *Service) emit(ctx context.Context, event notify.Event) {
	if event.At.IsZero() {
		event.At = s.Now()
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("notification failed", "kind", event.Kind, "church_id", event.ChurchID, "error", err)
	}
}
