package workers

import (
	"context"
	"sync"
	"time"

	"github.com/BKHilton/Ember/internal/core"
	"github.com/BKHilton/Ember/pkg/domain"
	"go.uber.org/zap"
)

// DefaultTolerance is how long after the preferred time a digest may still
// fire.
const DefaultTolerance = 5 * time.Minute

// DefaultDeliveryTimeout bounds one church's digest delivery.
const DefaultDeliveryTimeout = 30 * time.Second

// Firing is one digest the scheduler delivered.
type Firing struct {
	ChurchID string
	Kind     domain.DigestKind
	Date     string
	Delivery core.DigestDelivery
}

type markerKey struct {
	churchID string
	kind     domain.DigestKind
}

// DigestScheduler decides on each tick which churches are due a digest.
// A church receives at most one digest of each kind per calendar day.
type DigestScheduler struct {
	svc       *core.Service
	log       *zap.Logger
	tolerance time.Duration
	timeout   time.Duration

	mu   sync.Mutex
	sent map[markerKey]string
}

// NewDigestScheduler creates a scheduler. A non-positive tolerance selects
// DefaultTolerance.
func NewDigestScheduler(svc *core.Service, tolerance time.Duration, logger *zap.Logger) *DigestScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &DigestScheduler{
		svc:       svc,
		log:       logger.Named("digest_scheduler"),
		tolerance: tolerance,
		timeout:   DefaultDeliveryTimeout,
		sent:      make(map[markerKey]string),
	}
}

// SetDeliveryTimeout changes how long a single church's delivery may take.
// A non-positive d selects DefaultDeliveryTimeout.
func (s *DigestScheduler) SetDeliveryTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultDeliveryTimeout
	}
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}

// Job wraps the scheduler for a Runner, ticking at the service clock. The
// runner's deadline is dropped; each church is bounded by the delivery
// timeout instead.
func (s *DigestScheduler) Job(interval time.Duration) Job {
	return Job{
		Name:     "digest_scheduler",
		Interval: interval,
		Run: func(ctx context.Context) error {
			s.Tick(context.WithoutCancel(ctx), s.svc.Now())
			return nil
		},
	}
}

// Tick evaluates every church at now and delivers the digests that are due.
// A failure for one church is logged and does not stop the others. Each
// church gets its own delivery timeout so a slow one cannot starve the rest.
func (s *DigestScheduler) Tick(ctx context.Context, now time.Time) []Firing {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fired []Firing
	for _, church := range s.svc.ListChurches(ctx) {
		local := now.In(s.svc.LocationOf(ctx, church.ID))
		slot, ok := dueSlot(church.DigestPreference, local, s.tolerance)
		if !ok {
			continue
		}
		date := slot.Format(time.DateOnly)
		churchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		if int(slot.Weekday()) == church.DigestPreference.DayOfWeek {
			if f, ok := s.fire(churchCtx, church.ID, domain.DigestWeekly, date, now); ok {
				fired = append(fired, f)
			}
		}
		if lastDayOfMonth(slot) {
			if f, ok := s.fire(churchCtx, church.ID, domain.DigestMonthly, date, now); ok {
				fired = append(fired, f)
			}
		}
		cancel()
	}
	return fired
}

func (s *DigestScheduler) fire(ctx context.Context, churchID string, kind domain.DigestKind, date string, now time.Time) (Firing, bool) {
	key := markerKey{churchID: churchID, kind: kind}
	if s.sent[key] == date {
		return Firing{}, false
	}
	log := s.log.With(zap.String("church_id", churchID), zap.String("kind", string(kind)))
	delivery, err := s.svc.DeliverDigest(ctx, churchID, kind, now)
	if err != nil {
		log.Error("digest delivery failed", zap.Error(err))
		return Firing{}, false
	}
	s.sent[key] = date
	log.Info("digest delivered",
		zap.String("report", delivery.Report),
		zap.Int("emailed", delivery.Emailed))
	return Firing{ChurchID: churchID, Kind: kind, Date: date, Delivery: delivery}, true
}

// LastSent returns the calendar date of the last digest of kind for a church.
func (s *DigestScheduler) LastSent(churchID string, kind domain.DigestKind) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	date, ok := s.sent[markerKey{churchID: churchID, kind: kind}]
	return date, ok
}

// dueSlot returns the most recent preferred time-of-day at or before local
// when local is within tolerance of it. The slot may fall on the previous
// day when the window crosses midnight.
func dueSlot(pref domain.DigestPreference, local time.Time, tolerance time.Duration) (time.Time, bool) {
	hour, minute, err := domain.ParseClock(pref.Time)
	if err != nil {
		return time.Time{}, false
	}
	slot := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, local.Location())
	if local.Before(slot) {
		slot = time.Date(local.Year(), local.Month(), local.Day()-1, hour, minute, 0, 0, local.Location())
	}
	if local.Sub(slot) > tolerance {
		return time.Time{}, false
	}
	return slot, true
}

func lastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Month() != t.Month()
}
