// Package threat accumulates verification failures per identity over a short
// rolling window and raises an alert when the weighted total crosses the
// threshold. The ledger is process-local and recreatable: losing it on
// restart degrades to "no recent history", never to an unsafe accept.
package threat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rollcall/internal/lockout"
	"rollcall/internal/threat/metrics"
	"rollcall/pkg/domain"
	"rollcall/pkg/requestcontext"
)

// Event labels. One cooldown slot exists per (identity, event) pair.
const (
	EventImpersonation = "impersonation_attempt"
	EventLocationSpoof = "location_spoof"
	EventReplay        = "voucher_replay"
	EventSpoofing      = "presentation_spoof"
	EventBruteForce    = "brute_force"
)

// Severity weights per event.
const (
	WeightImpersonation = 1
	WeightLocationSpoof = 2
	WeightReplay        = 3
	WeightSpoofing      = 3
	WeightBruteForce    = 2
)

const (
	// window is how far back failures count toward the total.
	window = 300 * time.Second
	// alertThreshold is the weighted total that raises an alert.
	alertThreshold = 5
	// alertCooldown suppresses repeat alerts for the same (identity, event).
	alertCooldown = 600 * time.Second
	// maxTrackedIdentities bounds the ledger; beyond it the whole map is
	// dropped rather than evicted piecemeal.
	maxTrackedIdentities = 500
)

// Alert is the full context handed to notifiers when an identity crosses the
// threshold.
type Alert struct {
	UserID  domain.UserID
	Event   string
	Score   int
	At      time.Time
	Details map[string]any
}

// Notifier delivers alerts. Delivery failures are logged, never propagated:
// alerting is best-effort by contract.
type Notifier interface {
	Notify(ctx context.Context, alert Alert)
}

// Escalator feeds threshold crossings into the biometric-abuse lockout counter.
type Escalator interface {
	RecordFailure(ctx context.Context, userID domain.UserID, category lockout.Category) (lockout.Status, error)
}

type entry struct {
	at     time.Time
	points int
}

type cooldownKey struct {
	userID domain.UserID
	event  string
}

type Engine struct {
	notifier  Notifier
	escalator Escalator
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu        sync.Mutex
	ledger    map[domain.UserID][]entry
	lastAlert map[cooldownKey]time.Time
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(notifier Notifier, escalator Escalator, opts ...Option) (*Engine, error) {
	if notifier == nil {
		return nil, fmt.Errorf("threat notifier is required")
	}
	e := &Engine{
		notifier:  notifier,
		escalator: escalator,
		logger:    slog.Default(),
		ledger:    make(map[domain.UserID][]entry),
		lastAlert: make(map[cooldownKey]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Record adds weighted points against the identity and, when the windowed
// total crosses the threshold outside the event's cooldown, emits one alert,
// escalates the biometric-abuse counter, and clears the identity's ledger so
// a fresh run of violations is required to alert again.
func (e *Engine) Record(ctx context.Context, userID domain.UserID, points int, event string, details map[string]any) {
	now := requestcontext.Now(ctx)
	e.metrics.ObserveEvent(event)

	alert, fire := e.append(userID, points, event, details, now)
	if !fire {
		return
	}

	e.metrics.ObserveAlert(event)
	e.logger.WarnContext(ctx, "threat threshold crossed",
		"user_id", userID, "event", event, "score", alert.Score)

	e.notifier.Notify(ctx, alert)

	if e.escalator != nil {
		if _, err := e.escalator.RecordFailure(ctx, userID, lockout.CategoryBiometric); err != nil {
			e.logger.ErrorContext(ctx, "threat escalation failed", "user_id", userID, "error", err)
		}
	}
}

// TrackedIdentities reports the current ledger size.
func (e *Engine) TrackedIdentities() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ledger)
}

// append mutates the ledger under the lock and decides whether to alert.
func (e *Engine) append(userID domain.UserID, points int, event string, details map[string]any, now time.Time) (Alert, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.ledger) >= maxTrackedIdentities {
		if _, tracked := e.ledger[userID]; !tracked {
			e.ledger = make(map[domain.UserID][]entry)
			e.lastAlert = make(map[cooldownKey]time.Time)
		}
	}

	cutoff := now.Add(-window)
	entries := e.ledger[userID][:0]
	for _, en := range e.ledger[userID] {
		if en.at.After(cutoff) {
			entries = append(entries, en)
		}
	}
	entries = append(entries, entry{at: now, points: points})
	e.ledger[userID] = entries

	total := 0
	for _, en := range entries {
		total += en.points
	}
	if total < alertThreshold {
		return Alert{}, false
	}

	key := cooldownKey{userID: userID, event: event}
	if last, ok := e.lastAlert[key]; ok && now.Sub(last) < alertCooldown {
		return Alert{}, false
	}

	e.lastAlert[key] = now
	delete(e.ledger, userID)

	return Alert{
		UserID:  userID,
		Event:   event,
		Score:   total,
		At:      now,
		Details: details,
	}, true
}
