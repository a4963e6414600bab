// Package alert persists security alerts and fans them out to delivery sinks.
// Delivery is strictly best-effort: a down SMTP relay or Kafka broker must
// never fail, or even slow down, the verification request that raised the
// alert.
package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/threat"
	"rollcall/pkg/requestcontext"
)

// deliveryTimeout bounds each sink delivery once detached from the request.
const deliveryTimeout = 10 * time.Second

// Sink delivers one alert to an external channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, a SecurityAlert) error
}

type Service struct {
	store  Store
	sinks  []Sink
	logger *slog.Logger
	wg     sync.WaitGroup
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithSink registers a delivery sink. Nil sinks are ignored so callers can
// pass conditionally constructed ones without guarding.
func WithSink(sink Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sinks = append(s.sinks, sink)
		}
	}
}

func New(store Store, opts ...Option) *Service {
	svc := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Notify persists the alert and dispatches it to every sink in the
// background. Failures are logged and swallowed.
func (s *Service) Notify(ctx context.Context, t threat.Alert) {
	a := SecurityAlert{
		ID:        uuid.New(),
		UserID:    t.UserID,
		Event:     t.Event,
		Score:     t.Score,
		Details:   t.Details,
		CreatedAt: requestcontext.Now(ctx),
	}

	if s.store != nil {
		if err := s.store.Insert(ctx, a); err != nil {
			s.logger.ErrorContext(ctx, "persist security alert failed",
				"alert_id", a.ID, "user_id", a.UserID, "error", err)
		}
	}

	// Detach from the request so sink delivery survives the response.
	base := context.WithoutCancel(ctx)
	for _, sink := range s.sinks {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			dctx, cancel := context.WithTimeout(base, deliveryTimeout)
			defer cancel()
			if err := sink.Deliver(dctx, a); err != nil {
				s.logger.ErrorContext(dctx, "alert delivery failed",
					"sink", sink.Name(), "alert_id", a.ID, "error", err)
			}
		}()
	}
}

// Flush waits for in-flight deliveries, used on shutdown and in tests.
func (s *Service) Flush() {
	s.wg.Wait()
}
