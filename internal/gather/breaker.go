package gather

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"claimsignal/internal/domain"
)

// Compile-time interface check.
var _ PriceSource = (*BreakerSource)(nil)

// BreakerConfig controls when the price provider circuit opens.
type BreakerConfig struct {
	MaxFailures uint32        // consecutive failures before opening
	Cooldown    time.Duration // time spent open before a trial request
}

// BreakerSource guards a PriceSource with a circuit breaker so that a dead
// provider fails every remaining instrument fast instead of timing out on
// each one. All failures are returned as *ProviderError.
type BreakerSource struct {
	next PriceSource
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerSource wraps next with a circuit breaker.
func NewBreakerSource(next PriceSource, cfg BreakerConfig, log *slog.Logger) *BreakerSource {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if log == nil {
		log = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("price provider circuit", "provider", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerSource{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Name returns the wrapped provider's name.
func (b *BreakerSource) Name() string { return b.next.Name() }

// State returns the breaker state, for logging and tests.
func (b *BreakerSource) State() gobreaker.State { return b.cb.State() }

// FetchBars delegates to the wrapped source through the breaker.
func (b *BreakerSource) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.FetchBars(ctx, symbol, start, end)
	})
	if err != nil {
		return nil, AsProviderError(b.next.Name(), symbol, err)
	}
	bars, _ := out.([]domain.Bar)
	return bars, nil
}
