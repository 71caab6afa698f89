package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cloudnote/internal/shared"
	"github.com/sony/gobreaker/v2"
)

// BreakerSource guards a [RecordSource] with a circuit breaker.
//
// Invalid input never counts against the breaker.
type BreakerSource struct {
	source RecordSource
	cb     *gobreaker.CircuitBreaker[*RecordResponse]
}

// NewBreakerSource wraps source. The circuit opens after cfg.MaxFailures consecutive failures and half-opens after
// cfg.OpenTimeoutSeconds.
func NewBreakerSource(source RecordSource, cfg shared.BreakerConfig, logger *log.Logger) *BreakerSource {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := time.Duration(cfg.OpenTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[*RecordResponse](gobreaker.Settings{
		Name:        "netease",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, shared.ErrInvalidInput) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &BreakerSource{source: source, cb: cb}
}

// UserRecords calls through the breaker.
func (b *BreakerSource) UserRecords(ctx context.Context, uid string) (*RecordResponse, error) {
	resp, err := b.cb.Execute(func() (*RecordResponse, error) {
		return b.source.UserRecords(ctx, uid)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}
	return resp, err
}

// State reports the breaker state ("closed", "half-open", "open").
func (b *BreakerSource) State() string {
	return b.cb.State().String()
}
