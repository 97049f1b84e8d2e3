package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rudderlabs/rudder-go-kit/logger"
)

// ErrOpen is returned by Do while the breaker is open and calls are short-circuited.
var ErrOpen = errors.New("circuit breaker is open")

type Opt func(*cfg)

func WithMaxRequests(maxRequests int) Opt {
	return func(cfg *cfg) {
		cfg.maxRequests = maxRequests
	}
}

func WithTimeout(timeout time.Duration) Opt {
	return func(cfg *cfg) {
		cfg.timeout = timeout
	}
}

func WithConsecutiveFailures(consecutiveFailures int) Opt {
	return func(cfg *cfg) {
		cfg.consecutiveFailures = consecutiveFailures
	}
}

// WithFailurePredicate sets which errors count as failures. By default every error does.
func WithFailurePredicate(isFailure func(error) bool) Opt {
	return func(cfg *cfg) {
		cfg.isFailure = isFailure
	}
}

func WithLogger(logger logger.Logger) Opt {
	return func(cfg *cfg) {
		cfg.logger = logger
	}
}

// CircuitBreaker short-circuits calls to a dependency after it failed a number of times in a row.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func New(name string, opts ...Opt) *CircuitBreaker {
	cfg := &cfg{
		maxRequests:         1,
		timeout:             5 * time.Second,
		consecutiveFailures: 3,
		isFailure:           func(err error) bool { return err != nil },
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &CircuitBreaker{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: uint32(cfg.maxRequests), // requests allowed through while half-open
			Interval:    0,                       // counts are never cleared while closed
			Timeout:     cfg.timeout,             // open to half-open
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(cfg.consecutiveFailures)
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !cfg.isFailure(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				if cfg.logger != nil {
					cfg.logger.Infon("circuit breaker state changed",
						logger.NewStringField("name", name),
						logger.NewStringField("from", from.String()),
						logger.NewStringField("to", to.String()),
					)
				}
			},
		}),
	}
}

// Do runs op unless the breaker is open, in which case ErrOpen is returned without calling op.
func (b *CircuitBreaker) Do(op func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, op()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

func (b *CircuitBreaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

type cfg struct {
	maxRequests         int
	timeout             time.Duration
	consecutiveFailures int
	isFailure           func(error) bool
	logger              logger.Logger
}
