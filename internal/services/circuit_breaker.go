package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrBreakerOpen is returned without calling the acquisition while the
// breaker is open.
var ErrBreakerOpen = errors.New("acquisition circuit breaker is open")

// CircuitBreakerState represents the current state of the circuit breaker
type CircuitBreakerState int

const (
	Closed CircuitBreakerState = iota
	Open
	HalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // consecutive failures before opening
	SuccessThreshold int           `json:"success_threshold"` // half-open successes before closing
	OpenTimeout      time.Duration `json:"open_timeout"`      // wait before the half-open trial
}

// CircuitBreakerStats holds statistics for the circuit breaker
type CircuitBreakerStats struct {
	State              string    `json:"state"`
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	RejectedRequests   int64     `json:"rejected_requests"`
	LastFailureTime    time.Time `json:"last_failure_time"`
	StateChanges       int64     `json:"state_changes"`
}

// CircuitBreaker stops calling a failing acquisition source for a cool-down
// period. In half-open state a single trial call is allowed at a time.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	logger *logrus.Logger
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitBreakerState
	failureCount    int
	successCount    int
	trialInFlight   bool
	lastStateChange time.Time
	stats           CircuitBreakerStats
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &CircuitBreaker{
		name:            name,
		config:          config,
		logger:          logger,
		now:             time.Now,
		state:           Closed,
		lastStateChange: time.Now(),
	}
}

// Wrap guards acquire with the breaker.
func (cb *CircuitBreaker) Wrap(acquire AcquireFunc) AcquireFunc {
	return func(ctx context.Context, city, state string) (float64, error) {
		var score float64
		err := cb.Execute(ctx, func(ctx context.Context) error {
			var err error
			score, err = acquire(ctx, city, state)
			return err
		})
		return score, err
	}
}

// Execute runs fn unless the breaker is open. The lock is not held while fn
// runs.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.allow() {
		cb.logger.WithFields(logrus.Fields{
			"circuit_breaker": cb.name,
			"state":           cb.GetState().String(),
		}).Warn("Circuit breaker is open, rejecting request")
		return ErrBreakerOpen
	}

	start := cb.now()
	err := fn(ctx)
	cb.record(err, cb.now().Sub(start))
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.TotalRequests++
	switch cb.state {
	case Closed:
		return true
	case Open:
		if cb.now().Sub(cb.lastStateChange) < cb.config.OpenTimeout {
			cb.stats.RejectedRequests++
			return false
		}
		cb.setState(HalfOpen)
		cb.successCount = 0
		fallthrough
	case HalfOpen:
		if cb.trialInFlight {
			cb.stats.RejectedRequests++
			return false
		}
		cb.trialInFlight = true
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) record(err error, duration time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasTrial := cb.state == HalfOpen
	if wasTrial {
		cb.trialInFlight = false
	}

	// A client error means the dependency answered; it does not trip the breaker.
	if err != nil && !isClientError(err) {
		cb.stats.FailedRequests++
		cb.stats.LastFailureTime = cb.now()
		cb.failureCount++
		if wasTrial || cb.failureCount >= cb.config.FailureThreshold {
			cb.setState(Open)
		}
		cb.logger.WithFields(logrus.Fields{
			"circuit_breaker": cb.name,
			"state":           cb.state.String(),
			"error":           err.Error(),
			"duration_ms":     duration.Milliseconds(),
			"failure_count":   cb.failureCount,
		}).Warn("Circuit breaker: failed execution")
		return
	}

	if err != nil {
		cb.stats.FailedRequests++
	} else {
		cb.stats.SuccessfulRequests++
	}
	cb.failureCount = 0
	if wasTrial {
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.setState(Closed)
			cb.successCount = 0
		}
	}
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(next CircuitBreakerState) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	cb.lastStateChange = cb.now()
	cb.stats.StateChanges++

	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"old_state":       prev.String(),
		"new_state":       next.String(),
	}).Info("Circuit breaker state changed")
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns the current statistics
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	stats := cb.stats
	stats.State = cb.state.String()
	return stats
}

// Reset manually closes the breaker.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(Closed)
	cb.failureCount = 0
	cb.successCount = 0
	cb.trialInFlight = false
}
