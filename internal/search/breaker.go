package search

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrIndexUnavailable is returned while the breaker is open
var ErrIndexUnavailable = errors.New("conflict index unavailable")

// CircuitBreaker stops index syncs after repeated Meilisearch failures and
// lets one attempt through once resetTimeout has passed.
type CircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time
	logger           *zap.Logger

	mutex               sync.Mutex
	consecutiveFailures int
	totalFailures       int
	isOpen              bool
	lastFailureTime     time.Time
}

// BreakerStatus reports the breaker state
type BreakerStatus struct {
	Open                bool      `json:"open"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalFailures       int       `json:"total_failures"`
	LastFailureAt       time.Time `json:"last_failure_at,omitempty"`
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration, logger *zap.Logger) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
		logger:           logger,
	}
}

// RecordSuccess closes the breaker
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.consecutiveFailures = 0
	cb.isOpen = false
}

// RecordFailure counts a failed sync and opens the breaker at the threshold
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.consecutiveFailures++
	cb.totalFailures++
	cb.lastFailureTime = cb.now()

	if !cb.isOpen && cb.consecutiveFailures >= cb.failureThreshold {
		cb.isOpen = true
		cb.logger.Warn("conflict index circuit breaker open",
			zap.Int("consecutive_failures", cb.consecutiveFailures),
			zap.Duration("retry_after", cb.resetTimeout),
			zap.Error(err))
	}
}

// CanProceed reports whether a sync may run. After resetTimeout the breaker
// goes half-open: one attempt is allowed and a failure re-opens it.
func (cb *CircuitBreaker) CanProceed() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if !cb.isOpen {
		return true
	}
	if cb.now().Sub(cb.lastFailureTime) > cb.resetTimeout {
		cb.logger.Info("conflict index circuit breaker half-open", zap.Duration("after", cb.resetTimeout))
		cb.isOpen = false
		cb.consecutiveFailures = cb.failureThreshold - 1
		return true
	}
	return false
}

// Status returns current circuit breaker status
func (cb *CircuitBreaker) Status() BreakerStatus {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return BreakerStatus{
		Open:                cb.isOpen,
		ConsecutiveFailures: cb.consecutiveFailures,
		TotalFailures:       cb.totalFailures,
		LastFailureAt:       cb.lastFailureTime,
	}
}
