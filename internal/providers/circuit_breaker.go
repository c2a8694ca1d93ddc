package providers

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Provider names, also used as circuit breaker names
const (
	ProviderSleeper = "sleeper"
	ProviderFFNerd  = "ffnerd"
)

type CircuitBreakerService struct {
	breakers map[string]*gobreaker.CircuitBreaker
	logger   *logrus.Logger
}

// BreakerStatus is the health view of one breaker
type BreakerStatus struct {
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	TotalFailures       uint32 `json:"total_failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// NewCircuitBreakerService creates one breaker per upstream provider. A breaker
// trips once at least threshold requests were seen and 60% of them failed, and
// stays open for timeout.
func NewCircuitBreakerService(threshold int, timeout time.Duration, logger *logrus.Logger) *CircuitBreakerService {
	if threshold <= 0 {
		threshold = 5
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	newBreaker := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: uint32(threshold),
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= uint32(threshold) && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"component": "circuit_breaker",
					"service":   name,
					"from":      from.String(),
					"to":        to.String(),
				}).Info("Circuit breaker state changed")
			},
		})
	}

	return &CircuitBreakerService{
		breakers: map[string]*gobreaker.CircuitBreaker{
			ProviderSleeper: newBreaker(ProviderSleeper),
			ProviderFFNerd:  newBreaker(ProviderFFNerd),
		},
		logger: logger,
	}
}

// Execute wraps a function call with circuit breaker protection
func (cb *CircuitBreakerService) Execute(service string, fn func() (interface{}, error)) (interface{}, error) {
	breaker, exists := cb.breakers[service]
	if !exists {
		cb.logger.WithFields(logrus.Fields{
			"component": "circuit_breaker",
			"service":   service,
		}).Warn("No circuit breaker found for service, executing without protection")
		return fn()
	}

	return breaker.Execute(fn)
}

// GetState returns the current state of a circuit breaker
func (cb *CircuitBreakerService) GetState(service string) gobreaker.State {
	if breaker, exists := cb.breakers[service]; exists {
		return breaker.State()
	}
	return gobreaker.StateClosed
}

// Statuses reports every breaker for the readiness endpoint
func (cb *CircuitBreakerService) Statuses() map[string]BreakerStatus {
	out := make(map[string]BreakerStatus, len(cb.breakers))
	for name, breaker := range cb.breakers {
		counts := breaker.Counts()
		out[name] = BreakerStatus{
			State:               breaker.State().String(),
			Requests:            counts.Requests,
			TotalFailures:       counts.TotalFailures,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		}
	}
	return out
}

// AnyOpen reports whether some provider is currently short-circuited
func (cb *CircuitBreakerService) AnyOpen() bool {
	for _, breaker := range cb.breakers {
		if breaker.State() == gobreaker.StateOpen {
			return true
		}
	}
	return false
}
