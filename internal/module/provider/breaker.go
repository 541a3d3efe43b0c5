package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/chopshop/server/internal/shared/config"
	"github.com/chopshop/server/internal/shared/metrics"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// EndpointClass groups provider endpoints sharing one circuit breaker.
type EndpointClass string

const (
	ClassVideo  EndpointClass = "video"
	ClassTTS    EndpointClass = "tts"
	ClassVoice  EndpointClass = "voice"
	ClassAvatar EndpointClass = "avatar"
	ClassStatus EndpointClass = "status"
)

// Breakers holds one circuit breaker per endpoint class.
type Breakers struct {
	breakers map[EndpointClass]*gobreaker.CircuitBreaker[*Response]
}

// NewBreakers creates breakers for every endpoint class. The status class is
// configured looser since polling traffic dominates and transient status
// failures should not block new work.
func NewBreakers(cfg config.ProviderConfig, m *metrics.Metrics, log *zap.Logger) *Breakers {
	b := &Breakers{breakers: make(map[EndpointClass]*gobreaker.CircuitBreaker[*Response])}

	for _, class := range []EndpointClass{ClassVideo, ClassTTS, ClassVoice, ClassAvatar} {
		b.breakers[class] = newBreaker(class, cfg.BreakerThreshold, cfg.BreakerOpenDuration, m, log)
	}
	b.breakers[ClassStatus] = newBreaker(ClassStatus, cfg.StatusBreakerThreshold, cfg.StatusBreakerOpenDuration, m, log)
	return b
}

func newBreaker(class EndpointClass, threshold uint32, openDuration time.Duration, m *metrics.Metrics, log *zap.Logger) *gobreaker.CircuitBreaker[*Response] {
	return gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        fmt.Sprintf("provider-%s", class),
		MaxRequests: 1, // single half-open probe
		Timeout:     openDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if m != nil {
				m.BreakerState.WithLabelValues(string(class)).Set(breakerStateValue(to))
			}
		},
	})
}

// Execute runs fn through the breaker for class, mapping open-state errors
// to ErrCircuitOpen.
func (b *Breakers) Execute(class EndpointClass, fn func() (*Response, error)) (*Response, error) {
	cb, ok := b.breakers[class]
	if !ok {
		cb = b.breakers[ClassVideo]
	}
	resp, err := cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return resp, nil
}

// State returns the current breaker state for class.
func (b *Breakers) State(class EndpointClass) gobreaker.State {
	if cb, ok := b.breakers[class]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
