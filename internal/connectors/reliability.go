package connectors

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sony/gobreaker"
	"github.com/xela07ax/xdr-console/internal/infra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Reliability — клиентский лимитер и предохранитель перед бэкендом.
// Повторов здесь нет: ошибка всегда уходит вызывающему.
type Reliability struct {
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewReliability(cfg infra.GatewayConfig, metrics *infra.Metrics, logger *zap.Logger) *Reliability {
	logger = logger.Named("reliability")

	failures := cfg.CBConsecutiveFailures
	if failures == 0 {
		failures = math.MaxUint32
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "xdr-api",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// 4xx — нормальный ответ сервера, предохранитель считает только сеть и 5xx
		IsSuccessful: func(err error) bool {
			return err == nil || (!IsNetworkError(err) && !IsServerError(err))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if metrics != nil {
				metrics.CircuitBreakerState.Set(float64(to))
			}
		},
	})

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Reliability{
		cb:      cb,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// errCircuitOpen оборачивает отказ предохранителя или лимитера: ответа не было.
var errCircuitOpen = errors.New("circuit breaker rejected request")

// Execute выполняет вызов через лимитер и предохранитель.
func (r *Reliability) Execute(ctx context.Context, call func() error) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	_, err := r.cb.Execute(func() (interface{}, error) {
		return nil, call()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", errCircuitOpen, err)
	}
	return err
}

// State отдает текущее состояние предохранителя.
func (r *Reliability) State() gobreaker.State {
	return r.cb.State()
}
