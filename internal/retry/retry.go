package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Значения по умолчанию для экспоненциальной задержки
const (
	DefaultStart  = 100 * time.Millisecond
	DefaultFactor = 2.0
	DefaultBorder = 10 * time.Second
)

// Observer - получает уведомление о каждой неудачной попытке
type Observer func(operation string)

// Policy - бесконечные повторы с экспоненциальной задержкой.
// Ожидание перед n-й повторной попыткой равно Start * Factor^n, но не больше Border.
type Policy struct {
	Start  time.Duration
	Factor float64
	Border time.Duration
	Logger *zap.SugaredLogger

	// OnRetry вызывается перед каждым ожиданием, может быть nil
	OnRetry Observer

	sleep func(ctx context.Context, d time.Duration) error
}

func NewPolicy(start time.Duration, factor float64, border time.Duration, logger *zap.SugaredLogger) *Policy {
	if start <= 0 {
		start = DefaultStart
	}
	if factor < 1 {
		factor = DefaultFactor
	}
	if border < start {
		border = DefaultBorder
	}

	return &Policy{
		Start:  start,
		Factor: factor,
		Border: border,
		Logger: logger,
		sleep:  sleepContext,
	}
}

// Run - выполняет op до первого успеха.
// Ошибку возвращает только если контекст отменен во время ожидания.
func (p *Policy) Run(ctx context.Context, operation string, op func(ctx context.Context) error) error {
	schedule := p.schedule()
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				p.Logger.Infow("Operation succeeded after retries", "operation", operation, "attempts", attempt)
			}

			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		wait := schedule.NextBackOff()
		p.Logger.Errorw("Operation failed, retrying",
			"operation", operation,
			"attempt", attempt,
			"wait", wait.String(),
			zap.Error(err),
		)
		if p.OnRetry != nil {
			p.OnRetry(operation)
		}

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (p *Policy) schedule() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.Start,
		RandomizationFactor: 0,
		Multiplier:          p.Factor,
		MaxInterval:         p.Border,
	}
	b.Reset()

	return b
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
