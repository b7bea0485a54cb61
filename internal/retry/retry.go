// Package retry runs sends under a fixed delay sequence.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/ykvlv/legendalf-bot/internal/domain"
)

// Policy retries an operation once per delay, after an initial attempt.
// Errors for which Retryable reports false stop immediately.
type Policy struct {
	Delays    []time.Duration
	Retryable func(error) bool
}

var (
	// Short suits single interactive sends.
	Short = Policy{
		Delays:    []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		Retryable: domain.IsTransient,
	}
	// Long suits scheduled deliveries.
	Long = Policy{
		Delays:    []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 12 * time.Second},
		Retryable: domain.IsTransient,
	}
)

// Attempts is the maximum number of calls Do makes.
func (p Policy) Attempts() int { return len(p.Delays) + 1 }

// Do calls fn until it succeeds, fails permanently, the delays run out or ctx ends.
func (p Policy) Do(ctx context.Context, log *zap.Logger, label string, fn func(ctx context.Context) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Warn("send failed, retrying",
			zap.String("op", label),
			zap.Int("attempt", attempt),
			zap.Duration("next", next),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(newSequence(p.Delays), ctx), notify)
	if err != nil {
		log.Warn("send gave up", zap.String("op", label), zap.Int("attempts", attempt), zap.Error(err))
	}
	return err
}

// sequence is a backoff.BackOff yielding a fixed list of delays.
type sequence struct {
	delays []time.Duration
	next   int
}

func newSequence(delays []time.Duration) *sequence {
	return &sequence{delays: delays}
}

func (s *sequence) NextBackOff() time.Duration {
	if s.next >= len(s.delays) {
		return backoff.Stop
	}
	d := s.delays[s.next]
	s.next++
	return d
}

func (s *sequence) Reset() { s.next = 0 }
