package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ykvlv/legendalf-bot/internal/domain"
)

var fast = Policy{
	Delays:    []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond},
	Retryable: domain.IsTransient,
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := fast.Do(context.Background(), zap.NewNop(), "send", func(context.Context) error {
		calls++
		if calls < 3 {
			return &domain.TransientError{Op: "send", Err: errors.New("timeout")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUpAfterDelays(t *testing.T) {
	calls := 0
	err := fast.Do(context.Background(), zap.NewNop(), "send", func(context.Context) error {
		calls++
		return &domain.TransientError{Op: "send", Err: errors.New("timeout")}
	})
	assert.True(t, domain.IsTransient(err))
	assert.Equal(t, fast.Attempts(), calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	perm := &domain.PermanentError{Op: "send", Err: errors.New("chat not found")}
	err := fast.Do(context.Background(), zap.NewNop(), "send", func(context.Context) error {
		calls++
		return perm
	})
	var pe *domain.PermanentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, calls)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := Policy{Delays: []time.Duration{time.Hour}, Retryable: domain.IsTransient}

	calls := 0
	err := slow.Do(ctx, zap.NewNop(), "send", func(context.Context) error {
		calls++
		cancel()
		return &domain.TransientError{Op: "send", Err: errors.New("timeout")}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, 4, Short.Attempts())
	assert.Equal(t, 6, Long.Attempts())
	assert.Equal(t, 12*time.Second, Long.Delays[len(Long.Delays)-1])
}
