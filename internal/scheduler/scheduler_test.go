package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// mockSweeper counts calls and signals each one
type mockSweeper struct {
	calls   atomic.Int32
	removed int
	err     error
	called  chan struct{}
}

func newMockSweeper() *mockSweeper {
	return &mockSweeper{called: make(chan struct{}, 16)}
}

func (m *mockSweeper) Sweep(ctx context.Context) (int, error) {
	m.calls.Add(1)
	select {
	case m.called <- struct{}{}:
	default:
	}
	return m.removed, m.err
}

// fastSchedule fires every d; cron descriptors stop at one second
type fastSchedule time.Duration

func (f fastSchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(f))
}

func newFastScheduler(t *testing.T, sweeper Sweeper, logger *zap.Logger) *Scheduler {
	t.Helper()
	s, err := NewScheduler("@every 1s", sweeper, logger)
	require.NoError(t, err)
	s.schedule = fastSchedule(10 * time.Millisecond)
	return s
}

// exhaustedSchedule never fires again
type exhaustedSchedule struct{}

func (exhaustedSchedule) Next(time.Time) time.Time {
	return time.Time{}
}

func waitForCall(t *testing.T, m *mockSweeper) {
	t.Helper()
	select {
	case <-m.called:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep was not run")
	}
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	_, err := NewScheduler("not a schedule", newMockSweeper(), zap.NewNop())
	assert.Error(t, err)

	s, err := NewScheduler("@hourly", newMockSweeper(), zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sweeper := newMockSweeper()
	sweeper.removed = 3

	s := newFastScheduler(t, sweeper, zap.New(core))

	s.Start(context.Background())
	waitForCall(t, sweeper)
	waitForCall(t, sweeper)
	s.Stop()

	assert.GreaterOrEqual(t, sweeper.calls.Load(), int32(2))
	assert.NotZero(t, logs.FilterMessage("Orphan sweep finished").Len())
	assert.Equal(t, 1, logs.FilterMessage("Scheduler stopped").Len())
}

func TestScheduler_LogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	sweeper := newMockSweeper()
	sweeper.err = errors.New("bucket unreachable")

	s := newFastScheduler(t, sweeper, zap.New(core))

	s.Start(context.Background())
	waitForCall(t, sweeper)
	s.Stop()

	assert.NotZero(t, logs.FilterMessage("Orphan sweep failed").Len())
}

func TestScheduler_StopsWithContext(t *testing.T) {
	s, err := NewScheduler("@hourly", newMockSweeper(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	s.Stop()
}

func TestScheduler_ExhaustedScheduleStops(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sweeper := newMockSweeper()
	s, err := NewScheduler("@hourly", sweeper, zap.New(core))
	require.NoError(t, err)
	s.schedule = exhaustedSchedule{}

	s.Start(context.Background())
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler kept running without activations")
	}
	s.Stop()

	assert.Zero(t, sweeper.calls.Load())
	assert.Equal(t, 1, logs.FilterMessage("Sweep schedule has no further activations").Len())
}
