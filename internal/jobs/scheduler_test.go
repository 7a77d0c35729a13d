package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEnqueuer struct {
	calls atomic.Int32
	err   error
}

func (e *countingEnqueuer) EnqueueReconcile(context.Context) error {
	e.calls.Add(1)
	return e.err
}

func TestSchedulerEnqueuesOnSchedule(t *testing.T) {
	q := &countingEnqueuer{}
	s := NewScheduler(q, "* * * * * *", zerolog.Nop())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return q.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&countingEnqueuer{}, "not a schedule", zerolog.Nop())
	assert.Error(t, s.Start())
}

func TestSchedulerDisabledWithoutSchedule(t *testing.T) {
	q := &countingEnqueuer{}
	s := NewScheduler(q, "", zerolog.Nop())
	require.NoError(t, s.Start())
	s.Stop()
	assert.Zero(t, q.calls.Load())
}

func TestEnqueueFailureIsLogged(t *testing.T) {
	q := &countingEnqueuer{err: errors.New("redis down")}
	s := NewScheduler(q, "* * * * * *", zerolog.Nop())

	s.enqueueReconcile()
	assert.Equal(t, int32(1), q.calls.Load())
}
