package ingest

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedRunner struct {
	mu    sync.Mutex
	errs  []error
	calls int
	done  chan struct{}
}

func (r *scriptedRunner) RunOnce(context.Context) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.calls < len(r.errs) {
		err = r.errs[r.calls]
	}
	r.calls++
	if r.calls == len(r.errs) {
		close(r.done)
	}
	return &Stats{}, err
}

func (r *scriptedRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestScheduler_BacksOffAfterErrorThenWaitsInterval(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	runner := &scriptedRunner{
		errs: []error{errors.New("boom"), errors.New("boom"), nil},
		done: make(chan struct{}),
	}
	s := NewScheduler(runner, time.Hour, 5*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- s.Start(ctx) }()

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("failed runs were not retried after the backoff")
	}

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, runner.count(), "a successful run waits the full interval")

	cancel()
	select {
	case err := <-result:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_DefaultBackoff(t *testing.T) {
	s := NewScheduler(&scriptedRunner{}, time.Minute, 0, logrus.New())
	assert.Equal(t, DefaultErrorBackoff, s.backoff)
}
