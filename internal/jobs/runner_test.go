package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reindexFunc func(ctx context.Context) error

func (f reindexFunc) ReindexAllFromPG(ctx context.Context) error { return f(ctx) }

func TestRunOnceRunsJob(t *testing.T) {
	calls := 0
	job := NewSearchReindex(reindexFunc(func(ctx context.Context) error {
		calls++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}), "@every 1h")

	r := NewRunner(nil, job)
	assert.True(t, r.RunOnce(job))
	assert.Equal(t, 1, calls)
}

func TestRunOnceSkipsOverlappingRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	job := NewSearchReindex(reindexFunc(func(context.Context) error {
		close(started)
		<-release
		return nil
	}), "@every 1h")
	r := NewRunner(nil, job)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.RunOnce(job)
	}()
	<-started

	assert.False(t, r.RunOnce(job))
	close(release)
	wg.Wait()

	assert.False(t, r.running.Contains(job.Name()))
}

func TestRunOnceReleasesAfterFailure(t *testing.T) {
	job := NewSearchReindex(reindexFunc(func(context.Context) error {
		return errors.New("meili down")
	}), "@every 1h")
	r := NewRunner(nil, job)

	assert.True(t, r.RunOnce(job))
	assert.True(t, r.RunOnce(job))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	job := NewSearchReindex(reindexFunc(func(context.Context) error { return nil }), "not a schedule")
	r := NewRunner(nil, job)
	require.Error(t, r.Start())
}

func TestStartAndStop(t *testing.T) {
	job := NewSearchReindex(reindexFunc(func(context.Context) error { return nil }), "@every 1h")
	r := NewRunner(nil, job)
	require.NoError(t, r.Start())
	r.Stop()
}
