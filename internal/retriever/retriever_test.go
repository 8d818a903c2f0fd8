package retriever

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupFunc func(ctx context.Context, id string) (bool, error)

func (f lookupFunc) RetrieverIDExists(ctx context.Context, id string) (bool, error) {
	return f(ctx, id)
}

func TestGenerateMatchesPattern(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9]{1,5}$`)
	lengths := map[int]bool{}
	for i := 0; i < 2000; i++ {
		id := Generate()
		require.Regexp(t, pattern, id)
		lengths[len(id)] = true
	}
	assert.Len(t, lengths, 5, "every length from 1 to 5 should appear")
}

func TestAllocateReturnsFirstFreeCandidate(t *testing.T) {
	used := map[string]bool{"11": true, "22": true}
	a := NewAllocator(lookupFunc(func(_ context.Context, id string) (bool, error) {
		return used[id], nil
	}), 10, nil)
	candidates := []string{"11", "22", "33"}
	a.generate = func() string {
		next := candidates[0]
		candidates = candidates[1:]
		return next
	}

	id, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "33", id)
}

func TestAllocateAcceptsCandidateOnLookupError(t *testing.T) {
	calls := 0
	a := NewAllocator(lookupFunc(func(context.Context, string) (bool, error) {
		calls++
		return false, errors.New("db down")
	}), 10, nil)
	a.generate = func() string { return "7" }

	id, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7", id)
	assert.Equal(t, 1, calls)
}

func TestAllocateExhausted(t *testing.T) {
	calls := 0
	a := NewAllocator(lookupFunc(func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	}), 3, nil)

	_, err := a.Allocate(context.Background())
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, calls)
}

func TestAllocateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := NewAllocator(lookupFunc(func(context.Context, string) (bool, error) {
		t.Fatal("lookup should not run")
		return false, nil
	}), 3, nil)

	_, err := a.Allocate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAllocatedIDsAreDistinctFromExisting(t *testing.T) {
	used := map[string]bool{}
	a := NewAllocator(lookupFunc(func(_ context.Context, id string) (bool, error) {
		return used[id], nil
	}), DefaultMaxAttempts, nil)

	for i := 0; i < 300; i++ {
		id, err := a.Allocate(context.Background())
		require.NoError(t, err)
		require.False(t, used[id], "allocator returned taken id %q", id)
		used[id] = true
	}
}
