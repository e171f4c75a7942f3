package annotation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LoreKit/internal/intelligence/lore_parser"
	apperrors "github.com/turtacn/LoreKit/pkg/errors"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type countingBuilder struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
	gate  chan struct{}
}

func newCountingBuilder() *countingBuilder {
	return &countingBuilder{calls: map[string]int{}}
}

func (b *countingBuilder) BuildProject(ctx context.Context, project string) (*lore_parser.Parser, error) {
	b.mu.Lock()
	b.calls[project]++
	err, gate := b.err, b.gate
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return lore_parser.NewParser(nil, nil), nil
}

func (b *countingBuilder) count(project string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[project]
}

type fakeRecorder struct {
	mu        sync.Mutex
	hits      int
	misses    int
	builds    int
	buildErrs int
	parses    int
	hitKinds  map[string]int
	links     map[string][2]int
	cached    int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{hitKinds: map[string]int{}, links: map[string][2]int{}}
}

func (r *fakeRecorder) ObserveParse(string, int, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parses++
}

func (r *fakeRecorder) ObserveHit(kind, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hitKinds[kind]++
}

func (r *fakeRecorder) ObserveCacheLookup(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *fakeRecorder) ObserveBuild(_ string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builds++
	if err != nil {
		r.buildErrs++
	}
}

func (r *fakeRecorder) ObserveLink(strategy string, resolved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.links[strategy]
	if resolved {
		c[0]++
	} else {
		c[1]++
	}
	r.links[strategy] = c
}

func (r *fakeRecorder) SetCachedProjects(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = n
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestProjectCache_MissThenHit(t *testing.T) {
	t.Parallel()
	b := newCountingBuilder()
	rec := newFakeRecorder()
	c := NewProjectCache(b, CacheOptions{Recorder: rec}, nil)

	p1, err := c.Get(context.Background(), "mythos")
	require.NoError(t, err)
	p2, err := c.Get(context.Background(), "mythos")
	require.NoError(t, err)

	assert.Same(t, p1, p2)
	assert.Equal(t, 1, b.count("mythos"))
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)
	assert.Equal(t, 1, rec.cached)
	assert.Equal(t, []string{"mythos"}, c.Projects())
}

func TestProjectCache_FailedBuildNotCached(t *testing.T) {
	t.Parallel()
	b := newCountingBuilder()
	b.err = apperrors.New(apperrors.ErrCodeRuleFileMalformed, "bad overlay")
	rec := newFakeRecorder()
	c := NewProjectCache(b, CacheOptions{Recorder: rec}, nil)

	_, err := c.Get(context.Background(), "mythos")
	require.Error(t, err)
	_, err = c.Get(context.Background(), "mythos")
	require.Error(t, err)

	assert.Equal(t, 2, b.count("mythos"))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 2, rec.buildErrs)
}

func TestProjectCache_RejectsInvalidProject(t *testing.T) {
	t.Parallel()
	b := newCountingBuilder()
	c := NewProjectCache(b, CacheOptions{}, nil)

	_, err := c.Get(context.Background(), "a/b")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidProject))
	assert.Equal(t, 0, b.count("a/b"))
}

func TestProjectCache_Invalidate(t *testing.T) {
	t.Parallel()
	b := newCountingBuilder()
	c := NewProjectCache(b, CacheOptions{SingleFlight: true}, nil)
	ctx := context.Background()

	for _, p := range []string{"mythos", "saga", "atlas"} {
		_, err := c.Get(ctx, p)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"atlas", "mythos", "saga"}, c.Projects())

	c.Invalidate("saga")
	assert.Equal(t, 2, c.Len())
	_, err := c.Get(ctx, "saga")
	require.NoError(t, err)
	assert.Equal(t, 2, b.count("saga"))

	c.Invalidate("never-built")
	c.InvalidateAll()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Projects())
}

func TestProjectCache_ConcurrentGets(t *testing.T) {
	t.Parallel()
	b := newCountingBuilder()
	c := NewProjectCache(b, CacheOptions{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Get(context.Background(), "mythos")
			assert.NoError(t, err)
			assert.NotNil(t, p)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.Len())
	assert.GreaterOrEqual(t, b.count("mythos"), 1)
}

func TestProjectCache_SingleFlightBuildsOnce(t *testing.T) {
	t.Parallel()
	b := newCountingBuilder()
	b.gate = make(chan struct{})
	c := NewProjectCache(b, CacheOptions{SingleFlight: true}, nil)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*lore_parser.Parser, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := c.Get(context.Background(), "mythos")
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}

	require.Eventually(t, func() bool { return b.count("mythos") == 1 }, time.Second, 5*time.Millisecond)
	close(b.gate)
	wg.Wait()

	assert.Equal(t, 1, b.count("mythos"))
	for _, p := range results {
		assert.Same(t, results[0], p)
	}
}

func TestProjectCache_SingleFlightSharesError(t *testing.T) {
	t.Parallel()
	b := newCountingBuilder()
	b.err = errors.New("boom")
	c := NewProjectCache(b, CacheOptions{SingleFlight: true}, nil)

	_, err := c.Get(context.Background(), "mythos")
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 0, c.Len())
}

func TestProjectCache_InvalidateDuringBuildDropsResult(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		singleFlight bool
		invalidate   func(c *ProjectCache)
	}{
		{"invalidate", false, func(c *ProjectCache) { c.Invalidate("mythos") }},
		{"invalidate all", false, func(c *ProjectCache) { c.InvalidateAll() }},
		{"invalidate single flight", true, func(c *ProjectCache) { c.Invalidate("mythos") }},
		{"invalidate all single flight", true, func(c *ProjectCache) { c.InvalidateAll() }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := newCountingBuilder()
			b.gate = make(chan struct{})
			c := NewProjectCache(b, CacheOptions{SingleFlight: tt.singleFlight}, nil)

			done := make(chan *lore_parser.Parser, 1)
			go func() {
				p, err := c.Get(context.Background(), "mythos")
				assert.NoError(t, err)
				done <- p
			}()
			require.Eventually(t, func() bool { return b.count("mythos") == 1 }, time.Second, 5*time.Millisecond)

			tt.invalidate(c)
			close(b.gate)
			stale := <-done

			// the caller still gets its parser, the cache does not keep it
			require.NotNil(t, stale)
			assert.Equal(t, 0, c.Len())

			b.mu.Lock()
			b.gate = nil
			b.mu.Unlock()

			fresh, err := c.Get(context.Background(), "mythos")
			require.NoError(t, err)
			assert.NotSame(t, stale, fresh)
			assert.Equal(t, 2, b.count("mythos"))
			assert.Equal(t, 1, c.Len())
		})
	}
}
