package annotation

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/internal/intelligence/lore_parser"
)

// CacheOptions configures a ProjectCache.
type CacheOptions struct {
	// SingleFlight collapses concurrent builds of the same project into one.
	SingleFlight bool
	Recorder     Recorder
}

// ProjectCache memoizes one immutable Parser per project id.
//
// Get takes the read lock for the lookup, builds outside any lock on a miss
// and takes the write lock only to insert.  Without SingleFlight two
// concurrent misses for the same project both build and the later insert
// wins; builds are deterministic so the parsers are equivalent, but the work
// is duplicated.
//
// A build that overlaps Invalidate or InvalidateAll still returns its parser
// to the caller but is not inserted, so the next Get rebuilds from the
// current documents.
type ProjectCache struct {
	mu      sync.RWMutex
	parsers map[string]*lore_parser.Parser
	gens    map[string]uint64 // bumped by Invalidate
	epoch   uint64            // bumped by InvalidateAll

	builder  ProjectBuilder
	group    *singleflight.Group
	recorder Recorder
	logger   logging.Logger
}

// NewProjectCache returns an empty cache building through builder.
func NewProjectCache(builder ProjectBuilder, opts CacheOptions, logger logging.Logger) *ProjectCache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &ProjectCache{
		parsers:  make(map[string]*lore_parser.Parser),
		gens:     make(map[string]uint64),
		builder:  builder,
		recorder: opts.Recorder,
		logger:   logger.Named("cache"),
	}
	if c.recorder == nil {
		c.recorder = NopRecorder{}
	}
	if opts.SingleFlight {
		c.group = &singleflight.Group{}
	}
	return c
}

// Get returns the parser of project, building and caching it on a miss.
// Failed builds are not cached.
func (c *ProjectCache) Get(ctx context.Context, project string) (*lore_parser.Parser, error) {
	if err := ValidateProjectID(project); err != nil {
		return nil, err
	}
	c.mu.RLock()
	p, ok := c.parsers[project]
	epoch := c.epoch
	c.mu.RUnlock()
	if ok {
		c.recorder.ObserveCacheLookup(true)
		return p, nil
	}
	c.recorder.ObserveCacheLookup(false)

	if c.group == nil {
		return c.buildAndInsert(ctx, project)
	}
	v, err, shared := c.group.Do(flightKey(project, epoch), func() (interface{}, error) {
		if p, ok := c.lookup(project); ok {
			return p, nil
		}
		return c.buildAndInsert(ctx, project)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("shared parser build", logging.String("project", project))
	}
	return v.(*lore_parser.Parser), nil
}

// flightKey scopes single-flight builds to one InvalidateAll epoch.
func flightKey(project string, epoch uint64) string {
	return project + "@" + strconv.FormatUint(epoch, 10)
}

func (c *ProjectCache) lookup(project string) (*lore_parser.Parser, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.parsers[project]
	return p, ok
}

type generation struct {
	epoch, project uint64
}

func (c *ProjectCache) generation(project string) generation {
	return generation{epoch: c.epoch, project: c.gens[project]}
}

func (c *ProjectCache) buildAndInsert(ctx context.Context, project string) (*lore_parser.Parser, error) {
	c.mu.RLock()
	gen := c.generation(project)
	c.mu.RUnlock()

	start := time.Now()
	p, err := c.builder.BuildProject(ctx, project)
	c.recorder.ObserveBuild(project, time.Since(start), err)
	if err != nil {
		c.logger.Error("project parser build failed", logging.String("project", project), logging.Err(err))
		return nil, err
	}

	c.mu.Lock()
	stale := c.generation(project) != gen
	if !stale {
		c.parsers[project] = p
	}
	n := len(c.parsers)
	c.mu.Unlock()

	if stale {
		c.logger.Debug("discarding parser built before invalidation", logging.String("project", project))
		return p, nil
	}
	c.recorder.SetCachedProjects(n)
	return p, nil
}

// Invalidate drops the cached parser of project.
func (c *ProjectCache) Invalidate(project string) {
	c.mu.Lock()
	_, existed := c.parsers[project]
	delete(c.parsers, project)
	c.gens[project]++
	n := len(c.parsers)
	epoch := c.epoch
	c.mu.Unlock()

	if c.group != nil {
		c.group.Forget(flightKey(project, epoch))
	}
	c.recorder.SetCachedProjects(n)
	if existed {
		c.logger.Info("project parser invalidated", logging.String("project", project))
	}
}

// InvalidateAll empties the cache.
func (c *ProjectCache) InvalidateAll() {
	c.mu.Lock()
	dropped := len(c.parsers)
	c.parsers = make(map[string]*lore_parser.Parser)
	c.gens = make(map[string]uint64)
	c.epoch++
	c.mu.Unlock()

	c.recorder.SetCachedProjects(0)
	c.logger.Info("project parsers invalidated", logging.Int("count", dropped))
}

// Len returns the number of cached parsers.
func (c *ProjectCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.parsers)
}

// Projects returns the cached project ids in sorted order.
func (c *ProjectCache) Projects() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.parsers))
	for p := range c.parsers {
		out = append(out, p)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}
