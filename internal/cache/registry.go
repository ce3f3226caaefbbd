package cache

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Handle is the uniform view the registry holds over any cache.
type Handle interface {
	Name() string
	Size() int
	Clear() int
	Stats() Stats
}

// Registry tracks every named cache in the process. Pressure eviction
// clears caches in ascending priority order (lower number goes first)
// until the caller's predicate reports the pressure has abated.
type Registry struct {
	mu       sync.Mutex
	caches   map[string]Handle
	priority map[string]int
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		caches:   make(map[string]Handle),
		priority: make(map[string]int),
		logger:   logger,
	}
}

// Register adds a cache under its name with an eviction priority.
// Re-registering a name replaces the previous handle.
func (r *Registry) Register(c Handle, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caches[c.Name()] = c
	r.priority[c.Name()] = priority
}

// Lookup returns the handle registered under name.
func (r *Registry) Lookup(name string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[name]
	return c, ok
}

// ClearAll clears every registered cache and returns per-cache evicted
// counts. A cache failing to clear is logged and skipped.
func (r *Registry) ClearAll() map[string]int {
	counts := make(map[string]int)
	for _, c := range r.snapshot() {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("cache clear panicked",
						zap.String("cache", c.Name()),
						zap.Any("panic", rec))
				}
			}()
			counts[c.Name()] = c.Clear()
		}()
	}
	return counts
}

// PressureClear clears caches in priority order until stillPressured
// reports false or every cache is drained. Returns total evictions.
func (r *Registry) PressureClear(stillPressured func() bool) int {
	total := 0
	for _, c := range r.snapshot() {
		if stillPressured != nil && !stillPressured() {
			break
		}
		n := c.Clear()
		total += n
		if n > 0 {
			r.logger.Warn("cache cleared under memory pressure",
				zap.String("cache", c.Name()),
				zap.Int("evicted", n))
		}
	}
	return total
}

// AllStats returns stats for every registered cache, name-sorted.
func (r *Registry) AllStats() []Stats {
	handles := r.snapshot()
	stats := make([]Stats, 0, len(handles))
	for _, c := range handles {
		stats = append(stats, c.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// snapshot returns the registered handles ordered by eviction priority,
// ties broken by name for determinism.
func (r *Registry) snapshot() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := make([]Handle, 0, len(r.caches))
	for _, c := range r.caches {
		handles = append(handles, c)
	}
	sort.Slice(handles, func(i, j int) bool {
		pi, pj := r.priority[handles[i].Name()], r.priority[handles[j].Name()]
		if pi != pj {
			return pi < pj
		}
		return handles[i].Name() < handles[j].Name()
	})
	return handles
}
