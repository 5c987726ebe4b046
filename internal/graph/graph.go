// Package graph discovers modules under a root directory, filters them by
// host platform compatibility, and resolves the survivors into a
// deterministic load order via a Kahn-style topological sort.
package graph

import (
	"container/heap"
	"os"
	"path/filepath"
	"sync"

	"github.com/zephyr-sh/zephyr/internal/manifest"
	"github.com/zephyr-sh/zephyr/internal/platform"
	"github.com/zephyr-sh/zephyr/internal/zerrors"
)

// defaultCacheCapacity bounds the discovery cache's LRU eviction.
const defaultCacheCapacity = 128

// Dropped records a module directory that failed to parse during
// discovery. Discovery never aborts on a parse failure; it collects these
// instead.
type Dropped struct {
	Dir string
	Err error
}

// Incompatible records a module the platform filter excluded, with the
// human-readable reason it was dropped.
type Incompatible struct {
	Module *manifest.Module
	Reason string
}

// cacheEntry is a parsed module keyed by its absolute manifest path, plus
// the mtime it was parsed from (so a changed file invalidates the entry).
type cacheEntry struct {
	mod   *manifest.Module
	mtime int64
}

// Cache is a process-local, mutex-guarded LRU over parsed modules, keyed
// by absolute module.toml path. Callers always get a deep clone so no
// caller can mutate cached state out from under another.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    []string // most-recently-used last
	entries  map[string]cacheEntry
}

// NewCache returns a Cache with the given LRU capacity. capacity <= 0
// uses defaultCacheCapacity.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]cacheEntry),
	}
}

func (c *Cache) get(key string, mtime int64) (*manifest.Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.mtime != mtime {
		return nil, false
	}
	c.touch(key)
	return e.mod.Clone(), true
}

func (c *Cache) put(key string, mtime int64, mod *manifest.Module) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = cacheEntry{mod: mod.Clone(), mtime: mtime}
	c.touch(key)
}

func (c *Cache) touch(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, key)
}

// Discover walks each immediate child directory of root, parsing
// module.toml where present. A directory that fails to parse is dropped
// (recorded in dropped) without aborting the walk.
func Discover(root string, cache *Cache) (mods []*manifest.Module, dropped []Dropped, err error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		childDir := filepath.Join(root, entry.Name())
		manifestPath := filepath.Join(childDir, "module.toml")

		info, statErr := os.Stat(manifestPath)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				continue
			}
			dropped = append(dropped, Dropped{Dir: childDir, Err: statErr})
			continue
		}

		if cache != nil {
			if mod, ok := cache.get(manifestPath, info.ModTime().UnixNano()); ok {
				mods = append(mods, mod)
				continue
			}
		}

		mod, parseErr := manifest.Parse(childDir)
		if parseErr != nil {
			dropped = append(dropped, Dropped{Dir: childDir, Err: parseErr})
			continue
		}

		if cache != nil {
			cache.put(manifestPath, info.ModTime().UnixNano(), mod)
		}
		mods = append(mods, mod)
	}

	return mods, dropped, nil
}

// FilterCompatible partitions mods into those compatible with cur and
// those that are not, the latter paired with a human-readable reason.
// Incompatibility is never an error.
func FilterCompatible(mods []*manifest.Module, cur platform.Current) (compatible []*manifest.Module, incompatible []Incompatible) {
	for _, m := range mods {
		if reason, ok := incompatibleReason(m, cur); ok {
			incompatible = append(incompatible, Incompatible{Module: m, Reason: reason})
			continue
		}
		compatible = append(compatible, m)
	}
	return compatible, incompatible
}

func incompatibleReason(m *manifest.Module, cur platform.Current) (string, bool) {
	if len(m.Platforms.OS) > 0 && !contains(m.Platforms.OS, cur.OS) {
		return "os " + cur.OS + " not in " + joinCSV(m.Platforms.OS), true
	}
	if len(m.Platforms.Arch) > 0 && !contains(m.Platforms.Arch, cur.Arch) {
		return "arch " + cur.Arch + " not in " + joinCSV(m.Platforms.Arch), true
	}
	if m.Platforms.Shell != "" && m.Platforms.Shell != cur.Shell {
		return "shell " + cur.Shell + " != required " + m.Platforms.Shell, true
	}
	if m.Platforms.MinVersion != "" && cur.ShellVersion != "" {
		if platform.CompareVersions(cur.ShellVersion, m.Platforms.MinVersion) < 0 {
			return "shell version " + cur.ShellVersion + " < required " + m.Platforms.MinVersion, true
		}
	}
	return "", false
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func joinCSV(vs []string) string {
	out := ""
	for i, v := range vs {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out
}

// readyItem is one entry in the resolve ready-heap: a zero-in-degree
// module ordered by (priority asc, name asc).
type readyItem struct {
	mod *manifest.Module
}

type readyHeap []readyItem

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	if h[i].mod.Priority != h[j].mod.Priority {
		return h[i].mod.Priority < h[j].mod.Priority
	}
	return h[i].mod.Name < h[j].mod.Name
}
func (h readyHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x interface{}) { *h = append(*h, x.(readyItem)) }
func (h *readyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Resolve runs an iterative Kahn-style topological sort over required-dep
// edges, breaking ties within the ready set by (priority asc, name asc).
// Optional deps that exist among mods are respected as soft edges: the
// sort honors them when doing so doesn't introduce a cycle, and silently
// drops them (falling back to the required-deps-only order) otherwise.
// Optional deps that don't exist among mods are ignored.
//
// Returns a *zerrors.GraphError wrapping every MissingRequiredDep if any
// required dep is absent, or CircularDep naming every module that never
// reached zero in-degree under required-deps-only ordering.
func Resolve(mods []*manifest.Module) ([]*manifest.Module, error) {
	byName := make(map[string]*manifest.Module, len(mods))
	for _, m := range mods {
		byName[m.Name] = m
	}

	var missing []zerrors.MissingRequiredDep
	for _, m := range mods {
		for _, dep := range m.RequiredDeps {
			if _, ok := byName[dep]; !ok {
				missing = append(missing, zerrors.MissingRequiredDep{Module: m.Name, Dep: dep})
			}
		}
	}
	if len(missing) > 0 {
		return nil, zerrors.NewMissingDepsError(missing)
	}

	// Try honoring optional soft edges first; if they introduce a cycle,
	// fall back to required-deps-only ordering, which cannot cycle unless
	// the required-dep graph itself does.
	if ordered, ok := kahn(mods, byName, true); ok {
		return ordered, nil
	}
	ordered, ok := kahn(mods, byName, false)
	if !ok {
		residual := residualNames(mods, ordered)
		return nil, zerrors.NewCircularDepError(residual)
	}
	return ordered, nil
}

// kahn runs one topological sort pass. includeOptional controls whether
// existing optional deps are added as edges. Returns ok=false if a cycle
// left nodes unresolved; the partial order is still returned so the
// caller can compute the residual set.
func kahn(mods []*manifest.Module, byName map[string]*manifest.Module, includeOptional bool) ([]*manifest.Module, bool) {
	inDegree := make(map[string]int, len(mods))
	dependents := make(map[string][]string)
	for _, m := range mods {
		inDegree[m.Name] = 0
	}

	for _, m := range mods {
		for _, dep := range m.RequiredDeps {
			inDegree[m.Name]++
			dependents[dep] = append(dependents[dep], m.Name)
		}
		if !includeOptional {
			continue
		}
		for _, dep := range m.OptionalDeps {
			if _, ok := byName[dep]; !ok {
				continue
			}
			inDegree[m.Name]++
			dependents[dep] = append(dependents[dep], m.Name)
		}
	}

	h := &readyHeap{}
	for _, m := range mods {
		if inDegree[m.Name] == 0 {
			heap.Push(h, readyItem{mod: m})
		}
	}

	var ordered []*manifest.Module
	for h.Len() > 0 {
		item := heap.Pop(h).(readyItem)
		ordered = append(ordered, item.mod)

		for _, depName := range dependents[item.mod.Name] {
			inDegree[depName]--
			if inDegree[depName] == 0 {
				heap.Push(h, readyItem{mod: byName[depName]})
			}
		}
	}

	return ordered, len(ordered) == len(mods)
}

func residualNames(mods, ordered []*manifest.Module) []string {
	resolvedNames := make(map[string]struct{}, len(ordered))
	for _, m := range ordered {
		resolvedNames[m.Name] = struct{}{}
	}
	var residual []string
	for _, m := range mods {
		if _, ok := resolvedNames[m.Name]; !ok {
			residual = append(residual, m.Name)
		}
	}
	return residual
}

// BuildReverseDeps returns, for every required dependency in resolved, the
// set of module names that require it. Used by uninstall to detect
// dependents before removing a module.
func BuildReverseDeps(resolved []*manifest.Module) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{})
	for _, m := range resolved {
		for _, dep := range m.RequiredDeps {
			if out[dep] == nil {
				out[dep] = make(map[string]struct{})
			}
			out[dep][m.Name] = struct{}{}
		}
	}
	return out
}
