// Package breakpoints holds the line breakpoints of one debug session, keyed by
// client file path.
//
// The device only honours breakpoints compiled into the deployed source, so a
// Store is locked when the program launches and rejects every later change
// made through Set.
package breakpoints

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/ctagard/brs-dap/internal/errors"
	"github.com/ctagard/brs-dap/internal/paths"
	"github.com/ctagard/brs-dap/pkg/types"
)

// Store is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	nextID int
	locked bool
	sets   map[string][]types.Breakpoint
}

// NewStore returns an empty, unlocked store.
func NewStore() *Store {
	return &Store{sets: make(map[string][]types.Breakpoint)}
}

// Set replaces every breakpoint of clientPath with one per distinct line.
// IDs are fresh and never reused. Lines below 1 are ignored. An empty lines
// slice clears the file. After Lock, Set returns a BreakpointsLocked error
// and leaves the store untouched.
func (s *Store) Set(clientPath string, lines []int) ([]types.Breakpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return nil, errors.BreakpointsLocked().WithDetails("path", clientPath)
	}

	uniq := make(map[int]struct{}, len(lines))
	sorted := make([]int, 0, len(lines))
	for _, l := range lines {
		if l < 1 {
			continue
		}
		if _, dup := uniq[l]; dup {
			continue
		}
		uniq[l] = struct{}{}
		sorted = append(sorted, l)
	}
	sort.Ints(sorted)

	key := filepath.Clean(clientPath)
	if len(sorted) == 0 {
		delete(s.sets, key)
		return []types.Breakpoint{}, nil
	}

	set := make([]types.Breakpoint, len(sorted))
	for i, l := range sorted {
		s.nextID++
		set[i] = types.Breakpoint{ID: s.nextID, Line: l, Verified: true}
	}
	s.sets[key] = set

	return clone(set), nil
}

// Get returns the breakpoints of clientPath in ascending line order.
func (s *Store) Get(clientPath string) []types.Breakpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.sets[filepath.Clean(clientPath)])
}

// Lines returns the breakpoint lines of clientPath in ascending order.
func (s *Store) Lines(clientPath string) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.sets[filepath.Clean(clientPath)]
	lines := make([]int, len(set))
	for i, bp := range set {
		lines[i] = bp.Line
	}
	return lines
}

// Paths returns every file with at least one breakpoint, sorted.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.sets))
	for p := range s.sets {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// All returns a copy of every breakpoint set.
func (s *Store) All() map[string][]types.Breakpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]types.Breakpoint, len(s.sets))
	for p, set := range s.sets {
		out[p] = clone(set)
	}
	return out
}

// Count returns the number of stored breakpoints.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, set := range s.sets {
		n += len(set)
	}
	return n
}

// Lock rejects all further Set calls.
func (s *Store) Lock() {
	s.mu.Lock()
	s.locked = true
	s.mu.Unlock()
}

// Rekey moves every path under fromRoot to the same relative path under
// toRoot. Paths outside fromRoot keep their key. Equal roots are a no-op.
func (s *Store) Rekey(fromRoot, toRoot string) {
	if fromRoot == "" || toRoot == "" || filepath.Clean(fromRoot) == filepath.Clean(toRoot) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	moved := make(map[string][]types.Breakpoint, len(s.sets))
	for p, set := range s.sets {
		np, _ := paths.Rebase(p, fromRoot, toRoot)
		moved[np] = set
	}
	s.sets = moved
}

// MergeEntry adds the synthetic entry breakpoint at line of clientPath.
// It is discarded, and ok is false, when a breakpoint already sits on the
// same, previous or next line. MergeEntry ignores the lock: it runs as part
// of the launch.
func (s *Store) MergeEntry(clientPath string, line int) (bp types.Breakpoint, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := filepath.Clean(clientPath)
	set := s.sets[key]
	for _, existing := range set {
		if d := existing.Line - line; d >= -1 && d <= 1 {
			return types.Breakpoint{}, false
		}
	}

	s.nextID++
	bp = types.Breakpoint{ID: s.nextID, Line: line, Verified: true, Entry: true}

	i := sort.Search(len(set), func(i int) bool { return set[i].Line > line })
	set = append(set, types.Breakpoint{})
	copy(set[i+1:], set[i:])
	set[i] = bp
	s.sets[key] = set

	return bp, true
}

// Entry returns the merged entry breakpoint and its file.
func (s *Store) Entry() (string, types.Breakpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for p, set := range s.sets {
		for _, bp := range set {
			if bp.Entry {
				return p, bp, true
			}
		}
	}
	return "", types.Breakpoint{}, false
}

func clone(set []types.Breakpoint) []types.Breakpoint {
	if set == nil {
		return []types.Breakpoint{}
	}
	return append([]types.Breakpoint(nil), set...)
}
