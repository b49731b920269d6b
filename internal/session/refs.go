package session

import (
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ctagard/brs-dap/internal/device"
)

// refTable is the evaluation-reference table of one suspend. Expressions are
// normalised (trimmed, lower-cased: BrightScript identifiers are case
// insensitive) and each container value gets a reference id the IDE can
// expand. Reset starts a new generation; results fetched for an older
// generation are dropped.
type refTable struct {
	mu      sync.Mutex
	gen     uint64
	next    int
	byKey   map[string]*refEntry
	byRef   map[int]*refEntry
	flights singleflight.Group
}

type refEntry struct {
	key  string
	expr string
	ref  int
	// scope entries list the locals of a frame instead of a value
	scope   bool
	frameID int
	result  *device.EvaluationResult
}

func newRefTable() *refTable {
	t := &refTable{}
	t.Reset()
	return t
}

func normalize(expr string) string {
	return strings.ToLower(strings.TrimSpace(expr))
}

// Reset drops every reference.
func (t *refTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.next = 0
	t.byKey = make(map[string]*refEntry)
	t.byRef = make(map[int]*refEntry)
}

func (t *refTable) generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

// cached returns the stored result for expr, if any.
func (t *refTable) cached(expr string) (*device.EvaluationResult, int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byKey[normalize(expr)]
	if !ok || e.result == nil {
		return nil, 0, false
	}
	return e.result, e.ref, true
}

// store records the result of expr for generation gen and returns its
// reference id, zero for values without children.
func (t *refTable) store(gen uint64, expr string, res *device.EvaluationResult) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return 0
	}
	e := t.entryLocked(expr)
	e.result = res
	if res.HighLevelType.HasChildren() {
		t.assignLocked(e)
	}
	return e.ref
}

// reserve gives expr a reference id without a value. The value is fetched
// when the IDE expands it.
func (t *refTable) reserve(expr string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entryLocked(expr)
	t.assignLocked(e)
	return e.ref
}

// scopeRef returns the reference listing the locals of frameID.
func (t *refTable) scopeRef(frameID int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := "\x00scope:" + strconv.Itoa(frameID)
	e, ok := t.byKey[key]
	if !ok {
		e = &refEntry{key: key, scope: true, frameID: frameID}
		t.byKey[key] = e
	}
	t.assignLocked(e)
	return e.ref
}

// lookup resolves a reference id.
func (t *refTable) lookup(ref int) (refEntry, uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byRef[ref]
	if !ok {
		return refEntry{}, t.gen, false
	}
	return *e, t.gen, true
}

// size returns the number of reference ids handed out.
func (t *refTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byRef)
}

func (t *refTable) entryLocked(expr string) *refEntry {
	key := normalize(expr)
	e, ok := t.byKey[key]
	if !ok {
		e = &refEntry{key: key, expr: strings.TrimSpace(expr)}
		t.byKey[key] = e
	}
	return e
}

func (t *refTable) assignLocked(e *refEntry) {
	if e.ref != 0 {
		return
	}
	t.next++
	e.ref = t.next
	t.byRef[e.ref] = e
}
