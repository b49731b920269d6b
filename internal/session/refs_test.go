package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ctagard/brs-dap/internal/device"
	"github.com/ctagard/brs-dap/pkg/types"
)

func TestRefTableContainersOnly(t *testing.T) {
	refs := newRefTable()
	gen := refs.generation()

	prim := refs.store(gen, "count", &device.EvaluationResult{HighLevelType: types.HighLevelPrimitive, Value: "3"})
	assert.Zero(t, prim)

	arr := refs.store(gen, "items", &device.EvaluationResult{HighLevelType: types.HighLevelArray})
	assert.Equal(t, 1, arr)

	res, ref, ok := refs.cached("  ITEMS ")
	assert.True(t, ok)
	assert.Equal(t, arr, ref)
	assert.Equal(t, types.HighLevelArray, res.HighLevelType)

	_, ref, ok = refs.cached("count")
	assert.True(t, ok)
	assert.Zero(t, ref)
}

func TestRefTableReserveThenStore(t *testing.T) {
	refs := newRefTable()

	ref := refs.reserve("m.top")
	_, _, ok := refs.cached("m.top")
	assert.False(t, ok, "reserved entries have no value yet")

	entry, _, ok := refs.lookup(ref)
	assert.True(t, ok)
	assert.Equal(t, "m.top", entry.expr)

	got := refs.store(refs.generation(), "M.Top", &device.EvaluationResult{HighLevelType: types.HighLevelObject})
	assert.Equal(t, ref, got)
	assert.Equal(t, 1, refs.size())
}

func TestRefTableStaleGenerationDropped(t *testing.T) {
	refs := newRefTable()
	gen := refs.generation()
	refs.Reset()

	ref := refs.store(gen, "items", &device.EvaluationResult{HighLevelType: types.HighLevelArray})
	assert.Zero(t, ref)
	_, _, ok := refs.cached("items")
	assert.False(t, ok)
}

func TestRefTableScopes(t *testing.T) {
	refs := newRefTable()

	a := refs.scopeRef(1)
	assert.Equal(t, a, refs.scopeRef(1))
	b := refs.scopeRef(2)
	assert.NotEqual(t, a, b)

	entry, _, ok := refs.lookup(a)
	assert.True(t, ok)
	assert.True(t, entry.scope)
	assert.Equal(t, 1, entry.frameID)

	refs.Reset()
	_, _, ok = refs.lookup(a)
	assert.False(t, ok)
	assert.Zero(t, refs.size())
}

func TestChildExpression(t *testing.T) {
	tests := []struct {
		parent string
		kind   types.HighLevelType
		name   string
		want   string
	}{
		{"list", types.HighLevelArray, "0", "list[0]"},
		{"m", types.HighLevelObject, "top", "m.top"},
		{"m", types.HighLevelObject, "item-count", `m["item-count"]`},
		{"m", types.HighLevelObject, "2d", `m["2d"]`},
		{"m.list[1]", types.HighLevelObject, "_id", "m.list[1]._id"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, childExpression(tt.parent, tt.kind, tt.name))
		})
	}
}

func TestToVariable(t *testing.T) {
	v := toVariable("", "x", &device.EvaluationResult{Type: "roArray", HighLevelType: types.HighLevelArray, ElementCount: 4}, 7)
	assert.Equal(t, "x", v.Name)
	assert.Equal(t, "roArray (4)", v.Value)
	assert.Equal(t, 4, v.IndexedVariables)
	assert.Equal(t, 7, v.VariablesReference)

	v = toVariable("y", "y", &device.EvaluationResult{Type: "<uninitialized>", HighLevelType: types.HighLevelUninitialized}, 0)
	assert.Equal(t, "<uninitialized>", v.Value)

	v = toVariable("node", "node", &device.EvaluationResult{Type: "roSGNode", HighLevelType: types.HighLevelObject, ElementCount: 2}, 3)
	assert.Equal(t, "roSGNode", v.Value)
	assert.Equal(t, 2, v.NamedVariables)
}
