package dap

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctagard/brs-dap/internal/errors"
	"github.com/ctagard/brs-dap/pkg/types"
)

func TestTranslateStackFrames(t *testing.T) {
	frames := translateStackFrames([]types.StackFrame{
		{ID: 1, Name: "Main", Path: "/app/source/main.brs", Line: 3, Column: 1, Resolved: true},
		{ID: 2, Name: "helper", Path: "pkg:/lib/vendor.brs", Line: 9, Column: 1},
	})
	require.Len(t, frames, 2)

	assert.Equal(t, "main.brs", frames[0].Source.Name)
	assert.Equal(t, "/app/source/main.brs", frames[0].Source.Path)
	assert.Empty(t, frames[0].PresentationHint)

	assert.Equal(t, "pkg:/lib/vendor.brs", frames[1].Source.Name)
	assert.Empty(t, frames[1].Source.Path)
	assert.Equal(t, "subtle", frames[1].PresentationHint)
}

func TestTranslateVariablesMarksFunctions(t *testing.T) {
	vars := translateVariables([]types.Variable{
		{Name: "cb", Value: "<Function: cb>", HighLevelType: types.HighLevelFunction},
		{Name: "n", Value: "1", Type: "Integer", HighLevelType: types.HighLevelPrimitive},
	})
	require.NotNil(t, vars[0].PresentationHint)
	assert.Equal(t, "method", vars[0].PresentationHint.Kind)
	assert.Nil(t, vars[1].PresentationHint)
	assert.Equal(t, "Integer", vars[1].Type)
}

func TestPaging(t *testing.T) {
	frames := make([]dap.StackFrame, 5)
	for i := range frames {
		frames[i].Id = i + 1
	}

	tests := []struct {
		start, levels int
		want          []int
	}{
		{0, 0, []int{1, 2, 3, 4, 5}},
		{1, 2, []int{2, 3}},
		{3, 10, []int{4, 5}},
		{9, 1, nil},
		{-1, 2, []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d+%d", tt.start, tt.levels), func(t *testing.T) {
			var ids []int
			for _, f := range pageStackFrames(frames, tt.start, tt.levels) {
				ids = append(ids, f.Id)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	vars := []dap.Variable{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	assert.Len(t, pageVariables(vars, 1, 1), 1)
	assert.Equal(t, "b", pageVariables(vars, 1, 1)[0].Name)
	assert.Len(t, pageVariables(vars, 0, 0), 3)
	assert.Len(t, pageVariables(vars, -5, 0), 3)
}

func TestInRequestOrder(t *testing.T) {
	stored := []types.Breakpoint{{ID: 1, Line: 2, Verified: true}, {ID: 2, Line: 3, Verified: true}}

	got := inRequestOrder([]int{3, 2, 3, 0}, stored)
	require.Len(t, got, 4)
	assert.Equal(t, 2, got[0].ID)
	assert.Equal(t, 1, got[1].ID)
	assert.Equal(t, 2, got[2].ID)
	assert.Equal(t, 0, got[3].Line)
	assert.False(t, got[3].Verified)

	assert.Empty(t, inRequestOrder([]int{3}, []types.Breakpoint{}))
}

func TestTranslateError(t *testing.T) {
	msg := translateError(errors.EntryPointNotFound("/app", []string{"RunUserInterface", "Main"}))
	assert.Equal(t, errorIDLaunch, msg.Id)
	assert.True(t, msg.ShowUser)
	assert.Equal(t, "ENTRY_POINT_NOT_FOUND", msg.Variables["code"])

	msg = translateError(errors.NotSuspended("stackTrace"))
	assert.Equal(t, errorIDTiming, msg.Id)
	assert.False(t, msg.ShowUser)

	msg = translateError(fmt.Errorf("plain failure"))
	assert.Equal(t, errorIDGeneric, msg.Id)
	assert.Equal(t, "plain failure", msg.Format)
}

type bufferConn struct {
	io.Reader
	bytes.Buffer
}

func (c *bufferConn) Read(p []byte) (int, error) { return c.Reader.Read(p) }
func (c *bufferConn) Close() error               { return nil }

func TestTransportStampsSequence(t *testing.T) {
	conn := &bufferConn{Reader: bytes.NewReader(nil)}
	tr := NewTransport(conn)

	resp := &dap.ThreadsResponse{}
	resp.Response = dap.Response{ProtocolMessage: dap.ProtocolMessage{Type: "response"}, Command: "threads", Success: true}
	require.NoError(t, tr.Send(resp))
	require.NoError(t, tr.Send(&dap.InitializedEvent{Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Type: "event"}, Event: "initialized"}}))

	assert.Equal(t, 1, resp.Seq)
	assert.Equal(t, 3, tr.NextSeq())

	back := NewTransport(&bufferConn{Reader: bytes.NewReader(conn.Bytes())})
	first, err := back.Receive()
	require.NoError(t, err)
	assert.IsType(t, &dap.ThreadsResponse{}, first)
	second, err := back.Receive()
	require.NoError(t, err)
	evt, ok := second.(*dap.InitializedEvent)
	require.True(t, ok)
	assert.Equal(t, 2, evt.Seq)

	_, err = back.Receive()
	assert.ErrorIs(t, err, io.EOF)
}
