package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctagard/brs-dap/internal/config"
	"github.com/ctagard/brs-dap/internal/deploy"
	"github.com/ctagard/brs-dap/internal/device"
	"github.com/ctagard/brs-dap/internal/device/devicetest"
	"github.com/ctagard/brs-dap/internal/log"
	"github.com/ctagard/brs-dap/internal/session"
	"github.com/ctagard/brs-dap/pkg/types"
)

type testEnv struct {
	server *Server
	ctrl   *session.Controller
	fake   *devicetest.Fake
	root   string
}

func newTestEnv(t *testing.T, mode config.CapabilityMode) *testEnv {
	t.Helper()

	root := t.TempDir()
	for rel, body := range map[string]string{
		"manifest":        "title=demo\n",
		"source/main.brs": "sub Main()\nprint \"a\"\nprint \"b\"\nend sub\n",
	} {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	}

	ecp := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	t.Cleanup(ecp.Close)
	d := deploy.NewLocalDeployer([]string{"manifest", "source/**/*"}, log.Discard())
	d.ControlURL = ecp.URL

	fake := devicetest.New()
	registry := device.NewRegistry()
	registry.Register("fake", fake.Dialer())

	manager := session.NewManager(session.ManagerOptions{
		MaxSessions: 2,
		Deployer:    d,
		Registry:    registry,
		Adapter:     "fake",
		Logger:      log.Discard(),
	})
	t.Cleanup(manager.Close)

	cfg := config.DefaultConfig()
	cfg.Mode = mode

	ctrl, err := manager.CreateSession()
	require.NoError(t, err)

	return &testEnv{
		server: NewServer(cfg, manager, log.Discard()),
		ctrl:   ctrl,
		fake:   fake,
		root:   root,
	}
}

func (e *testEnv) launch(t *testing.T) {
	t.Helper()
	e.ctrl.SetBreakpoints(filepath.Join(e.root, "source", "main.brs"), []int{3})
	require.NoError(t, e.ctrl.Launch(context.Background(), types.LaunchConfig{
		Host:                "192.168.1.50",
		RootDir:             e.root,
		StagingDir:          filepath.Join(t.TempDir(), "staging"),
		OutDir:              t.TempDir(),
		RetainStagingFolder: true,
	}))
}

func (e *testEnv) suspend(t *testing.T) {
	t.Helper()
	e.fake.SetFrames(device.Frame{FilePath: "pkg:/source/main.brs", LineNumber: 4, FunctionIdentifier: "main"})
	e.fake.Suspend()
	require.Eventually(t, func() bool { return e.ctrl.State() == types.SessionStateSuspended },
		2*time.Second, 10*time.Millisecond)
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func decode(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	return out
}

func TestSessionList(t *testing.T) {
	env := newTestEnv(t, config.ModeReadOnly)

	out := decode(t, call(t, env.server.handleSessionList, nil))
	assert.Equal(t, float64(1), out["count"])
	sessions := out["sessions"].([]any)
	assert.Equal(t, env.ctrl.ID(), sessions[0].(map[string]any)["sessionId"])
	assert.Equal(t, "idle", sessions[0].(map[string]any)["state"])
}

func TestSessionBreakpoints(t *testing.T) {
	env := newTestEnv(t, config.ModeReadOnly)
	env.ctrl.SetBreakpoints(filepath.Join(env.root, "source", "main.brs"), []int{3})

	out := decode(t, call(t, env.server.handleSessionBreakpoints, map[string]any{"sessionId": env.ctrl.ID()}))
	files := out["files"].([]any)
	require.Len(t, files, 1)
	bps := files[0].(map[string]any)["breakpoints"].([]any)
	require.Len(t, bps, 1)
	assert.Equal(t, float64(3), bps[0].(map[string]any)["line"])
	assert.NotContains(t, bps[0].(map[string]any), "deviceLine")
}

func TestSessionBreakpointsReportDeviceLines(t *testing.T) {
	env := newTestEnv(t, config.ModeReadOnly)
	env.launch(t)

	out := decode(t, call(t, env.server.handleSessionBreakpoints, map[string]any{"sessionId": env.ctrl.ID()}))
	files := out["files"].([]any)
	require.Len(t, files, 1)
	bps := files[0].(map[string]any)["breakpoints"].([]any)
	require.Len(t, bps, 1)
	assert.Equal(t, float64(3), bps[0].(map[string]any)["line"])
	assert.Equal(t, float64(4), bps[0].(map[string]any)["deviceLine"])
}

func TestSessionStack(t *testing.T) {
	env := newTestEnv(t, config.ModeReadOnly)
	env.launch(t)

	out := decode(t, call(t, env.server.handleSessionStack, map[string]any{"sessionId": env.ctrl.ID()}))
	assert.Empty(t, out["frames"])

	env.fake.Locals = []string{"count"}
	env.fake.SetVariable("count", &device.EvaluationResult{
		Name: "count", Value: "7", Type: "Integer", HighLevelType: types.HighLevelPrimitive,
	})
	env.suspend(t)

	out = decode(t, call(t, env.server.handleSessionStack, map[string]any{"sessionId": env.ctrl.ID()}))
	frames := out["frames"].([]any)
	require.Len(t, frames, 1)
	assert.Equal(t, float64(3), frames[0].(map[string]any)["line"])
	locals := out["locals"].([]any)
	require.Len(t, locals, 1)
	assert.Equal(t, "7", locals[0].(map[string]any)["value"])
}

func TestSessionEvaluate(t *testing.T) {
	env := newTestEnv(t, config.ModeReadOnly)
	env.launch(t)

	res := call(t, env.server.handleSessionEvaluate, map[string]any{"sessionId": env.ctrl.ID(), "expression": "x"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "NOT_SUSPENDED")

	env.fake.SetVariable("x", &device.EvaluationResult{Name: "x", Value: "true", Type: "Boolean", HighLevelType: types.HighLevelPrimitive})
	env.suspend(t)

	out := decode(t, call(t, env.server.handleSessionEvaluate, map[string]any{"sessionId": env.ctrl.ID(), "expression": "x"}))
	assert.Equal(t, "true", out["result"])
	assert.Equal(t, "Boolean", out["type"])
}

func TestSessionEvaluateDisabled(t *testing.T) {
	env := newTestEnv(t, config.ModeReadOnly)
	env.server.config.AllowEvaluate = false

	res := call(t, env.server.handleSessionEvaluate, map[string]any{"sessionId": env.ctrl.ID(), "expression": "x"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "PERMISSION_DENIED")
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t, config.ModeReadOnly)

	res := call(t, env.server.handleSessionStack, map[string]any{"sessionId": "nope"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "SESSION_NOT_FOUND")

	res = call(t, env.server.handleSessionStack, nil)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "sessionId")
}

func TestControlTools(t *testing.T) {
	env := newTestEnv(t, config.ModeFull)
	env.launch(t)
	id := map[string]any{"sessionId": env.ctrl.ID()}

	res := call(t, env.server.handleSessionContinue, id)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "Cannot continue while the session is connected")

	env.suspend(t)
	out := decode(t, call(t, env.server.handleSessionStep, map[string]any{"sessionId": env.ctrl.ID(), "type": "into"}))
	assert.Equal(t, "running", out["state"])
	assert.Equal(t, 1, env.fake.Calls("stepInto"))

	res = call(t, env.server.handleSessionStep, map[string]any{"sessionId": env.ctrl.ID(), "type": "sideways"})
	assert.True(t, res.IsError)

	decode(t, call(t, env.server.handleSessionPause, id))
	assert.Equal(t, 1, env.fake.Calls("pause"))

	res = call(t, env.server.handleSessionDisconnect, id)
	require.False(t, res.IsError)
	assert.Equal(t, types.SessionStateTerminated, env.ctrl.State())
}

// toolNames lists the registered tools through the JSON-RPC surface.
func toolNames(t *testing.T, s *Server) []string {
	t.Helper()
	msg := s.mcpServer.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	names := make([]string, 0, len(resp.Result.Tools))
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func TestControlToolsRegisteredOnlyInFullMode(t *testing.T) {
	readonly := toolNames(t, newTestEnv(t, config.ModeReadOnly).server)
	full := toolNames(t, newTestEnv(t, config.ModeFull).server)

	assert.ElementsMatch(t, []string{"session_list", "session_breakpoints", "session_stack", "session_evaluate"}, readonly)
	assert.Len(t, full, 8)
	assert.Contains(t, full, "session_continue")
	assert.Contains(t, full, "session_disconnect")
}
