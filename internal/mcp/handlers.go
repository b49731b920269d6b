package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ctagard/brs-dap/internal/errors"
	"github.com/ctagard/brs-dap/internal/inject"
	"github.com/ctagard/brs-dap/internal/session"
	"github.com/ctagard/brs-dap/pkg/types"
)

const defaultStackDepth = 20

func (s *Server) handleSessionList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := s.manager.ListSessions()
	return jsonResult(map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// breakpointView is a breakpoint as the agent sees it. DeviceLine is where
// the breakpoint's statement sits in the deployed source once STOP
// statements are injected.
type breakpointView struct {
	types.Breakpoint
	DeviceLine int `json:"deviceLine,omitempty"`
}

func (s *Server) handleSessionBreakpoints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctrl, err := s.getSession(request)
	if err != nil {
		return errorResult(err), nil
	}

	state := ctrl.State()
	injected := state != types.SessionStateIdle && state != types.SessionStateLaunching

	all := ctrl.Breakpoints()
	paths := make([]string, 0, len(all))
	for p := range all {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	files := make([]map[string]interface{}, 0, len(paths))
	for _, p := range paths {
		set := all[p]
		lines := make([]int, len(set))
		for i, bp := range set {
			lines[i] = bp.Line
		}
		views := make([]breakpointView, len(set))
		for i, bp := range set {
			views[i] = breakpointView{Breakpoint: bp}
			if injected {
				views[i].DeviceLine = inject.ClientLineToDeviceLine(lines, bp.Line)
			}
		}
		files = append(files, map[string]interface{}{
			"path":        p,
			"breakpoints": views,
		})
	}
	return jsonResult(map[string]interface{}{
		"sessionId": ctrl.ID(),
		"state":     state,
		"files":     files,
	})
}

func (s *Server) handleSessionStack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctrl, err := s.getSession(request)
	if err != nil {
		return errorResult(err), nil
	}

	maxDepth := int(request.GetFloat("maxStackDepth", defaultStackDepth))
	expand := request.GetBool("expandVariables", true)

	frames, err := ctrl.StackTrace(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	total := len(frames)
	if maxDepth > 0 && len(frames) > maxDepth {
		frames = frames[:maxDepth]
	}

	snapshot := map[string]interface{}{
		"sessionId":   ctrl.ID(),
		"state":       ctrl.State(),
		"frames":      frames,
		"totalFrames": total,
	}

	if expand && len(frames) > 0 {
		scopes := ctrl.Scopes(frames[0].ID)
		locals := []types.Variable{}
		for _, scope := range scopes {
			vars, err := ctrl.Variables(ctx, scope.VariablesReference)
			if err != nil {
				snapshot["variablesError"] = err.Error()
				break
			}
			locals = append(locals, vars...)
		}
		snapshot["locals"] = locals
	}

	return jsonResult(snapshot)
}

func (s *Server) handleSessionEvaluate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.config.CanEvaluate() {
		return errorResult(errors.PermissionDenied("evaluate", string(s.config.Mode))), nil
	}

	ctrl, err := s.getSession(request)
	if err != nil {
		return errorResult(err), nil
	}

	expression, err := request.RequireString("expression")
	if err != nil || expression == "" {
		return errorResult(errors.MissingParameter("expression",
			"Provide a BrightScript expression such as \"m.top\" or \"items[0]\".")), nil
	}
	evalContext := request.GetString("context", "watch")

	if ctrl.State() != types.SessionStateSuspended {
		return errorResult(errors.NotSuspended("evaluate")), nil
	}

	result, err := ctrl.Evaluate(ctx, expression, evalContext)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]interface{}{
		"expression":         expression,
		"result":             result.Result,
		"type":               result.Type,
		"variablesReference": result.VariablesReference,
	})
}

// Control handlers

func (s *Server) handleSessionContinue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.control(request, "continue", func(ctrl *session.Controller) error {
		return ctrl.Continue(ctx)
	})
}

func (s *Server) handleSessionStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stepType := request.GetString("type", "over")

	var step func(*session.Controller) error
	switch stepType {
	case "over":
		step = func(c *session.Controller) error { return c.Next(ctx) }
	case "into":
		step = func(c *session.Controller) error { return c.StepIn(ctx) }
	case "out":
		step = func(c *session.Controller) error { return c.StepOut(ctx) }
	default:
		return errorResult(errors.InvalidParameter("type", stepType, "'over', 'into', or 'out'")), nil
	}
	return s.control(request, "step "+stepType, step)
}

func (s *Server) handleSessionPause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.control(request, "pause", func(ctrl *session.Controller) error {
		return ctrl.Pause(ctx)
	})
}

func (s *Server) handleSessionDisconnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("sessionId")
	if err != nil {
		return errorResult(missingSessionID()), nil
	}
	if err := s.manager.TerminateSession(ctx, sessionID); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s disconnected", sessionID)), nil
}

// control runs an execution-control action. Actions that do not apply in
// the current state are rejected here rather than silently ignored.
func (s *Server) control(request mcp.CallToolRequest, action string, run func(*session.Controller) error) (*mcp.CallToolResult, error) {
	ctrl, err := s.getSession(request)
	if err != nil {
		return errorResult(err), nil
	}

	state := ctrl.State()
	allowed := state == types.SessionStateSuspended
	if action == "pause" {
		allowed = state == types.SessionStateRunning || state == types.SessionStateConnected
	}
	if !allowed {
		return mcp.NewToolResultError(fmt.Sprintf("Cannot %s while the session is %s.", action, state)), nil
	}

	if err := run(ctrl); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]interface{}{
		"sessionId": ctrl.ID(),
		"action":    action,
		"state":     ctrl.State(),
	})
}

func (s *Server) getSession(request mcp.CallToolRequest) (*session.Controller, error) {
	sessionID, err := request.RequireString("sessionId")
	if err != nil {
		return nil, missingSessionID()
	}
	return s.manager.GetSession(sessionID)
}

func missingSessionID() error {
	return errors.MissingParameter("sessionId", "Provide a sessionId. Use session_list to see active sessions.")
}

// errorResult reports err to the agent with its code so it can react to
// the class of failure.
func errorResult(err error) *mcp.CallToolResult {
	de := errors.FromError(err)
	return mcp.NewToolResultError(fmt.Sprintf("%s: %s", de.Code, de.Error()))
}

func jsonResult(data interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
