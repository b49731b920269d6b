package dap

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/go-dap"

	"github.com/ctagard/brs-dap/internal/launchconfig"
	"github.com/ctagard/brs-dap/internal/log"
	"github.com/ctagard/brs-dap/internal/session"
)

// handler dispatches the requests of one IDE connection to its session and
// forwards session events to the IDE. It implements session.Surface.
type handler struct {
	transport *Transport
	ctrl      *session.Controller
	logger    *slog.Logger
	// resolve supplies the context for variables left in launch arguments.
	resolve *launchconfig.ResolutionContext

	configured     chan struct{}
	configuredOnce sync.Once
	terminatedOnce sync.Once

	mu           sync.Mutex
	disconnected bool
}

func newHandler(t *Transport, ctrl *session.Controller, logger *slog.Logger) *handler {
	h := &handler{
		transport:  t,
		ctrl:       ctrl,
		logger:     logger,
		resolve:    &launchconfig.ResolutionContext{},
		configured: make(chan struct{}),
	}
	ctrl.Attach(h)
	return h
}

// send sends a DAP message and logs any write error.
func (h *handler) send(msg dap.Message) {
	if err := h.transport.Send(msg); err != nil {
		h.logger.Warn("dap send failed", log.Error(err))
	}
}

// done reports whether the IDE has disconnected.
func (h *handler) done() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disconnected
}

func (h *handler) handle(ctx context.Context, msg dap.Message) {
	switch req := msg.(type) {
	case *dap.InitializeRequest:
		h.onInitialize(req)
	case *dap.LaunchRequest:
		// launch waits for configurationDone, which arrives on this loop
		go h.onLaunch(ctx, req)
	case *dap.SetBreakpointsRequest:
		h.onSetBreakpoints(req)
	case *dap.SetExceptionBreakpointsRequest:
		h.onSetExceptionBreakpoints(req)
	case *dap.ConfigurationDoneRequest:
		h.onConfigurationDone(req)
	case *dap.ThreadsRequest:
		h.onThreads(ctx, req)
	case *dap.StackTraceRequest:
		h.onStackTrace(ctx, req)
	case *dap.ScopesRequest:
		h.onScopes(req)
	case *dap.VariablesRequest:
		h.onVariables(ctx, req)
	case *dap.EvaluateRequest:
		h.onEvaluate(ctx, req)
	case *dap.ContinueRequest:
		h.onContinue(ctx, req)
	case *dap.NextRequest:
		h.onStep(req.Request, &dap.NextResponse{}, h.ctrl.Next(ctx))
	case *dap.StepInRequest:
		h.onStep(req.Request, &dap.StepInResponse{}, h.ctrl.StepIn(ctx))
	case *dap.StepOutRequest:
		h.onStep(req.Request, &dap.StepOutResponse{}, h.ctrl.StepOut(ctx))
	case *dap.PauseRequest:
		h.onStep(req.Request, &dap.PauseResponse{}, h.ctrl.Pause(ctx))
	case *dap.DisconnectRequest:
		h.onDisconnect(ctx, req)
	case *dap.TerminateRequest:
		h.onTerminate(ctx, req)
	case dap.RequestMessage:
		r := req.GetRequest()
		h.logger.Debug("unsupported request", "command", r.Command)
		h.sendErrorMessage(r, &dap.ErrorMessage{
			Id:     errorIDGeneric,
			Format: "unsupported request: " + r.Command,
		})
	default:
		h.logger.Warn("unhandled message", "type", msg)
	}
}

func (h *handler) onInitialize(req *dap.InitializeRequest) {
	resp := &dap.InitializeResponse{}
	resp.Response = h.newResponse(req.Request)
	resp.Body = dap.Capabilities{
		SupportsConfigurationDoneRequest: true,
		SupportsEvaluateForHovers:        true,
		SupportsTerminateRequest:         true,
		SupportTerminateDebuggee:         true,
		SupportsDelayedStackTraceLoading: true,
	}
	h.send(resp)

	// Tell the client it can send breakpoints and configurationDone.
	h.send(&dap.InitializedEvent{Event: h.newEvent("initialized")})
}

// onLaunch waits for the IDE to finish sending breakpoints, then launches.
func (h *handler) onLaunch(ctx context.Context, req *dap.LaunchRequest) {
	cfg, err := launchconfig.FromLaunchArgs(req.Arguments, h.resolve)
	if err != nil {
		h.sendError(req.Request, err)
		return
	}

	select {
	case <-h.configured:
	case <-h.ctrl.Done():
	case <-ctx.Done():
		return
	}

	if err := h.ctrl.Launch(ctx, *cfg); err != nil {
		h.sendError(req.Request, err)
		return
	}

	resp := &dap.LaunchResponse{}
	resp.Response = h.newResponse(req.Request)
	h.send(resp)
}

func (h *handler) onSetBreakpoints(req *dap.SetBreakpointsRequest) {
	path := req.Arguments.Source.Path
	if path == "" {
		path = req.Arguments.Source.Name
	}

	lines := make([]int, 0, len(req.Arguments.Breakpoints))
	for _, bp := range req.Arguments.Breakpoints {
		lines = append(lines, bp.Line)
	}
	if len(req.Arguments.Breakpoints) == 0 {
		lines = append(lines, req.Arguments.Lines...)
	}

	bps := h.ctrl.SetBreakpoints(path, lines)

	resp := &dap.SetBreakpointsResponse{}
	resp.Response = h.newResponse(req.Request)
	resp.Body.Breakpoints = translateBreakpoints(path, inRequestOrder(lines, bps))
	h.send(resp)
}

func (h *handler) onSetExceptionBreakpoints(req *dap.SetExceptionBreakpointsRequest) {
	// Runtime errors always stop the device.
	resp := &dap.SetExceptionBreakpointsResponse{}
	resp.Response = h.newResponse(req.Request)
	h.send(resp)
}

func (h *handler) onConfigurationDone(req *dap.ConfigurationDoneRequest) {
	resp := &dap.ConfigurationDoneResponse{}
	resp.Response = h.newResponse(req.Request)
	h.send(resp)

	h.configuredOnce.Do(func() { close(h.configured) })
}

func (h *handler) onThreads(ctx context.Context, req *dap.ThreadsRequest) {
	threads, err := h.ctrl.Threads(ctx)
	if err != nil {
		h.sendError(req.Request, err)
		return
	}

	resp := &dap.ThreadsResponse{}
	resp.Response = h.newResponse(req.Request)
	resp.Body.Threads = make([]dap.Thread, len(threads))
	for i, t := range threads {
		resp.Body.Threads[i] = dap.Thread{Id: t.ID, Name: t.Name}
	}
	h.send(resp)
}

func (h *handler) onStackTrace(ctx context.Context, req *dap.StackTraceRequest) {
	frames, err := h.ctrl.StackTrace(ctx)
	if err != nil {
		h.sendError(req.Request, err)
		return
	}

	all := translateStackFrames(frames)
	resp := &dap.StackTraceResponse{}
	resp.Response = h.newResponse(req.Request)
	resp.Body.TotalFrames = len(all)
	resp.Body.StackFrames = pageStackFrames(all, req.Arguments.StartFrame, req.Arguments.Levels)
	h.send(resp)
}

func (h *handler) onScopes(req *dap.ScopesRequest) {
	resp := &dap.ScopesResponse{}
	resp.Response = h.newResponse(req.Request)
	resp.Body.Scopes = translateScopes(h.ctrl.Scopes(req.Arguments.FrameId))
	h.send(resp)
}

func (h *handler) onVariables(ctx context.Context, req *dap.VariablesRequest) {
	vars, err := h.ctrl.Variables(ctx, req.Arguments.VariablesReference)
	if err != nil {
		h.sendError(req.Request, err)
		return
	}

	resp := &dap.VariablesResponse{}
	resp.Response = h.newResponse(req.Request)
	resp.Body.Variables = pageVariables(translateVariables(vars), req.Arguments.Start, req.Arguments.Count)
	h.send(resp)
}

func (h *handler) onEvaluate(ctx context.Context, req *dap.EvaluateRequest) {
	res, err := h.ctrl.Evaluate(ctx, req.Arguments.Expression, req.Arguments.Context)
	if err != nil {
		h.sendError(req.Request, err)
		return
	}

	resp := &dap.EvaluateResponse{}
	resp.Response = h.newResponse(req.Request)
	resp.Body = dap.EvaluateResponseBody{
		Result:             res.Result,
		Type:               res.Type,
		VariablesReference: res.VariablesReference,
		IndexedVariables:   res.IndexedVariables,
		NamedVariables:     res.NamedVariables,
	}
	h.send(resp)
}

func (h *handler) onContinue(ctx context.Context, req *dap.ContinueRequest) {
	if err := h.ctrl.Continue(ctx); err != nil {
		h.sendError(req.Request, err)
		return
	}
	resp := &dap.ContinueResponse{}
	resp.Response = h.newResponse(req.Request)
	resp.Body.AllThreadsContinued = true
	h.send(resp)
}

// onStep answers next, stepIn, stepOut and pause, whose responses have no body.
func (h *handler) onStep(req dap.Request, resp dap.ResponseMessage, err error) {
	if err != nil {
		h.sendError(req, err)
		return
	}
	*resp.GetResponse() = h.newResponse(req)
	h.send(resp)
}

func (h *handler) onDisconnect(ctx context.Context, req *dap.DisconnectRequest) {
	resp := &dap.DisconnectResponse{}
	resp.Response = h.newResponse(req.Request)
	h.send(resp)

	if err := h.ctrl.Disconnect(ctx); err != nil {
		h.logger.Warn("disconnect failed", log.Error(err))
	}

	h.mu.Lock()
	h.disconnected = true
	h.mu.Unlock()
}

func (h *handler) onTerminate(ctx context.Context, req *dap.TerminateRequest) {
	resp := &dap.TerminateResponse{}
	resp.Response = h.newResponse(req.Request)
	h.send(resp)

	if err := h.ctrl.Disconnect(ctx); err != nil {
		h.logger.Warn("terminate failed", log.Error(err))
	}
}

// Output implements session.Surface.
func (h *handler) Output(category, text string) {
	evt := &dap.OutputEvent{Event: h.newEvent("output")}
	evt.Body.Category = category
	evt.Body.Output = text
	h.send(evt)
}

// Stopped implements session.Surface.
func (h *handler) Stopped(reason string, threadID int, text string) {
	evt := &dap.StoppedEvent{Event: h.newEvent("stopped")}
	evt.Body.Reason = reason
	evt.Body.ThreadId = threadID
	evt.Body.AllThreadsStopped = true
	if text != "" {
		evt.Body.Description = text
		evt.Body.Text = text
	}
	h.send(evt)
}

// Terminated implements session.Surface.
func (h *handler) Terminated() {
	h.terminatedOnce.Do(func() {
		h.send(&dap.TerminatedEvent{Event: h.newEvent("terminated")})
	})
}

func (h *handler) sendError(req dap.Request, err error) {
	h.logger.Debug("request failed", "command", req.Command, log.Error(err))
	h.sendErrorMessage(&req, translateError(err))
}

func (h *handler) sendErrorMessage(req *dap.Request, msg *dap.ErrorMessage) {
	resp := &dap.ErrorResponse{}
	resp.Response = h.newResponse(*req)
	resp.Success = false
	resp.Message = msg.Variables["code"]
	if resp.Message == "" {
		resp.Message = msg.Format
	}
	resp.Body.Error = msg
	h.send(resp)
}

// --- helpers ---

// newResponse builds a successful response to req. The transport assigns
// the sequence number.
func (h *handler) newResponse(req dap.Request) dap.Response {
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Type: "response"},
		RequestSeq:      req.Seq,
		Success:         true,
		Command:         req.Command,
	}
}

func (h *handler) newEvent(event string) dap.Event {
	return dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Type: "event"},
		Event:           event,
	}
}
