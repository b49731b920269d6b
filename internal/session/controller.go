// Package session runs BrightScript debug sessions: it deploys the project
// with injected breakpoints, drives the device debugger, and translates
// everything the device reports back into the IDE's coordinates.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ctagard/brs-dap/internal/breakpoints"
	"github.com/ctagard/brs-dap/internal/deploy"
	"github.com/ctagard/brs-dap/internal/device"
	"github.com/ctagard/brs-dap/internal/errors"
	"github.com/ctagard/brs-dap/internal/inject"
	"github.com/ctagard/brs-dap/internal/log"
	"github.com/ctagard/brs-dap/internal/metrics"
	"github.com/ctagard/brs-dap/pkg/types"
)

// MainThreadID is reported when the device cannot be asked for threads.
const MainThreadID = 1

// Options configure a Controller.
type Options struct {
	ID       string
	Deployer deploy.Deployer
	Dialer   device.Dialer
	Logger   *slog.Logger
}

// Controller owns one debug session from the first setBreakpoints to
// Terminated. It is safe for concurrent use.
type Controller struct {
	id       string
	logger   *slog.Logger
	pipeline *Pipeline
	deployer deploy.Deployer
	dialer   device.Dialer
	store    *breakpoints.Store
	refs     *refTable

	// ctx is cancelled when the session terminates.
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu           sync.Mutex
	surface      Surface
	state        types.SessionState
	cfg          *types.LaunchConfig
	prep         *Prepared
	adapter      device.Adapter
	suspended    bool // seen a suspend since connecting
	// inspectAdvised is set once the user has been told, in the current
	// run, that state cannot be inspected.
	inspectAdvised bool
	stopReason   string
	exception    string
	lastActivity time.Time
	createdAt    time.Time
}

// NewController returns an Idle controller.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = log.WithComponent(log.WithSession(logger, opts.ID), "session")

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	metrics.SessionOpened()

	return &Controller{
		id:           opts.ID,
		logger:       logger,
		pipeline:     &Pipeline{Deployer: opts.Deployer, Logger: logger},
		deployer:     opts.Deployer,
		dialer:       opts.Dialer,
		store:        breakpoints.NewStore(),
		refs:         newRefTable(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		surface:      nopSurface{},
		state:        types.SessionStateIdle,
		lastActivity: now,
		createdAt:    now,
	}
}

// ID returns the session ID.
func (c *Controller) ID() string {
	return c.id
}

// Attach routes events to s.
func (c *Controller) Attach(s Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil {
		s = nopSurface{}
	}
	c.surface = s
}

// State returns the current state.
func (c *Controller) State() types.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the session reaches Terminated.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Info summarises the session.
func (c *Controller) Info() types.SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := types.SessionInfo{SessionID: c.id, State: c.state}
	if c.cfg != nil {
		info.Host = c.cfg.Host
		info.RootDir = c.cfg.RootDir
	}
	return info
}

// LastActivity returns when the IDE last sent a request or the device last
// reported an event.
func (c *Controller) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

func (c *Controller) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// setState moves to next if the state machine allows it.
func (c *Controller) setStateLocked(next types.SessionState) bool {
	if !canTransition(c.state, next) {
		return false
	}
	c.logger.Debug("state change", "from", c.state, "to", next)
	c.state = next
	return true
}

func (c *Controller) sink() Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface
}

// advise tells the user about a request that could not be honoured.
func (c *Controller) advise(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Warn(msg)
	c.sink().Output(CategoryConsole, msg+"\n")
}

// SetBreakpoints replaces the breakpoints of clientPath. After launch the
// store is locked: the result is empty and the user is told why.
func (c *Controller) SetBreakpoints(clientPath string, lines []int) []types.Breakpoint {
	c.touch()
	bps, err := c.store.Set(clientPath, lines)
	if err != nil {
		c.advise("Breakpoints in %s were not changed: %s", filepath.Base(clientPath), errors.FromError(err).Error())
		return []types.Breakpoint{}
	}
	return bps
}

// Breakpoints returns every breakpoint, including the entry breakpoint once
// launched.
func (c *Controller) Breakpoints() map[string][]types.Breakpoint {
	return c.store.All()
}

// Launch deploys the project and connects to the device. Any failure is
// fatal: the session terminates and the error is returned.
func (c *Controller) Launch(ctx context.Context, cfg types.LaunchConfig) error {
	c.touch()

	c.mu.Lock()
	if c.state != types.SessionStateIdle {
		c.mu.Unlock()
		return errors.AlreadyLaunched()
	}
	c.setStateLocked(types.SessionStateLaunching)
	c.mu.Unlock()

	c.store.Lock()
	if err := normalizeConfig(&cfg); err != nil {
		return c.launchFailed(err)
	}
	c.mu.Lock()
	c.cfg = &cfg
	c.mu.Unlock()

	start := time.Now()
	c.logger.Info("launching", log.HostKey, cfg.Host, "rootDir", cfg.RootDir, "stopOnEntry", cfg.StopOnEntry)

	prep, err := c.pipeline.Prepare(ctx, &cfg, c.store)
	c.mu.Lock()
	c.prep = prep
	cancelled := c.state == types.SessionStateTerminated
	c.mu.Unlock()
	if cancelled {
		c.removeStaging(prep.StagingDir, cfg.RetainStagingFolder)
		return errors.SessionTerminated(c.id)
	}
	if err != nil {
		return c.launchFailed(err)
	}

	if c.dialer == nil {
		return c.launchFailed(errors.AdapterNotSupported("", nil))
	}
	adapter, err := c.dialer(&cfg, c.logger)
	if err != nil {
		if !errors.IsDebugError(err) {
			err = errors.AdapterConnectFailed(cfg.Host, err)
		}
		return c.launchFailed(err)
	}
	if err := adapter.Connect(ctx, cfg.Host); err != nil {
		_ = adapter.Close()
		return c.launchFailed(errors.AdapterConnectFailed(cfg.Host, err))
	}

	c.mu.Lock()
	if !c.setStateLocked(types.SessionStateConnected) {
		// disconnected while connecting
		c.mu.Unlock()
		_ = adapter.Close()
		return errors.SessionTerminated(c.id)
	}
	c.adapter = adapter
	c.mu.Unlock()

	metrics.LaunchDuration(time.Since(start))
	c.logger.Info("connected", log.HostKey, cfg.Host,
		"injected", prep.Injected, log.DurationKey, time.Since(start).Milliseconds())

	go c.dispatch(adapter.Events())
	return nil
}

func (c *Controller) launchFailed(err error) error {
	c.logger.Error("launch failed", log.Error(err))
	c.terminate(metrics.OutcomeLaunchFailed)
	return err
}

func normalizeConfig(cfg *types.LaunchConfig) error {
	if cfg.Host == "" {
		return errors.MissingParameter("host", "Set host to the IP address of the device.")
	}
	if cfg.RootDir == "" {
		return errors.MissingParameter("rootDir", "Set rootDir to the folder containing the channel manifest.")
	}
	var err error
	if cfg.RootDir, err = filepath.Abs(cfg.RootDir); err != nil {
		return errors.InvalidParameter("rootDir", cfg.RootDir, "a valid path")
	}
	if cfg.DebugRootDir != "" {
		if cfg.DebugRootDir, err = filepath.Abs(cfg.DebugRootDir); err != nil {
			return errors.InvalidParameter("debugRootDir", cfg.DebugRootDir, "a valid path")
		}
	}
	switch cfg.ConsoleOutput {
	case "":
		cfg.ConsoleOutput = types.ConsoleOutputNormal
	case types.ConsoleOutputFull, types.ConsoleOutputNormal:
	default:
		return errors.InvalidParameter("consoleOutput", cfg.ConsoleOutput, `"full" or "normal"`)
	}
	return nil
}

// dispatch consumes device events until the channel closes.
func (c *Controller) dispatch(events <-chan device.Event) {
	for ev := range events {
		c.touch()
		switch ev := ev.(type) {
		case device.SuspendEvent:
			c.onSuspend(ev)
		case device.RuntimeErrorEvent:
			c.onRuntimeError(ev)
		case device.CompileErrorsEvent:
			c.onCompileErrors(ev)
		case device.CannotContinueEvent:
			c.onCannotContinue()
		case device.ConsoleOutputEvent:
			c.onConsoleOutput(ev)
		default:
			c.logger.Warn("unknown device event", "type", fmt.Sprintf("%T", ev))
		}
	}

	if c.State() != types.SessionStateTerminated {
		c.sink().Output(CategoryStderr, errors.ConnectionLost(c.host()).Message+"\n")
		c.terminate(metrics.OutcomeLost)
	}
}

func (c *Controller) host() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg == nil {
		return ""
	}
	return c.cfg.Host
}

func (c *Controller) onSuspend(ev device.SuspendEvent) {
	c.mu.Lock()
	if !c.setStateLocked(types.SessionStateSuspended) {
		c.mu.Unlock()
		return
	}
	first := !c.suspended
	c.suspended = true
	c.inspectAdvised = false
	reason, text := c.stopReason, c.exception
	c.stopReason, c.exception = "", ""
	stopOnEntry := c.cfg.StopOnEntry
	c.refs.Reset()
	c.mu.Unlock()

	if first && reason == "" && c.atEntry() {
		if !stopOnEntry {
			c.logger.Debug("resuming past the entry breakpoint")
			if err := c.resume(c.ctx, "continue", ""); err != nil {
				c.logger.Warn("auto-resume failed", log.Error(err))
			} else {
				return
			}
		}
		reason = ReasonEntry
	}
	if reason == "" {
		reason = ReasonBreakpoint
	}

	threadID := ev.ThreadID
	if threadID == 0 {
		threadID = MainThreadID
	}
	metrics.Suspended(reason)
	c.sink().Stopped(reason, threadID, text)
}

// atEntry reports whether the top frame sits on the entry breakpoint.
func (c *Controller) atEntry() bool {
	c.mu.Lock()
	prep := c.prep
	c.mu.Unlock()
	if prep == nil || prep.EntryBreakpoint == nil {
		return false
	}

	frames, err := c.StackTrace(c.ctx)
	if err != nil || len(frames) == 0 {
		return false
	}
	top := frames[0]
	return filepath.Clean(top.Path) == filepath.Clean(prep.EntryPath) && top.Line == prep.EntryBreakpoint.Line
}

func (c *Controller) onRuntimeError(ev device.RuntimeErrorEvent) {
	text := ev.Message
	if ev.ErrorCode != "" {
		text = fmt.Sprintf("%s (runtime error %s)", ev.Message, ev.ErrorCode)
	}
	c.mu.Lock()
	c.stopReason = ReasonException
	c.exception = text
	c.mu.Unlock()
	c.sink().Output(CategoryStderr, text+"\n")
}

func (c *Controller) onCompileErrors(ev device.CompileErrorsEvent) {
	c.mu.Lock()
	prep := c.prep
	c.mu.Unlock()

	out := c.sink()
	for _, ce := range ev.Errors {
		path := ce.Path
		if prep != nil && prep.Translator != nil {
			path = prep.Translator.DeviceToClient(ce.Path)
		}
		line := ce.Line
		if filepath.IsAbs(path) {
			line = inject.DeviceLineToClientLine(c.store.Lines(path), ce.Line)
		}
		out.Output(CategoryStderr, fmt.Sprintf("%s(%d): %s\n", path, line, ce.Message))
	}
	out.Output(CategoryStderr, errors.CompileFailed(len(ev.Errors)).Error()+"\n")
	c.terminate(metrics.OutcomeCompileError)
}

func (c *Controller) onCannotContinue() {
	c.sink().Output(CategoryStderr, errors.CannotContinue().Error()+"\n")
	c.terminate(metrics.OutcomeCrashed)
}

func (c *Controller) onConsoleOutput(ev device.ConsoleOutputEvent) {
	c.mu.Lock()
	mode := c.cfg.ConsoleOutput
	adapter := c.adapter
	c.mu.Unlock()

	if mode == types.ConsoleOutputNormal && adapter != nil && adapter.IsAtDebuggerPrompt() {
		return
	}
	c.sink().Output(CategoryStdout, ev.Text)
}

// Continue resumes execution.
func (c *Controller) Continue(ctx context.Context) error {
	c.touch()
	return c.resume(ctx, "continue", "")
}

// Next steps over the current line.
func (c *Controller) Next(ctx context.Context) error {
	c.touch()
	return c.resume(ctx, "stepOver", ReasonStep)
}

// StepIn steps into the call on the current line.
func (c *Controller) StepIn(ctx context.Context) error {
	c.touch()
	return c.resume(ctx, "stepInto", ReasonStep)
}

// StepOut runs until the current function returns.
func (c *Controller) StepOut(ctx context.Context) error {
	c.touch()
	return c.resume(ctx, "stepOut", ReasonStep)
}

// resume leaves Suspended. reason is reported with the next stop.
func (c *Controller) resume(ctx context.Context, op, reason string) error {
	c.mu.Lock()
	if c.state != types.SessionStateSuspended {
		state := c.state
		c.mu.Unlock()
		c.advise("Cannot %s while the session is %s.", op, state)
		return nil
	}
	c.setStateLocked(types.SessionStateRunning)
	c.stopReason = reason
	c.refs.Reset()
	adapter := c.adapter
	c.mu.Unlock()

	var err error
	switch op {
	case "continue":
		err = adapter.Continue(ctx)
	case "stepOver":
		err = adapter.StepOver(ctx)
	case "stepInto":
		err = adapter.StepInto(ctx)
	case "stepOut":
		err = adapter.StepOut(ctx)
	}
	metrics.DeviceRequest(op, err)
	if err != nil {
		return errors.StepFailed(op, err)
	}
	return nil
}

// Pause asks the device to break.
func (c *Controller) Pause(ctx context.Context) error {
	c.touch()
	c.mu.Lock()
	if c.state != types.SessionStateRunning && c.state != types.SessionStateConnected {
		state := c.state
		c.mu.Unlock()
		c.advise("Cannot pause while the session is %s.", state)
		return nil
	}
	c.stopReason = ReasonPause
	adapter := c.adapter
	c.mu.Unlock()

	err := adapter.Pause(ctx)
	metrics.DeviceRequest("pause", err)
	if err != nil {
		return errors.StepFailed("pause", err)
	}
	return nil
}

// notSuspended advises, once per run, that op has no answer while the
// program executes.
func (c *Controller) notSuspended(op string) {
	c.mu.Lock()
	if !executing(c.state) || c.inspectAdvised {
		c.mu.Unlock()
		return
	}
	c.inspectAdvised = true
	c.mu.Unlock()
	c.advise("%s", errors.NotSuspended(op).Error())
}

// suspendedAdapter returns the adapter when introspection is possible.
func (c *Controller) suspendedAdapter() (device.Adapter, *Prepared, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != types.SessionStateSuspended {
		return nil, nil, false
	}
	return c.adapter, c.prep, true
}

// Threads lists device threads. Outside Suspended, and when the device
// reports none, a single main thread is returned so the IDE can still pause.
func (c *Controller) Threads(ctx context.Context) ([]types.Thread, error) {
	c.touch()
	main := []types.Thread{{ID: MainThreadID, Name: "Main"}}

	adapter, _, ok := c.suspendedAdapter()
	if !ok {
		return main, nil
	}
	threads, err := adapter.Threads(ctx)
	metrics.DeviceRequest("threads", err)
	if err != nil {
		return nil, errors.DeviceRequestFailed("threads", err)
	}
	if len(threads) == 0 {
		return main, nil
	}

	out := make([]types.Thread, len(threads))
	for i, t := range threads {
		name := "Thread " + strconv.Itoa(t.ID)
		if t.FilePath != "" {
			name = fmt.Sprintf("%s (%s)", name, filepath.Base(t.FilePath))
		}
		out[i] = types.Thread{ID: t.ID, Name: name}
	}
	return out, nil
}

// StackTrace returns the device stack in client coordinates. It is empty
// unless the session is Suspended.
func (c *Controller) StackTrace(ctx context.Context) ([]types.StackFrame, error) {
	c.touch()
	adapter, prep, ok := c.suspendedAdapter()
	if !ok {
		c.notSuspended("stackTrace")
		return []types.StackFrame{}, nil
	}

	frames, err := adapter.StackTrace(ctx)
	metrics.DeviceRequest("stackTrace", err)
	if err != nil {
		return nil, errors.DeviceRequestFailed("stackTrace", err)
	}

	out := make([]types.StackFrame, len(frames))
	for i, f := range frames {
		out[i] = c.translateFrame(prep, i, f)
	}
	return out, nil
}

func (c *Controller) translateFrame(prep *Prepared, i int, f device.Frame) types.StackFrame {
	path := f.FilePath
	if prep.Translator != nil {
		path = prep.Translator.DeviceToClient(f.FilePath)
	}
	resolved := filepath.IsAbs(path)

	line := f.LineNumber
	if resolved {
		line = inject.DeviceLineToClientLine(c.store.Lines(path), f.LineNumber)
	}

	name := f.FunctionIdentifier
	if prep.Functions != nil {
		name = prep.Functions.Restore(name)
	}

	return types.StackFrame{
		ID:       i + 1,
		Name:     name,
		Path:     path,
		Line:     line,
		Column:   1,
		Resolved: resolved,
	}
}

// Scopes returns the scopes of a frame. The device only exposes the locals
// of the selected frame.
func (c *Controller) Scopes(frameID int) []types.Scope {
	c.touch()
	if _, _, ok := c.suspendedAdapter(); !ok {
		c.notSuspended("scopes")
		return []types.Scope{}
	}
	return []types.Scope{{Name: "Local", VariablesReference: c.refs.scopeRef(frameID)}}
}

// GetVariable evaluates a variable expression. Repeated requests for the same
// expression during one suspend are answered from the reference table; only
// the first reaches the device. The result is nil outside Suspended.
func (c *Controller) GetVariable(ctx context.Context, expression string) (*types.Variable, error) {
	c.touch()
	adapter, _, ok := c.suspendedAdapter()
	if !ok {
		return nil, nil
	}

	res, ref, err := c.fetch(ctx, adapter, expression)
	if err != nil {
		return nil, err
	}
	v := toVariable(res.Name, expression, res, ref)
	return &v, nil
}

// fetch returns the cached or freshly queried value of expression.
func (c *Controller) fetch(ctx context.Context, adapter device.Adapter, expression string) (*device.EvaluationResult, int, error) {
	if res, ref, ok := c.refs.cached(expression); ok {
		return res, ref, nil
	}

	gen := c.refs.generation()
	key := strconv.FormatUint(gen, 10) + ":" + normalize(expression)
	v, err, _ := c.refs.flights.Do(key, func() (any, error) {
		if res, ref, ok := c.refs.cached(expression); ok {
			return fetched{res, ref}, nil
		}
		res, err := adapter.GetVariable(ctx, strings.TrimSpace(expression))
		metrics.DeviceRequest("getVariable", err)
		if err != nil {
			return nil, err
		}
		ref := c.refs.store(gen, expression, res)
		return fetched{res, ref}, nil
	})
	if err != nil {
		return nil, 0, errors.EvaluationFailed(expression, err)
	}
	f := v.(fetched)
	return f.res, f.ref, nil
}

type fetched struct {
	res *device.EvaluationResult
	ref int
}

// Variables expands a reference: the locals of a scope or the children of
// an array or object. Empty outside Suspended or for unknown references.
func (c *Controller) Variables(ctx context.Context, ref int) ([]types.Variable, error) {
	c.touch()
	adapter, _, ok := c.suspendedAdapter()
	if !ok {
		c.notSuspended("variables")
		return []types.Variable{}, nil
	}
	entry, _, ok := c.refs.lookup(ref)
	if !ok {
		return []types.Variable{}, nil
	}

	if entry.scope {
		return c.locals(ctx, adapter)
	}

	res := entry.result
	if res == nil {
		var err error
		if res, _, err = c.fetch(ctx, adapter, entry.expr); err != nil {
			return nil, err
		}
	}

	out := make([]types.Variable, 0, len(res.Children))
	for i := range res.Children {
		child := &res.Children[i]
		expr := childExpression(entry.expr, res.HighLevelType, child.Name)
		childRef := 0
		if child.HighLevelType.HasChildren() {
			childRef = c.refs.reserve(expr)
		}
		out = append(out, toVariable(child.Name, expr, child, childRef))
	}
	return out, nil
}

func (c *Controller) locals(ctx context.Context, adapter device.Adapter) ([]types.Variable, error) {
	names, err := adapter.ScopeVariables(ctx)
	metrics.DeviceRequest("scopeVariables", err)
	if err != nil {
		return nil, errors.DeviceRequestFailed("scopeVariables", err)
	}

	out := make([]types.Variable, 0, len(names))
	for _, name := range names {
		res, ref, err := c.fetch(ctx, adapter, name)
		if err != nil {
			c.logger.Debug("skipping local", "name", name, log.Error(err))
			continue
		}
		out = append(out, toVariable(name, name, res, ref))
	}
	return out, nil
}

// Evaluate answers watch, hover and REPL expressions. Variable lookups are
// tried first; in the REPL anything else is run as a statement and its
// console output returned.
func (c *Controller) Evaluate(ctx context.Context, expression, evalContext string) (types.EvaluateResult, error) {
	c.touch()
	adapter, _, ok := c.suspendedAdapter()
	if !ok {
		c.notSuspended("evaluate")
		return types.EvaluateResult{}, nil
	}

	res, ref, err := c.fetch(ctx, adapter, expression)
	if err == nil {
		v := toVariable(res.Name, expression, res, ref)
		return types.EvaluateResult{
			Result:             v.Value,
			Type:               v.Type,
			VariablesReference: v.VariablesReference,
			IndexedVariables:   v.IndexedVariables,
			NamedVariables:     v.NamedVariables,
		}, nil
	}
	if evalContext != "repl" {
		return types.EvaluateResult{}, err
	}

	out, evalErr := adapter.Evaluate(ctx, strings.TrimSpace(expression))
	metrics.DeviceRequest("evaluate", evalErr)
	if evalErr != nil {
		return types.EvaluateResult{}, errors.EvaluationFailed(expression, evalErr)
	}
	return types.EvaluateResult{Result: out}, nil
}

// Disconnect ends the session: a best-effort Home keypress, then teardown.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.touch()
	c.mu.Lock()
	if c.state == types.SessionStateTerminated {
		c.mu.Unlock()
		return nil
	}
	live := isLive(c.state)
	host := ""
	if c.cfg != nil {
		host = c.cfg.Host
	}
	c.mu.Unlock()

	if live && c.deployer != nil {
		if err := c.deployer.PressHome(ctx, host); err != nil {
			c.logger.Warn("failed to return the device to the home screen", log.Error(err))
		}
	}
	c.terminate(metrics.OutcomeCompleted)
	return nil
}

// terminate moves to Terminated exactly once: close the device connection,
// remove the staging folder unless retained, notify the surface.
func (c *Controller) terminate(outcome string) {
	c.mu.Lock()
	if c.state == types.SessionStateTerminated {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(types.SessionStateTerminated)
	c.refs.Reset()
	adapter := c.adapter
	surface := c.surface
	staging, retain := "", false
	if c.prep != nil {
		staging = c.prep.StagingDir
	}
	if c.cfg != nil {
		retain = c.cfg.RetainStagingFolder
	}
	c.mu.Unlock()

	c.cancel()
	if adapter != nil {
		if err := adapter.Close(); err != nil {
			c.logger.Warn("failed to close device connection", log.Error(err))
		}
	}
	c.removeStaging(staging, retain)

	metrics.SessionClosed(outcome)
	c.logger.Info("session terminated", "outcome", outcome)
	close(c.done)
	surface.Terminated()
}

func (c *Controller) removeStaging(dir string, retain bool) {
	if dir == "" || retain {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		c.logger.Warn("failed to remove staging folder", log.PathKey, dir, log.Error(err))
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// childExpression builds the expression that reads one child of parent.
func childExpression(parent string, kind types.HighLevelType, name string) string {
	if kind == types.HighLevelArray {
		return parent + "[" + name + "]"
	}
	if identifierPattern.MatchString(name) {
		return parent + "." + name
	}
	return parent + "[" + strconv.Quote(name) + "]"
}

func toVariable(name, evaluateName string, res *device.EvaluationResult, ref int) types.Variable {
	if name == "" {
		name = evaluateName
	}
	v := types.Variable{
		Name:               name,
		EvaluateName:       evaluateName,
		Value:              res.Value,
		Type:               res.Type,
		HighLevelType:      res.HighLevelType,
		VariablesReference: ref,
	}

	count := res.ElementCount
	if count == 0 {
		count = len(res.Children)
	}
	switch res.HighLevelType {
	case types.HighLevelArray:
		v.IndexedVariables = count
		if v.Value == "" {
			v.Value = fmt.Sprintf("%s (%d)", res.Type, count)
		}
	case types.HighLevelObject:
		v.NamedVariables = count
		if v.Value == "" {
			v.Value = res.Type
		}
	case types.HighLevelUninitialized:
		if v.Value == "" {
			v.Value = "<uninitialized>"
		}
	}
	return v
}

// Artifacts returns the staging folder and the package built at launch.
func (c *Controller) Artifacts() (stagingDir, pkg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prep == nil {
		return "", ""
	}
	return c.prep.StagingDir, c.prep.Package
}
