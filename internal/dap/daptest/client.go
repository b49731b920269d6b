// Package daptest provides a DAP client that drives the server in tests the
// way an IDE would.
package daptest

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/go-dap"

	brsdap "github.com/ctagard/brs-dap/internal/dap"
)

// DefaultTimeout bounds every request made by the typed helpers.
const DefaultTimeout = 5 * time.Second

// ErrClosed is returned once the server has closed the connection.
var ErrClosed = stderrors.New("connection closed")

// ResponseError is an error response from the server.
type ResponseError struct {
	Command string
	Code    string
	Message string
	ID      int
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s failed (%s): %s", e.Command, e.Code, e.Message)
}

// Client is a test DAP client. Responses are matched to requests by
// sequence number; events are recorded in arrival order.
type Client struct {
	transport *brsdap.Transport

	mu      sync.Mutex
	pending map[int]chan dap.Message
	events  []dap.EventMessage
	cursors map[string]int
	wake    chan struct{}

	done chan struct{}
}

// NewClient starts reading from conn.
func NewClient(conn io.ReadWriteCloser) *Client {
	c := &Client{
		transport: brsdap.NewTransport(conn),
		pending:   make(map[int]chan dap.Message),
		cursors:   make(map[string]int),
		wake:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Done is closed when the server closes the connection.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		msg, err := c.transport.Receive()
		if err != nil {
			return
		}

		switch m := msg.(type) {
		case dap.ResponseMessage:
			seq := m.GetResponse().RequestSeq
			c.mu.Lock()
			ch, ok := c.pending[seq]
			delete(c.pending, seq)
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
		case dap.EventMessage:
			c.mu.Lock()
			c.events = append(c.events, m)
			close(c.wake)
			c.wake = make(chan struct{})
			c.mu.Unlock()
		}
	}
}

// Pending is an outstanding request.
type Pending struct {
	command string
	ch      chan dap.Message
	c       *Client
}

// Wait waits for the response. Error responses are returned as
// *ResponseError.
func (p *Pending) Wait(timeout time.Duration) (dap.Message, error) {
	select {
	case msg := <-p.ch:
		return p.result(msg)
	case <-time.After(timeout):
		return nil, fmt.Errorf("%s: request timeout", p.command)
	case <-p.c.done:
		// the response may have raced the close
		select {
		case msg := <-p.ch:
			return p.result(msg)
		default:
		}
		return nil, fmt.Errorf("%s: %w", p.command, ErrClosed)
	}
}

func (p *Pending) result(msg dap.Message) (dap.Message, error) {
	er, ok := msg.(*dap.ErrorResponse)
	if !ok {
		return msg, nil
	}
	re := &ResponseError{Command: p.command, Message: er.Message}
	if er.Body.Error != nil {
		re.ID = er.Body.Error.Id
		re.Code = er.Body.Error.Variables["code"]
		re.Message = er.Body.Error.Format
	}
	return nil, re
}

// Send sends req without waiting for its response.
func (c *Client) Send(req dap.RequestMessage) (*Pending, error) {
	r := req.GetRequest()
	r.Type = "request"
	r.Seq = c.transport.NextSeq()

	p := &Pending{command: r.Command, ch: make(chan dap.Message, 1), c: c}
	c.mu.Lock()
	c.pending[r.Seq] = p.ch
	c.mu.Unlock()

	if err := c.transport.Send(req); err != nil {
		c.mu.Lock()
		delete(c.pending, r.Seq)
		c.mu.Unlock()
		return nil, err
	}
	return p, nil
}

func (c *Client) call(req dap.RequestMessage) (dap.Message, error) {
	p, err := c.Send(req)
	if err != nil {
		return nil, err
	}
	return p.Wait(DefaultTimeout)
}

// WaitForEvent returns the next event named event that no earlier call has
// returned.
func (c *Client) WaitForEvent(event string, timeout time.Duration) (dap.EventMessage, error) {
	deadline := time.After(timeout)
	closed := false
	for {
		c.mu.Lock()
		for i := c.cursors[event]; i < len(c.events); i++ {
			if c.events[i].GetEvent().Event == event {
				c.cursors[event] = i + 1
				c.mu.Unlock()
				return c.events[i], nil
			}
		}
		c.cursors[event] = len(c.events)
		wake := c.wake
		c.mu.Unlock()

		if closed {
			return nil, fmt.Errorf("waiting for %s: %w", event, ErrClosed)
		}
		select {
		case <-wake:
		case <-c.done:
			closed = true
		case <-deadline:
			return nil, fmt.Errorf("timed out waiting for %s event", event)
		}
	}
}

// WaitForStopped waits for the next stopped event.
func (c *Client) WaitForStopped(timeout time.Duration) (*dap.StoppedEvent, error) {
	evt, err := c.WaitForEvent("stopped", timeout)
	if err != nil {
		return nil, err
	}
	return evt.(*dap.StoppedEvent), nil
}

// Output returns the text of every output event received so far.
func (c *Client) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	for _, e := range c.events {
		if o, ok := e.(*dap.OutputEvent); ok {
			b.WriteString(o.Body.Output)
		}
	}
	return b.String()
}

func request(command string) dap.Request {
	return dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Type: "request"},
		Command:         command,
	}
}

// Initialize sends the initialize request.
func (c *Client) Initialize() (*dap.InitializeResponse, error) {
	req := &dap.InitializeRequest{Request: request("initialize")}
	req.Arguments = dap.InitializeRequestArguments{
		ClientID:        "daptest",
		AdapterID:       "brightscript",
		LinesStartAt1:   true,
		ColumnsStartAt1: true,
		PathFormat:      "path",
	}
	resp, err := c.call(req)
	if err != nil {
		return nil, err
	}
	return resp.(*dap.InitializeResponse), nil
}

// Launch sends the launch request. The server answers it only after
// configurationDone, so the caller waits on the returned Pending.
func (c *Client) Launch(args map[string]any) (*Pending, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return c.Send(&dap.LaunchRequest{Request: request("launch"), Arguments: raw})
}

// ConfigurationDone sends configurationDone.
func (c *Client) ConfigurationDone() error {
	_, err := c.call(&dap.ConfigurationDoneRequest{Request: request("configurationDone")})
	return err
}

// SetBreakpoints replaces the breakpoints of path.
func (c *Client) SetBreakpoints(path string, lines ...int) ([]dap.Breakpoint, error) {
	req := &dap.SetBreakpointsRequest{Request: request("setBreakpoints")}
	req.Arguments.Source = dap.Source{Path: path}
	for _, l := range lines {
		req.Arguments.Breakpoints = append(req.Arguments.Breakpoints, dap.SourceBreakpoint{Line: l})
	}
	resp, err := c.call(req)
	if err != nil {
		return nil, err
	}
	return resp.(*dap.SetBreakpointsResponse).Body.Breakpoints, nil
}

// Threads lists threads.
func (c *Client) Threads() ([]dap.Thread, error) {
	resp, err := c.call(&dap.ThreadsRequest{Request: request("threads")})
	if err != nil {
		return nil, err
	}
	return resp.(*dap.ThreadsResponse).Body.Threads, nil
}

// StackTrace requests levels frames starting at start. Zero levels means all.
func (c *Client) StackTrace(start, levels int) (*dap.StackTraceResponse, error) {
	req := &dap.StackTraceRequest{Request: request("stackTrace")}
	req.Arguments = dap.StackTraceArguments{ThreadId: 1, StartFrame: start, Levels: levels}
	resp, err := c.call(req)
	if err != nil {
		return nil, err
	}
	return resp.(*dap.StackTraceResponse), nil
}

// Scopes lists the scopes of a frame.
func (c *Client) Scopes(frameID int) ([]dap.Scope, error) {
	req := &dap.ScopesRequest{Request: request("scopes")}
	req.Arguments.FrameId = frameID
	resp, err := c.call(req)
	if err != nil {
		return nil, err
	}
	return resp.(*dap.ScopesResponse).Body.Scopes, nil
}

// Variables lists the children of ref.
func (c *Client) Variables(ref int) ([]dap.Variable, error) {
	req := &dap.VariablesRequest{Request: request("variables")}
	req.Arguments.VariablesReference = ref
	resp, err := c.call(req)
	if err != nil {
		return nil, err
	}
	return resp.(*dap.VariablesResponse).Body.Variables, nil
}

// Evaluate evaluates expression in the given context ("watch", "hover", "repl").
func (c *Client) Evaluate(expression, context string) (*dap.EvaluateResponseBody, error) {
	req := &dap.EvaluateRequest{Request: request("evaluate")}
	req.Arguments = dap.EvaluateArguments{Expression: expression, Context: context}
	resp, err := c.call(req)
	if err != nil {
		return nil, err
	}
	return &resp.(*dap.EvaluateResponse).Body, nil
}

// Continue resumes execution.
func (c *Client) Continue() error {
	req := &dap.ContinueRequest{Request: request("continue")}
	req.Arguments.ThreadId = 1
	_, err := c.call(req)
	return err
}

// Next steps over.
func (c *Client) Next() error {
	req := &dap.NextRequest{Request: request("next")}
	req.Arguments.ThreadId = 1
	_, err := c.call(req)
	return err
}

// StepIn steps into.
func (c *Client) StepIn() error {
	req := &dap.StepInRequest{Request: request("stepIn")}
	req.Arguments.ThreadId = 1
	_, err := c.call(req)
	return err
}

// StepOut steps out.
func (c *Client) StepOut() error {
	req := &dap.StepOutRequest{Request: request("stepOut")}
	req.Arguments.ThreadId = 1
	_, err := c.call(req)
	return err
}

// Pause suspends execution.
func (c *Client) Pause() error {
	req := &dap.PauseRequest{Request: request("pause")}
	req.Arguments.ThreadId = 1
	_, err := c.call(req)
	return err
}

// Disconnect ends the session.
func (c *Client) Disconnect() error {
	req := &dap.DisconnectRequest{Request: request("disconnect")}
	req.Arguments = &dap.DisconnectArguments{TerminateDebuggee: true}
	_, err := c.call(req)
	return err
}
