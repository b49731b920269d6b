package dap

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/go-dap"

	"github.com/ctagard/brs-dap/internal/log"
	"github.com/ctagard/brs-dap/internal/session"
)

// disconnectTimeout bounds the cleanup run when a connection drops.
const disconnectTimeout = 10 * time.Second

// Server gives every IDE connection its own debug session.
type Server struct {
	manager *session.Manager
	logger  *slog.Logger

	// Workspace is used to resolve ${workspaceFolder} left in launch
	// arguments. Empty leaves such arguments unresolved.
	Workspace string

	wg sync.WaitGroup
}

// NewServer creates a DAP server backed by manager.
func NewServer(manager *session.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		manager: manager,
		logger:  log.WithComponent(logger, "dap"),
	}
}

// ServeStdio serves a single IDE over the given streams until it disconnects.
func (s *Server) ServeStdio(ctx context.Context, in io.ReadCloser, out io.WriteCloser) error {
	return s.serve(ctx, NewStdioTransport(in, out))
}

// ServeConn serves a single IDE connection until it disconnects.
func (s *Server) ServeConn(ctx context.Context, conn io.ReadWriteCloser) error {
	return s.serve(ctx, NewTransport(conn))
}

// ServeTCP listens on addr and serves IDE connections until ctx is done.
func (s *Server) ServeTCP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.logger.Info("listening for DAP clients", "addr", ln.Addr().String())
	return s.ServeListener(ctx, ln)
}

// ServeListener accepts connections from ln until ctx is done, then waits for
// open connections to finish.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	defer s.wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.ServeConn(ctx, conn); err != nil {
				s.logger.Warn("connection ended with error",
					"remote", conn.RemoteAddr().String(), log.Error(err))
			}
		}()
	}
}

func (s *Server) serve(ctx context.Context, t *Transport) error {
	defer t.Close()

	ctrl, err := s.manager.CreateSession()
	if err != nil {
		s.logger.Warn("session refused", log.Error(err))
		return s.refuse(t, err)
	}

	logger := log.WithSession(s.logger, ctrl.ID())
	h := newHandler(t, ctrl, logger)
	h.resolve.WorkspaceFolder = s.Workspace

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the transport unblocks Receive when the server shuts down.
	go func() {
		<-ctx.Done()
		t.Close()
	}()

	logger.Info("client connected")
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer dcancel()
		if err := ctrl.Disconnect(dctx); err != nil {
			logger.Warn("cleanup after disconnect failed", log.Error(err))
		}
		logger.Info("client disconnected")
	}()

	for {
		msg, err := t.Receive()
		if err != nil {
			if isClosed(err) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		h.handle(ctx, msg)
		if h.done() {
			return nil
		}
	}
}

// refuse answers every request with err until the client goes away.
func (s *Server) refuse(t *Transport, err error) error {
	body := translateError(err)
	for {
		msg, rerr := t.Receive()
		if rerr != nil {
			if isClosed(rerr) {
				return nil
			}
			return rerr
		}
		req, ok := msg.(dap.RequestMessage)
		if !ok {
			continue
		}
		r := req.GetRequest()
		resp := &dap.ErrorResponse{}
		resp.Response = dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Type: "response"},
			RequestSeq:      r.Seq,
			Command:         r.Command,
			Message:         body.Variables["code"],
		}
		resp.Body.Error = body
		if serr := t.Send(resp); serr != nil {
			return serr
		}
		if r.Command == "disconnect" {
			return nil
		}
	}
}

func isClosed(err error) bool {
	return stderrors.Is(err, io.EOF) ||
		stderrors.Is(err, io.ErrUnexpectedEOF) ||
		stderrors.Is(err, io.ErrClosedPipe) ||
		stderrors.Is(err, net.ErrClosed)
}

