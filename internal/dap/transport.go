// Package dap serves the Debug Adapter Protocol (DAP) to IDEs.
//
// DAP is a protocol used to communicate between a development tool (like an IDE)
// and a debugger. This package provides:
//   - Transport: Low-level message sending/receiving over TCP, a pipe or stdio
//   - Server: accepts IDE connections and gives each one a debug session
//   - handler: translates DAP requests into session controller calls and
//     controller events into DAP events
//
// The protocol is described at: https://microsoft.github.io/debug-adapter-protocol/
package dap

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/google/go-dap"
)

// Transport handles DAP framing on one connection. Sends are serialised and
// stamped with the connection's next sequence number.
type Transport struct {
	conn   io.ReadWriteCloser
	reader *bufio.Reader
	writer *bufio.Writer
	mu     sync.Mutex
	seq    int
}

// NewTransport wraps a connection.
func NewTransport(conn io.ReadWriteCloser) *Transport {
	return &Transport{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		seq:    1,
	}
}

// NewStdioTransport creates a transport using stdio streams
func NewStdioTransport(in io.ReadCloser, out io.WriteCloser) *Transport {
	return NewTransport(&stdioRWC{reader: in, writer: out})
}

type stdioRWC struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioRWC) Read(p []byte) (n int, err error) {
	return s.reader.Read(p)
}

func (s *stdioRWC) Write(p []byte) (n int, err error) {
	return s.writer.Write(p)
}

func (s *stdioRWC) Close() error {
	err1 := s.reader.Close()
	err2 := s.writer.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// NextSeq returns the next sequence number
func (t *Transport) NextSeq() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextSeqLocked()
}

func (t *Transport) nextSeqLocked() int {
	seq := t.seq
	t.seq++
	return seq
}

// Send writes a DAP message. Responses and events get their sequence number
// here so numbers go out in order.
func (t *Transport) Send(msg dap.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch m := msg.(type) {
	case dap.ResponseMessage:
		m.GetResponse().Seq = t.nextSeqLocked()
	case dap.EventMessage:
		m.GetEvent().Seq = t.nextSeqLocked()
	}

	if err := dap.WriteProtocolMessage(t.writer, msg); err != nil {
		return fmt.Errorf("failed to write DAP message: %w", err)
	}

	if err := t.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush DAP message: %w", err)
	}

	return nil
}

// Receive receives a DAP message
func (t *Transport) Receive() (dap.Message, error) {
	msg, err := dap.ReadProtocolMessage(t.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read DAP message: %w", err)
	}
	return msg, nil
}

// Close closes the transport
func (t *Transport) Close() error {
	return t.conn.Close()
}
