//go:build windows

package status

import (
	"errors"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/windows"
)

// PipeName is the well-known named pipe the UI connects to.
const PipeName = `\\.\pipe\dantesync`

const (
	pipeBufSize = 4096
)

// pipeListener implements net.Listener over a Windows named pipe by
// looping CreateNamedPipe/ConnectNamedPipe: each accepted instance is a new
// pipe handle, matching the one-handle-per-client model net.Listener
// expects.
type pipeListener struct {
	name   string
	closed chan struct{}
}

func NewListener(name string) (net.Listener, error) {
	if name == "" {
		name = PipeName
	}
	return &pipeListener{name: name, closed: make(chan struct{})}, nil
}

func (l *pipeListener) Accept() (net.Conn, error) {
	namep, err := syscall.UTF16PtrFromString(l.name)
	if err != nil {
		return nil, err
	}
	handle, err := windows.CreateNamedPipe(
		namep,
		windows.PIPE_ACCESS_DUPLEX,
		windows.PIPE_TYPE_MESSAGE|windows.PIPE_READMODE_BYTE|windows.PIPE_WAIT,
		windows.PIPE_UNLIMITED_INSTANCES,
		pipeBufSize, pipeBufSize,
		0,
		nil,
	)
	if err != nil {
		return nil, err
	}

	select {
	case <-l.closed:
		windows.CloseHandle(handle)
		return nil, net.ErrClosed
	default:
	}

	if err := windows.ConnectNamedPipe(handle, nil); err != nil && !errors.Is(err, windows.ERROR_PIPE_CONNECTED) {
		windows.CloseHandle(handle)
		return nil, err
	}
	return &pipeConn{handle: handle}, nil
}

func (l *pipeListener) Close() error {
	close(l.closed)
	return nil
}

func (l *pipeListener) Addr() net.Addr { return pipeAddr(l.name) }

type pipeAddr string

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return string(a) }

type pipeConn struct {
	handle windows.Handle
}

func (c *pipeConn) Read(b []byte) (int, error) {
	var n uint32
	err := windows.ReadFile(c.handle, b, &n, nil)
	return int(n), err
}

func (c *pipeConn) Write(b []byte) (int, error) {
	var n uint32
	err := windows.WriteFile(c.handle, b, &n, nil)
	return int(n), err
}

func (c *pipeConn) Close() error {
	windows.DisconnectNamedPipe(c.handle)
	return windows.CloseHandle(c.handle)
}

func (c *pipeConn) LocalAddr() net.Addr  { return pipeAddr(PipeName) }
func (c *pipeConn) RemoteAddr() net.Addr { return pipeAddr(PipeName) }

func (c *pipeConn) SetDeadline(t time.Time) error      { return nil }
func (c *pipeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *pipeConn) SetWriteDeadline(t time.Time) error { return nil }
