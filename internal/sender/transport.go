package sender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"syscall"
	"time"
)

// Transport opens a byte stream to the destination.
type Transport interface {
	Name() string
	Open(ctx context.Context, host, port string) (io.WriteCloser, error)
}

// TransportFor resolves a transport by name.
func TransportFor(name string, dialTimeout time.Duration, netcat string) (Transport, error) {
	switch name {
	case "", "tcp":
		return TCPTransport{Timeout: dialTimeout}, nil
	case "nc":
		if netcat == "" {
			netcat = "nc"
		}
		return NetcatTransport{Path: netcat}, nil
	default:
		return nil, fmt.Errorf("%w: unknown transport %q (want tcp or nc)", ErrUsage, name)
	}
}

// TCPTransport dials the destination directly.
type TCPTransport struct {
	Timeout time.Duration
}

func (TCPTransport) Name() string { return "tcp" }

func (t TCPTransport) Open(ctx context.Context, host, port string) (io.WriteCloser, error) {
	d := net.Dialer{Timeout: t.Timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// NetcatTransport pipes frames into a netcat child process.
type NetcatTransport struct {
	Path string
}

func (NetcatTransport) Name() string { return "nc" }

func (t NetcatTransport) Open(ctx context.Context, host, port string) (io.WriteCloser, error) {
	cmd := exec.CommandContext(ctx, t.Path, host, port)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", t.Path, err)
	}
	return &netcatStream{cmd: cmd, stdin: stdin}, nil
}

type netcatStream struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func (s *netcatStream) Write(p []byte) (int, error) { return s.stdin.Write(p) }

// Close ends the input and waits for netcat to drain it.
func (s *netcatStream) Close() error {
	closeErr := s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("%s exited: %w", s.cmd.Path, err)
	}
	return closeErr
}

// retriableDial reports whether a dial failure is worth another attempt.
func retriableDial(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
