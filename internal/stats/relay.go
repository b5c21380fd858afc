package stats

import (
	"errors"
	"fmt"
	"net"
)

// UDPRelay writes each telemetry line as its own datagram.
type UDPRelay struct {
	addr string
	conn net.Conn
}

// DialUDP resolves addr ("host:port") and returns a connected relay.
func DialUDP(addr string) (*UDPRelay, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp relay %s: %w", addr, err)
	}
	return &UDPRelay{addr: addr, conn: conn}, nil
}

// Addr returns the relay address.
func (r *UDPRelay) Addr() string { return r.addr }

// Send writes every line, continuing past failures so one lost datagram does
// not drop the rest. The joined errors are returned.
func (r *UDPRelay) Send(lines []string) error {
	var errs []error
	for _, l := range lines {
		if _, err := r.conn.Write([]byte(l)); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", r.addr, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases the socket.
func (r *UDPRelay) Close() error {
	return r.conn.Close()
}
