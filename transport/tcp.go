package transport

import (
	"context"
	"io"
	"net"
	"time"
)

// tcpLink adapts a net.Conn into a PhysicalLink. It is always used
// wrapped in a Framed, since TCP's byte stream has no inherent message
// boundaries (§4.5's motivating case).
//
// Grounded on the prior implementation's ClientTransport, which held a single
// net.Conn per transport; multiplexing several concurrent calls over
// that one conn is generalized out of this type entirely and lives in
// arbitrate.Arbitrator instead, per §4.8.
type tcpLink struct {
	conn net.Conn
}

// NewTCPLink wraps conn as a PhysicalLink.
func NewTCPLink(conn net.Conn) PhysicalLink {
	return &tcpLink{conn: conn}
}

func (t *tcpLink) Write(ctx context.Context, data []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(dl)
		defer t.conn.SetWriteDeadline(time.Time{})
	}
	_, err := t.conn.Write(data)
	return err
}

func (t *tcpLink) Read(ctx context.Context, dst []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(dl)
		defer t.conn.SetReadDeadline(time.Time{})
	}
	_, err := io.ReadFull(t.conn, dst)
	return err
}

// Close closes the underlying connection.
func (t *tcpLink) Close() error { return t.conn.Close() }

// DialTCP opens seed-configured Framed transport to addr.
func DialTCP(ctx context.Context, addr string, seed uint16) (*Framed, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewFramed(NewTCPLink(conn), seed), nil
}

// ListenTCP starts a TCP listener whose accepted connections can each be
// wrapped in NewFramed by the caller (the server loop owns that, since it
// also needs the raw net.Conn to close on shutdown).
func ListenTCP(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
