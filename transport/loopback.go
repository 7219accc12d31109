package transport

import (
	"context"
	"io"
	"sync"

	"erpcgo/buffer"
	"erpcgo/errs"
)

// Loopback is an in-process message-level Transport: each Send enqueues
// one whole message that a Receive on the peer end dequeues intact. It
// needs no framing, since the channel itself preserves message
// boundaries — the software analogue of a transport like RPMsg that
// hands the caller one complete datagram per receive.
//
// Grounded on the prior implementation's in-memory test doubles for ClientTransport,
// generalized to a bidirectional pair so client and server sides of a
// test can each hold one endpoint.
type Loopback struct {
	out chan []byte
	in  chan []byte
}

// NewLoopbackPair returns two Loopback endpoints wired to each other:
// messages sent on a arrive on b, and vice versa.
func NewLoopbackPair(capacity int) (a, b *Loopback) {
	c1 := make(chan []byte, capacity)
	c2 := make(chan []byte, capacity)
	a = &Loopback{out: c1, in: c2}
	b = &Loopback{out: c2, in: c1}
	return a, b
}

func (l *Loopback) Send(ctx context.Context, buf *buffer.Buffer) error {
	msg := make([]byte, buf.Used())
	copy(msg, buf.Bytes())
	select {
	case l.out <- msg:
		return nil
	case <-ctx.Done():
		return errs.New(errs.StatusSendFailed, ctx.Err().Error())
	}
}

func (l *Loopback) Receive(ctx context.Context, buf *buffer.Buffer) error {
	select {
	case msg, ok := <-l.in:
		if !ok {
			return errs.ErrConnectionClosed
		}
		if err := buf.SetUsed(0); err != nil {
			return err
		}
		if len(msg) == 0 {
			return nil
		}
		if err := buf.Write(0, msg, len(msg)); err != nil {
			return err
		}
		return buf.SetUsed(len(msg))
	case <-ctx.Done():
		return errs.New(errs.StatusReceiveFailed, ctx.Err().Error())
	}
}

func (l *Loopback) HasMessage() bool {
	return len(l.in) > 0
}

// Close closes the sending side of the pair, causing the peer's
// subsequent Receive calls to fail with ErrConnectionClosed once its
// buffered messages are drained.
func (l *Loopback) Close() error {
	close(l.out)
	return nil
}

// pipeLink adapts a pair of io.Reader/io.Writer (as produced by io.Pipe)
// into a PhysicalLink, for tests that want to exercise Framed over a
// byte stream without a real socket.
type pipeLink struct {
	r  io.Reader
	w  io.Writer
	mu sync.Mutex
}

// NewPipeLink wraps r and w as a PhysicalLink.
func NewPipeLink(r io.Reader, w io.Writer) PhysicalLink {
	return &pipeLink{r: r, w: w}
}

func (p *pipeLink) Write(ctx context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.w.Write(data)
	return err
}

func (p *pipeLink) Read(ctx context.Context, dst []byte) error {
	_, err := io.ReadFull(p.r, dst)
	return err
}
