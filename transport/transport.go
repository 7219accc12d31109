// Package transport implements the abstract message transport (§4.4), the
// framed transport that adds CRC-protected length prefixing on top of a
// raw byte stream (§4.5), and two concrete links: an in-process Loopback
// for tests and a TCP link for real deployments.
//
// Grounded on the prior implementation's transport package (its
// ClientTransport/ConnPool), generalized from "one multiplexed connection
// per client" to "one raw byte link per Transport", with multiplexing
// moved up into the arbitrate package where §4.8 places it.
package transport

import (
	"context"

	"erpcgo/buffer"
)

// Transport is the message-level primitive every RPC component talks to:
// Send/Receive move one complete message; HasMessage is a non-blocking
// poll so a bare-metal main loop can stay responsive (§4.4).
type Transport interface {
	// Send transmits exactly buf.Used() bytes. No framing happens at this
	// layer — a Transport that needs message boundaries on the wire wraps
	// a PhysicalLink in a Framed.
	Send(ctx context.Context, buf *buffer.Buffer) error
	// Receive fills buf with one complete message and sets buf.Used().
	Receive(ctx context.Context, buf *buffer.Buffer) error
	// HasMessage reports, without blocking, whether a Receive call would
	// return immediately with data.
	HasMessage() bool
}

// PhysicalLink is the raw blocking read/write pair a Framed transport
// layers CRC-checked length-prefixing on top of (§1: "a blocking
// underlying read/write pair"). It carries no notion of message
// boundaries; Framed decides how many bytes to ask for and when.
type PhysicalLink interface {
	// Write sends exactly len(data) bytes.
	Write(ctx context.Context, data []byte) error
	// Read fills dst completely, blocking until it can.
	Read(ctx context.Context, dst []byte) error
}

// OneShotReceiver is an optional capability a PhysicalLink can implement
// when its underlying transport delivers a whole frame in a single
// callback rather than letting the caller ask for an exact byte count —
// the virtio/RPMsg TTY case called out in §4.5 step 6. After a Read that
// only asked for the frame header, Framed checks for this interface and,
// if the link already buffered the payload, consumes it from
// PendingPayload instead of issuing a second Read.
type OneShotReceiver interface {
	// PendingPayload returns and clears any bytes the last Read delivered
	// beyond what was asked for.
	PendingPayload() []byte
}
