// Package logging implements the message logger hook described in §4.10:
// an optional observer the client manager and server feed every
// encoded/decoded message through, for tracing wire traffic without
// coupling the transport or codec to a specific logging backend.
//
// Grounded on the prior implementation's middleware.LoggingMiddleware, generalized from
// "wrap a handler, log duration and error" to "observe a raw message
// crossing the wire" since §4.10 places logging below the RPC layer, at
// the point where a service/method/sequence and a byte payload are known
// but the call hasn't necessarily returned a typed error yet.
package logging

import (
	"log"
	"time"

	"erpcgo/codec"
)

// Direction distinguishes an outbound send from an inbound receive.
type Direction int

const (
	DirectionOutbound Direction = iota
	DirectionInbound
)

func (d Direction) String() string {
	if d == DirectionOutbound {
		return "out"
	}
	return "in"
}

// Logger observes one message crossing the wire, after it has been
// decoded far enough to know its header.
type Logger interface {
	LogMessage(dir Direction, header codec.Header, payloadLen int, elapsed time.Duration, callErr error)
}

// Pipeline fans one message event out to every registered Logger in
// order — the multi-sink equivalent of chaining several
// LoggingMiddleware instances, but without re-running the call itself.
type Pipeline struct {
	loggers []Logger
}

// NewPipeline returns a Pipeline that forwards to every logger in order.
func NewPipeline(loggers ...Logger) *Pipeline {
	return &Pipeline{loggers: loggers}
}

func (p *Pipeline) Log(dir Direction, header codec.Header, payloadLen int, elapsed time.Duration, callErr error) {
	if p == nil {
		return
	}
	for _, l := range p.loggers {
		l.LogMessage(dir, header, payloadLen, elapsed, callErr)
	}
}

// StdLogger writes one line per message via the standard library logger,
// the same sink the prior implementation's LoggingMiddleware wrote to.
type StdLogger struct {
	*log.Logger
}

// NewStdLogger returns a Logger writing through l (or log.Default() if
// l is nil).
func NewStdLogger(l *log.Logger) *StdLogger {
	if l == nil {
		l = log.Default()
	}
	return &StdLogger{Logger: l}
}

func (s *StdLogger) LogMessage(dir Direction, header codec.Header, payloadLen int, elapsed time.Duration, callErr error) {
	if callErr != nil {
		s.Printf("[%s] service=%d method=%d seq=%d type=%s bytes=%d duration=%s error=%v",
			dir, header.ServiceID, header.MethodID, header.Sequence, header.Type, payloadLen, elapsed, callErr)
		return
	}
	s.Printf("[%s] service=%d method=%d seq=%d type=%s bytes=%d duration=%s",
		dir, header.ServiceID, header.MethodID, header.Sequence, header.Type, payloadLen, elapsed)
}
