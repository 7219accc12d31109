package rpc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"erpcgo/buffer"
	"erpcgo/codec"
	"erpcgo/errs"
	"erpcgo/hooks"
	"erpcgo/logging"
	"erpcgo/transport"
)

// Server receives invocations off a Transport, dispatches them through a
// ServiceRegistry, and writes back replies — the reply for a normal
// invocation carries a leading status word ahead of the method's return
// values so a client can distinguish "method ran and returned an
// application error" from "method's own out-parameters" without a
// second round trip.
//
// Grounded on the prior implementation's server.Server: the accept-loop/per-request
// goroutine/graceful-shutdown shape is unchanged, generalized from "one
// goroutine per net.Conn, one more per request" to "one Run loop per
// Transport, one goroutine per invocation", since a Transport here may
// already be an arbitrate.Arbitrator multiplexing several logical peers
// over one underlying link.
type Server struct {
	registry      *ServiceRegistry
	bufferFactory buffer.Factory
	codecFactory  codec.Factory
	hooks         *hooks.Pipeline
	logger        *logging.Pipeline
	errorHandler  func(error)

	wg       sync.WaitGroup
	shutdown atomic.Bool
}

// NewServer returns a Server with an empty service registry.
func NewServer(bf buffer.Factory, cf codec.Factory) *Server {
	return &Server{
		registry:      NewServiceRegistry(),
		bufferFactory: bf,
		codecFactory:  cf,
	}
}

// AddService registers svc for dispatch.
func (s *Server) AddService(svc Service) { s.registry.Add(svc) }

// SetErrorHandler installs fn to observe the non-fatal receive and decode
// errors Run meets, and the hook, prepare and send errors of each
// dispatch. Without a handler these errors are dropped. Poll and
// DispatchBuffer return their receive and decode errors to the caller
// rather than passing them to fn. The Server recovers no panics, so fn
// must not panic.
func (s *Server) SetErrorHandler(fn func(error)) { s.errorHandler = fn }

// SetHooks installs the pre/post action pipeline run around every
// dispatched invocation.
func (s *Server) SetHooks(p *hooks.Pipeline) { s.hooks = p }

// SetLogger installs the message logger pipeline.
func (s *Server) SetLogger(p *logging.Pipeline) { s.logger = p }

// Run blocks, repeatedly calling serveOnce until ctx is done or t reports
// its connection has closed.
func (s *Server) Run(ctx context.Context, t transport.Transport) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if s.shutdown.Load() {
			return nil
		}
		if err := s.serveOnce(ctx, t); err != nil {
			if se, ok := err.(*errs.StatusError); ok && errs.Fatal(se.Status) {
				return nil
			}
			s.reportError(err)
		}
	}
}

// Poll runs at most one invocation, returning immediately if t has no
// message waiting — the non-blocking variant a bare-metal main loop
// calls once per iteration instead of dedicating a thread to Run.
func (s *Server) Poll(ctx context.Context, t transport.Transport) error {
	if !t.HasMessage() {
		return nil
	}
	return s.serveOnce(ctx, t)
}

func (s *Server) serveOnce(ctx context.Context, t transport.Transport) error {
	buf := s.bufferFactory.Create()

	if err := t.Receive(ctx, buf); err != nil {
		s.bufferFactory.Dispose(buf)
		return err
	}
	return s.DispatchBuffer(ctx, t, buf)
}

// DispatchBuffer decodes a message already received into buf and, if it
// is a request, dispatches it — the entry point arbitrate.Arbitrator uses
// to hand this Server an invocation it pulled off a shared transport,
// without Server having to call Transport.Receive itself.
func (s *Server) DispatchBuffer(ctx context.Context, t transport.Transport, buf *buffer.Buffer) error {
	start := time.Now()
	cdc := s.codecFactory.Create(buffer.NewCursor(buf))
	cdc.ResetForRead(0)
	header := cdc.StartReadMessage()
	if err := cdc.Status(); err != nil {
		s.codecFactory.Dispose(cdc)
		s.bufferFactory.Dispose(buf)
		return err
	}
	if header.Type != codec.MessageInvocation && header.Type != codec.MessageOneway {
		s.codecFactory.Dispose(cdc)
		s.bufferFactory.Dispose(buf)
		return errs.New(errs.StatusInvalidArgument, "rpc: not an invocation or oneway message")
	}
	s.logger.Log(logging.DirectionInbound, header, buf.Used(), time.Since(start), nil)

	s.wg.Add(1)
	go s.dispatch(ctx, t, header, cdc, buf)
	return nil
}

func (s *Server) dispatch(ctx context.Context, t transport.Transport, header codec.Header, cdc *codec.Codec, buf *buffer.Buffer) {
	defer s.wg.Done()
	defer s.codecFactory.Dispose(cdc)
	defer s.bufferFactory.Dispose(buf)

	ctx = WithNestedCall(ctx)
	if err := s.hooks.RunPre(ctx, header.ServiceID, header.MethodID); err != nil {
		s.reportError(err)
		return
	}

	svc, ok := s.registry.Lookup(header.ServiceID)
	var callErr error
	var writeReply ReplyWriter
	if !ok {
		callErr = errs.ErrUnknownName
	} else {
		writeReply, callErr = svc.Invoke(ctx, header.MethodID, cdc)
	}
	s.hooks.RunPost(ctx, header.ServiceID, header.MethodID, callErr)

	if header.Type == codec.MessageOneway {
		return
	}

	reply := s.bufferFactory.Create()
	defer s.bufferFactory.Dispose(reply)
	replyCodec := s.codecFactory.Create(buffer.NewCursor(reply))
	defer s.codecFactory.Dispose(replyCodec)

	replyCodec.StartWriteMessage(codec.MessageReply, header.ServiceID, header.MethodID, header.Sequence)
	status := errs.StatusSuccess
	if se, ok := callErr.(*errs.StatusError); ok {
		status = se.Status
	} else if callErr != nil {
		status = errs.StatusFail
	}
	replyCodec.WriteUint32(uint32(status))
	if callErr == nil && writeReply != nil {
		writeReply(replyCodec)
	}

	if err := s.bufferFactory.PrepareServerBufferForSend(reply); err != nil {
		s.reportError(err)
		return
	}
	if err := t.Send(ctx, reply); err != nil {
		s.reportError(err)
		return
	}
	s.logger.Log(logging.DirectionOutbound, header, reply.Used(), 0, callErr)
}

func (s *Server) reportError(err error) {
	if s.errorHandler != nil {
		s.errorHandler(err)
	}
}

// Shutdown waits up to timeout for in-flight dispatches to finish.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.shutdown.Store(true)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errs.New(errs.StatusTimeout, "timeout waiting for in-flight requests")
	}
}
