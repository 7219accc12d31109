package arbitrate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"erpcgo/arbitrate"
	"erpcgo/buffer"
	"erpcgo/codec"
	"erpcgo/errs"
	"erpcgo/rpc"
	"erpcgo/transport"
)

type echoService struct{}

func (e *echoService) Echo(ctx context.Context, args *codec.Codec) (rpc.ReplyWriter, error) {
	msg := args.ReadString()
	if err := args.Status(); err != nil {
		return nil, err
	}
	return func(reply *codec.Codec) { reply.WriteString(msg) }, nil
}

// TestArbitratedRoundTrip exercises a Client and a Server sharing a single
// loopback link through two Arbitrators, confirming the pump loop both
// routes a Reply back to the waiting ClientManager and forwards an
// Invocation to the attached Server.
func TestArbitratedRoundTrip(t *testing.T) {
	clientLink, serverLink := transport.NewLoopbackPair(4)

	bf := buffer.NewDynamicFactory(256)
	cf := codec.NewPooledFactory()

	clientArb := arbitrate.New(clientLink, bf, 8)
	defer clientArb.Stop()
	serverArb := arbitrate.New(serverLink, bf, 8)
	defer serverArb.Stop()

	svc, err := rpc.NewReflectService(1, &echoService{})
	if err != nil {
		t.Fatalf("NewReflectService: %v", err)
	}
	server := rpc.NewServer(bf, cf)
	server.AddService(svc)
	serverArb.AttachServer(server)

	cm := rpc.NewClientManager(clientArb, bf, cf)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := cm.NewRequest(ctx, codec.MessageInvocation, 1, 0)
	req.Codec.WriteString("hi there")

	if err := cm.PerformRequest(ctx, req); err != nil {
		t.Fatalf("PerformRequest: %v", err)
	}
	got := req.Codec.ReadString()
	if err := req.Codec.Status(); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if got != "hi there" {
		t.Fatalf("got %q, want %q", got, "hi there")
	}
	cm.ReleaseRequest(req)
}

func (e *echoService) Fail(ctx context.Context, args *codec.Codec) (rpc.ReplyWriter, error) {
	return nil, errs.ErrInvalidArgument
}

// TestArbitratedConcurrentCalls fires several concurrent requests over one
// arbitrated link, verifying the pump loop demultiplexes replies to the
// right caller by sequence number rather than by arrival order.
func TestArbitratedConcurrentCalls(t *testing.T) {
	clientLink, serverLink := transport.NewLoopbackPair(8)

	bf := buffer.NewDynamicFactory(256)
	cf := codec.NewPooledFactory()

	clientArb := arbitrate.New(clientLink, bf, 8)
	defer clientArb.Stop()
	serverArb := arbitrate.New(serverLink, bf, 8)
	defer serverArb.Stop()

	svc, _ := rpc.NewReflectService(1, &echoService{})
	server := rpc.NewServer(bf, cf)
	server.AddService(svc)
	serverArb.AttachServer(server)

	cm := rpc.NewClientManager(clientArb, bf, cf)

	const n = 5
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			req := cm.NewRequest(ctx, codec.MessageInvocation, 1, 0)
			req.Codec.WriteString("msg")
			err := cm.PerformRequest(ctx, req)
			cm.ReleaseRequest(req)
			errCh <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("concurrent call %d: %v", i, err)
		}
	}
}

type nestingService struct {
	cm *rpc.ClientManager
}

// Relay calls back through the same arbitrated link the invocation that
// is calling Relay arrived on, proving (or, with nesting disallowed,
// failing fast instead of deadlocking) that a handler can itself be a
// client.
func (n *nestingService) Relay(ctx context.Context, args *codec.Codec) (rpc.ReplyWriter, error) {
	msg := args.ReadString()
	if err := args.Status(); err != nil {
		return nil, err
	}
	inner := n.cm.NewRequest(ctx, codec.MessageInvocation, 1, 0)
	inner.Codec.WriteString(msg)
	err := n.cm.PerformRequest(ctx, inner)
	if err != nil {
		n.cm.ReleaseRequest(inner)
		return nil, err
	}
	got := inner.Codec.ReadString()
	n.cm.ReleaseRequest(inner)
	return func(reply *codec.Codec) { reply.WriteString(got) }, nil
}

// nestedCallRig wires two symmetric Arbitrators over one loopback link:
// outerArb stands in for the original caller (echoService, serviceID 1),
// innerArb stands in for the server whose handler (nestingService,
// serviceID 2) turns around and calls serviceID 1 back over the same
// link via innerCm — exercising a genuine nested call rather than a
// direct in-process one.
func newNestedCallRig(t *testing.T, enabled, detection bool) (driverCm *rpc.ClientManager, teardown func()) {
	t.Helper()
	outerLink, innerLink := transport.NewLoopbackPair(4)

	bf := buffer.NewDynamicFactory(256)
	cf := codec.NewPooledFactory()

	outerArb := arbitrate.New(outerLink, bf, 8)
	innerArb := arbitrate.New(innerLink, bf, 8)

	outerServer := rpc.NewServer(bf, cf)
	echoSvc, _ := rpc.NewReflectService(1, &echoService{})
	outerServer.AddService(echoSvc)
	outerArb.AttachServer(outerServer)

	innerCm := rpc.NewClientManager(innerArb, bf, cf)
	innerCm.SetNestedCallsPolicy(enabled, detection)

	innerServer := rpc.NewServer(bf, cf)
	nestSvc, err := rpc.NewReflectService(2, &nestingService{cm: innerCm})
	if err != nil {
		t.Fatalf("NewReflectService(nestingService): %v", err)
	}
	innerServer.AddService(nestSvc)
	innerArb.AttachServer(innerServer)

	driverCm = rpc.NewClientManager(outerArb, bf, cf)
	return driverCm, func() {
		outerArb.Stop()
		innerArb.Stop()
	}
}

// TestNestedCallAllowedWhenEnabled confirms a server handler may itself
// make a call back over the link it was invoked on once nested calls are
// enabled on the ClientManager it uses.
func TestNestedCallAllowedWhenEnabled(t *testing.T) {
	driverCm, teardown := newNestedCallRig(t, true, true)
	defer teardown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := driverCm.NewRequest(ctx, codec.MessageInvocation, 2, 0)
	req.Codec.WriteString("echo through nesting")
	if err := driverCm.PerformRequest(ctx, req); err != nil {
		t.Fatalf("PerformRequest: %v", err)
	}
	if got := req.Codec.ReadString(); got != "echo through nesting" {
		t.Fatalf("got %q, want %q", got, "echo through nesting")
	}
	driverCm.ReleaseRequest(req)
}

// TestNestedCallRejectedWhenDisabled confirms a handler's attempt to call
// back through a ClientManager that has nested calls disabled, with
// detection on, fails fast with errs.ErrNestedCallFailure rather than
// attempting a reentrant send.
func TestNestedCallRejectedWhenDisabled(t *testing.T) {
	driverCm, teardown := newNestedCallRig(t, false, true)
	defer teardown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := driverCm.NewRequest(ctx, codec.MessageInvocation, 2, 0)
	req.Codec.WriteString("should not nest")
	err := driverCm.PerformRequest(ctx, req)
	if !errors.Is(err, errs.ErrNestedCallFailure) {
		t.Fatalf("PerformRequest err = %v, want errs.ErrNestedCallFailure (relayed status from the rejected inner call)", err)
	}
	driverCm.ReleaseRequest(req)
}

// TestArbitratedErrorPropagation confirms a handler's error crosses the
// pump loop back to the waiting caller instead of being swallowed or
// stalling the arbitrated link for later callers.
func TestArbitratedErrorPropagation(t *testing.T) {
	clientLink, serverLink := transport.NewLoopbackPair(4)

	bf := buffer.NewDynamicFactory(256)
	cf := codec.NewPooledFactory()

	clientArb := arbitrate.New(clientLink, bf, 8)
	defer clientArb.Stop()
	serverArb := arbitrate.New(serverLink, bf, 8)
	defer serverArb.Stop()

	svc, err := rpc.NewReflectService(1, &echoService{})
	if err != nil {
		t.Fatalf("NewReflectService: %v", err)
	}
	server := rpc.NewServer(bf, cf)
	server.AddService(svc)
	serverArb.AttachServer(server)

	cm := rpc.NewClientManager(clientArb, bf, cf)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	failReq := cm.NewRequest(ctx, codec.MessageInvocation, 1, 1)
	if err := cm.PerformRequest(ctx, failReq); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("Fail: got err %v, want errs.ErrInvalidArgument", err)
	}
	cm.ReleaseRequest(failReq)

	okReq := cm.NewRequest(ctx, codec.MessageInvocation, 1, 0)
	okReq.Codec.WriteString("still alive")
	if err := cm.PerformRequest(ctx, okReq); err != nil {
		t.Fatalf("Echo after Fail: %v", err)
	}
	if got := okReq.Codec.ReadString(); got != "still alive" {
		t.Fatalf("Echo after Fail: got %q", got)
	}
	cm.ReleaseRequest(okReq)
}
