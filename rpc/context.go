// Package rpc implements the generated-code-facing layer described in
// §4.6/§4.7: RequestContext (one in-flight call's codec + buffer),
// ClientManager (sequence assignment, send/receive, hook invocation) and
// the server side (ServiceRegistry + dispatch).
//
// Grounded on the prior implementation's client.Client and server.Server/service.go,
// generalized from "Service.Method string + JSON args" to "numeric
// service/method IDs + a streaming Codec", since §3's wire format encodes
// IDs, not names, and §4.2 specifies field-by-field encoding rather than
// a single JSON-marshaled payload.
package rpc

import (
	"context"

	"erpcgo/buffer"
	"erpcgo/codec"
)

// nestedCallKey marks a context as running inside a server method
// dispatch. A ClientManager call made with such a context is a nested
// call (§4.8): it is issued from a server method while the Server is
// still handling the outer invocation. Go's goroutines carry no OS thread identity to
// compare against (unlike the original runtime's thread-id check), so
// the marker is carried explicitly through context.Context instead.
type nestedCallKey struct{}

// WithNestedCall returns a context marked as running inside a server
// dispatch, for the server to attach before invoking a service method.
func WithNestedCall(ctx context.Context) context.Context {
	return context.WithValue(ctx, nestedCallKey{}, true)
}

// IsNestedCall reports whether ctx was produced by WithNestedCall.
func IsNestedCall(ctx context.Context) bool {
	v, _ := ctx.Value(nestedCallKey{}).(bool)
	return v
}

// RequestContext holds the buffer and codec backing one in-flight call,
// from NewRequest through ReleaseRequest.
type RequestContext struct {
	Buffer    *buffer.Buffer
	Codec     *codec.Codec
	ServiceID uint8
	MethodID  uint8
	Sequence  uint32
	Oneway    bool

	// fromPool is the factory Buffer came from (main or nested-reserved),
	// so ReleaseRequest returns it to the right place.
	fromPool buffer.Factory
}
