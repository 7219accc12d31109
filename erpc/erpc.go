// Package erpc is the setup shim described in §4.11/§9: thin, optional
// package-level convenience bindings over the explicit object graph
// (*rpc.ClientManager, *rpc.Server) that remains the primary API. Nothing
// in rpc, transport, codec, or buffer depends on this package — an
// application that wants multiple independent client/server pairs simply
// never calls into erpc and constructs rpc.ClientManager/rpc.Server
// directly instead.
package erpc

import (
	"erpcgo/buffer"
	"erpcgo/codec"
	"erpcgo/config"
	"erpcgo/rpc"
	"erpcgo/storage"
	"erpcgo/transport"
)

var (
	defaultClient storage.Cell[*rpc.ClientManager]
	defaultServer storage.Cell[*rpc.Server]
)

// InitClient lazily constructs the package-level default ClientManager on
// first call; later calls return the one already built, ignoring t/cfg —
// matching the original runtime's "call erpc_client_init once" contract,
// reimplemented on storage.Cell instead of a static local plus an
// init-guard flag.
func InitClient(t transport.Transport, cfg *config.Config) *rpc.ClientManager {
	return defaultClient.Construct(func() *rpc.ClientManager {
		bf := cfg.BufferFactory()
		cf := codec.NewPooledFactory()
		cm := rpc.NewClientManager(t, bf, cf)
		cm.SetHooks(cfg.Hooks)
		cm.SetLogger(cfg.Logger())
		cm.SetNestedCallsPolicy(cfg.NestedCallsEnabled, cfg.NestedCallsDetection)
		if cfg.NestedCallsEnabled {
			cm.SetNestedBufferFactory(buffer.NewDynamicFactory(cfg.ClientsThreadsAmount * cfg.DefaultBufferSize))
		}
		return cm
	})
}

// Client returns the default ClientManager built by InitClient, or
// (nil, false) if InitClient hasn't run yet.
func Client() (*rpc.ClientManager, bool) { return defaultClient.Get() }

// StopClient destroys the package-level default ClientManager, so a later
// InitClient call builds a fresh one.
func StopClient() { defaultClient.Destroy(nil) }

// InitServer lazily constructs the package-level default Server.
func InitServer(cfg *config.Config) *rpc.Server {
	return defaultServer.Construct(func() *rpc.Server {
		bf := cfg.BufferFactory()
		cf := codec.NewPooledFactory()
		s := rpc.NewServer(bf, cf)
		s.SetHooks(cfg.Hooks)
		s.SetLogger(cfg.Logger())
		return s
	})
}

// Server returns the default Server built by InitServer, or (nil, false)
// if InitServer hasn't run yet.
func Server() (*rpc.Server, bool) { return defaultServer.Get() }

// StopServer destroys the package-level default Server, so a later
// InitServer call builds a fresh one.
func StopServer() { defaultServer.Destroy(nil) }

// AddService registers svc on s — a direct passthrough kept here only so
// call sites that otherwise use nothing but erpc.* don't need to import
// rpc just for this one call.
func AddService(s *rpc.Server, svc rpc.Service) { s.AddService(svc) }

// SetErrorHandler installs fn on s to observe the errors s reports (see
// rpc.Server.SetErrorHandler); without a handler they are dropped.
func SetErrorHandler(s *rpc.Server, fn func(error)) { s.SetErrorHandler(fn) }
