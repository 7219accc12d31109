// Command erpcecho demonstrates the runtime end to end: a server exposing
// one Echo service over TCP, an arbitrated client able to make concurrent
// calls over the same connection, and an optional etcd-backed discovery
// step to locate the server instance instead of a hardcoded address.
//
// Grounded on the prior implementation's cmd-style demo wiring (client/client_test.go
// and server/server_test.go's TCP setup), generalized to exercise
// arbitrate.Arbitrator and discovery.EtcdResolver, neither of which the
// prior implementation's own tests needed.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"erpcgo/arbitrate"
	"erpcgo/codec"
	"erpcgo/config"
	"erpcgo/discovery"
	"erpcgo/rpc"
	"erpcgo/transport"
)

// echoService is the one registered service: method 0 echoes back the
// string it was sent.
type echoService struct{}

func (e *echoService) Echo(ctx context.Context, args *codec.Codec) (rpc.ReplyWriter, error) {
	msg := args.ReadString()
	if err := args.Status(); err != nil {
		return nil, err
	}
	return func(reply *codec.Codec) { reply.WriteString(msg) }, nil
}

func main() {
	mode := flag.String("mode", "server", "server or client")
	addr := flag.String("addr", "127.0.0.1:7654", "listen/dial address")
	etcdEndpoint := flag.String("etcd", "", "etcd endpoint for service discovery (optional)")
	flag.Parse()

	cfg := config.New(
		config.WithCRCSeed(0xC0DE),
		config.WithBufferSize(1024),
		config.WithNestedCalls(true, true),
	)

	switch *mode {
	case "server":
		runServer(cfg, *addr, *etcdEndpoint)
	case "client":
		runClient(cfg, *addr, *etcdEndpoint)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

func runServer(cfg *config.Config, addr, etcdEndpoint string) {
	ln, err := transport.ListenTCP(addr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Printf("erpcecho server listening on %s", addr)

	if etcdEndpoint != "" {
		resolver, err := discovery.NewEtcdResolver([]string{etcdEndpoint})
		if err != nil {
			log.Fatalf("etcd resolver: %v", err)
		}
		ctx := context.Background()
		if err := resolver.Register(ctx, "erpcecho", discovery.Instance{Addr: addr, Weight: 1, Version: "dev"}, 10); err != nil {
			log.Fatalf("etcd register: %v", err)
		}
		log.Printf("registered with etcd at %s", etcdEndpoint)
	}

	svc, err := rpc.NewReflectService(1, &echoService{})
	if err != nil {
		log.Fatalf("NewReflectService: %v", err)
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("accept: %v", err)
			continue
		}
		go func() {
			link := transport.NewFramed(transport.NewTCPLink(conn), cfg.CRCSeed)
			arb := arbitrate.New(link, cfg.BufferFactory(), cfg.ClientsThreadsAmount)

			server := rpc.NewServer(cfg.BufferFactory(), codec.NewPooledFactory())
			server.AddService(svc)
			server.SetHooks(cfg.Hooks)
			server.SetLogger(cfg.Logger())
			arb.AttachServer(server)

			// The pump loop started by arbitrate.New does all the work for
			// this connection and ends on its own once its Receive fails
			// when the connection drops. This goroutine blocks forever; it
			// does not return when the connection drops.
			select {}
		}()
	}
}

func runClient(cfg *config.Config, addr, etcdEndpoint string) {
	target := addr
	if etcdEndpoint != "" {
		resolver, err := discovery.NewEtcdResolver([]string{etcdEndpoint})
		if err != nil {
			log.Fatalf("etcd resolver: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		instances, err := resolver.Discover(ctx, "erpcecho")
		if err != nil || len(instances) == 0 {
			log.Fatalf("no erpcecho instances discovered: %v", err)
		}
		picker := &discovery.RoundRobinPicker{}
		inst, err := picker.Pick(instances)
		if err != nil {
			log.Fatalf("pick instance: %v", err)
		}
		target = inst.Addr
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	link, err := transport.DialTCP(ctx, target, cfg.CRCSeed)
	if err != nil {
		log.Fatalf("dial %s: %v", target, err)
	}

	arb := arbitrate.New(link, cfg.BufferFactory(), cfg.ClientsThreadsAmount)
	defer arb.Stop()

	cm := rpc.NewClientManager(arb, cfg.BufferFactory(), codec.NewPooledFactory())
	cm.SetHooks(cfg.Hooks)
	cm.SetLogger(cfg.Logger())
	cm.SetNestedCallsPolicy(cfg.NestedCallsEnabled, cfg.NestedCallsDetection)
	if cfg.NestedCallsEnabled {
		cm.SetNestedBufferFactory(cfg.BufferFactory())
	}

	callCtx, cancelCall := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelCall()

	req := cm.NewRequest(callCtx, codec.MessageInvocation, 1, 0)
	req.Codec.WriteString("hello from erpcecho")
	if err := cm.PerformRequest(callCtx, req); err != nil {
		log.Fatalf("PerformRequest: %v", err)
	}
	reply := req.Codec.ReadString()
	if err := req.Codec.Status(); err != nil {
		log.Fatalf("decode reply: %v", err)
	}
	log.Printf("server replied: %s", reply)
	cm.ReleaseRequest(req)
}
