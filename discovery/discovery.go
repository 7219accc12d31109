// Package discovery is an optional, core-external helper for locating
// server instances: this runtime's Non-goals exclude service discovery from
// the RPC core itself, but the example binary (cmd/erpcecho) still needs
// some way to turn a service name into an address, so this package keeps
// that concern out of rpc/arbitrate/transport entirely.
//
// Grounded on the prior implementation's registry package (Registry interface,
// EtcdRegistry) and loadbalance.RoundRobinBalancer, merged into one
// package since nothing else in this runtime consumes a discovery
// abstraction standalone from instance picking.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Instance is a single running server instance.
type Instance struct {
	Addr    string `json:"addr"`
	Weight  int    `json:"weight"`
	Version string `json:"version"`
}

// Resolver discovers instances of a named service and can watch for
// changes. Implementations include EtcdResolver (production) and any
// test double that satisfies the interface directly.
type Resolver interface {
	Register(ctx context.Context, service string, inst Instance, ttlSeconds int64) error
	Deregister(ctx context.Context, service string, addr string) error
	Discover(ctx context.Context, service string) ([]Instance, error)
	Watch(ctx context.Context, service string) <-chan []Instance
}

// EtcdResolver implements Resolver using etcd v3 as the backing store,
// keyed under /erpcgo/{service}/{id}, where id is instanceID(addr) as
// eight hex digits.
//
// Grounded on the prior implementation's EtcdRegistry; the key prefix changed, the
// lease/KeepAlive/Watch mechanics are unchanged.
type EtcdResolver struct {
	client *clientv3.Client
}

// NewEtcdResolver connects to the given etcd endpoints.
func NewEtcdResolver(endpoints []string) (*EtcdResolver, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, err
	}
	return &EtcdResolver{client: c}, nil
}

// instanceID derives a short, stable identifier for addr within a
// service's key space, the same non-cryptographic checksum idiom the
// prior implementation's ConsistentHashBalancer.Add used to place virtual nodes on its
// hash ring (crc32.ChecksumIEEE). Here it is reused for identity rather
// than ring placement: it keeps an instance's etcd key stable across
// re-registrations without embedding the raw address twice.
func instanceID(addr string) uint32 {
	return crc32.ChecksumIEEE([]byte(addr))
}

func keyFor(service, addr string) string {
	return fmt.Sprintf("/erpcgo/%s/%08x", service, instanceID(addr))
}

// Register stores inst under a TTL lease and keeps it alive in the
// background until ctx is cancelled.
func (r *EtcdResolver) Register(ctx context.Context, service string, inst Instance, ttlSeconds int64) error {
	lease, err := r.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return err
	}
	val, err := json.Marshal(inst)
	if err != nil {
		return err
	}
	if _, err := r.client.Put(ctx, keyFor(service, inst.Addr), string(val), clientv3.WithLease(lease.ID)); err != nil {
		return err
	}
	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes one instance's entry.
func (r *EtcdResolver) Deregister(ctx context.Context, service, addr string) error {
	_, err := r.client.Delete(ctx, keyFor(service, addr))
	return err
}

// Discover lists every instance currently registered for service.
func (r *EtcdResolver) Discover(ctx context.Context, service string) ([]Instance, error) {
	prefix := "/erpcgo/" + service + "/"
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var inst Instance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Watch emits a fresh instance list whenever the service's prefix
// changes in etcd, using etcd's server-push Watch API.
func (r *EtcdResolver) Watch(ctx context.Context, service string) <-chan []Instance {
	out := make(chan []Instance, 1)
	prefix := "/erpcgo/" + service + "/"
	go func() {
		defer close(out)
		watchChan := r.client.Watch(ctx, prefix, clientv3.WithPrefix())
		for range watchChan {
			instances, err := r.Discover(ctx, service)
			if err != nil {
				continue
			}
			out <- instances
		}
	}()
	return out
}

// RoundRobinPicker selects the next instance from a list in round-robin
// order, grounded directly on the prior implementation's RoundRobinBalancer.
type RoundRobinPicker struct {
	counter int64
}

// Pick returns the next instance in instances, cycling with an atomic
// counter so concurrent callers never need a lock.
func (p *RoundRobinPicker) Pick(instances []Instance) (Instance, error) {
	if len(instances) == 0 {
		return Instance{}, fmt.Errorf("discovery: no instances available")
	}
	index := atomic.AddInt64(&p.counter, 1) % int64(len(instances))
	return instances[index], nil
}
