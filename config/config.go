// Package config covers §6's configuration surface with a Config struct
// plus functional options, matching the prior implementation's plain-struct-building
// idiom rather than introducing a file-format parser: an embedded RPC
// runtime is compiled into the application that uses it, not configured
// by a YAML file read at runtime, so the options here are the only
// "configuration layer" this runtime needs.
package config

import (
	"erpcgo/buffer"
	"erpcgo/crc16"
	"erpcgo/hooks"
	"erpcgo/logging"
)

// AllocationPolicy selects which buffer.Factory the runtime builds.
type AllocationPolicy int

const (
	// AllocationDynamic allocates a fresh buffer per call and leaves
	// reclamation to the garbage collector (buffer.DynamicFactory).
	AllocationDynamic AllocationPolicy = iota
	// AllocationStatic preallocates a fixed pool of buffers up front and
	// reuses them for the life of the runtime (buffer.StaticFactory) — the
	// no-heap-after-startup mode a bare-metal embedding needs.
	AllocationStatic
)

// Config holds every tunable named in §6. Callers build one with New and
// functional options; New sets CRCSeed to crc16.DefaultSeed when no
// WithCRCSeed option is given, so the seed has a library default.
type Config struct {
	Threading            ThreadingModel
	NestedCallsEnabled   bool
	NestedCallsDetection bool
	MessageLogging       bool
	Hooks                *hooks.Pipeline
	AllocationPolicy     AllocationPolicy
	DefaultBufferSize    int
	DefaultBuffersCount  int
	ClientsThreadsAmount int
	CRCSeed              uint16
	crcSeedSet           bool
}

// ThreadingModel names a dispatch model. It is stored in Config.Threading,
// but nothing in the runtime reads it: rpc.Server dispatches every
// invocation on its own goroutine whatever the setting, and the threading
// package's mutexes and semaphores are always real.
type ThreadingModel int

const (
	// ThreadPerRequest names one goroutine per invocation, which is what
	// rpc.Server does — the natural Go mapping of the prior implementation's
	// one-goroutine-per-request server loop.
	ThreadPerRequest ThreadingModel = iota
	// SingleThreaded names one-at-a-time dispatch on the caller's own
	// goroutine; rpc.Server does not implement this mode.
	SingleThreaded
)

// Option mutates a Config under construction.
type Option func(*Config)

// New builds a Config with defaults (dynamic allocation, one goroutine
// per request, nested calls disabled, no logging) overridden by opts.
func New(opts ...Option) *Config {
	c := &Config{
		Threading:            ThreadPerRequest,
		AllocationPolicy:     AllocationDynamic,
		DefaultBufferSize:    512,
		DefaultBuffersCount:  8,
		ClientsThreadsAmount: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.crcSeedSet {
		c.CRCSeed = crc16.DefaultSeed
	}
	return c
}

// WithThreading sets Config.Threading (see ThreadingModel).
func WithThreading(m ThreadingModel) Option {
	return func(c *Config) { c.Threading = m }
}

// WithNestedCalls enables nested-call support (§4.8) and, independently,
// whether the runtime actively detects and rejects nested calls made
// without that support enabled.
func WithNestedCalls(enabled, detection bool) Option {
	return func(c *Config) {
		c.NestedCallsEnabled = enabled
		c.NestedCallsDetection = detection
	}
}

// WithMessageLogging turns on the default stdlib-backed message logger
// (§4.9/ambient logging).
func WithMessageLogging(enabled bool) Option {
	return func(c *Config) { c.MessageLogging = enabled }
}

// WithHooks installs a pre/post action pipeline (§4.10).
func WithHooks(p *hooks.Pipeline) Option {
	return func(c *Config) { c.Hooks = p }
}

// WithAllocationPolicy selects static or dynamic buffer allocation (§3).
func WithAllocationPolicy(p AllocationPolicy) Option {
	return func(c *Config) { c.AllocationPolicy = p }
}

// WithBufferSize sets the size of each buffer the runtime allocates.
func WithBufferSize(size int) Option {
	return func(c *Config) { c.DefaultBufferSize = size }
}

// WithBuffersCount sets how many buffers a static pool preallocates; it
// has no effect under AllocationDynamic.
func WithBuffersCount(count int) Option {
	return func(c *Config) { c.DefaultBuffersCount = count }
}

// WithClientsThreadsAmount sizes the arbitrator's reserved pool for
// concurrently outstanding client calls (§4.8's pendingClient pool).
func WithClientsThreadsAmount(n int) Option {
	return func(c *Config) { c.ClientsThreadsAmount = n }
}

// WithCRCSeed sets the frame CRC seed. Without this option, New uses
// crc16.DefaultSeed.
func WithCRCSeed(seed uint16) Option {
	return func(c *Config) {
		c.CRCSeed = seed
		c.crcSeedSet = true
	}
}

// BufferFactory builds the buffer.Factory described by c.
func (c *Config) BufferFactory() buffer.Factory {
	switch c.AllocationPolicy {
	case AllocationStatic:
		return buffer.NewStaticFactory(c.DefaultBuffersCount, c.DefaultBufferSize)
	default:
		return buffer.NewDynamicFactory(c.DefaultBufferSize)
	}
}

// Logger builds the message-logging pipeline described by c, or nil if
// message logging is disabled.
func (c *Config) Logger() *logging.Pipeline {
	if !c.MessageLogging {
		return nil
	}
	return logging.NewPipeline(logging.NewStdLogger(nil))
}
