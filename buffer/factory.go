package buffer

// Factory creates and disposes Buffers. The factory owns the byte storage;
// a Buffer returned by Create is only a view over it and must be returned
// via Dispose rather than dropped, so pooled factories can reclaim slots.
//
// CreateServerBuffer and PrepareServerBufferForSend exist for zero-copy
// server transports (e.g. RPMsg) that allocate their receive buffer inside
// Transport.Receive itself instead of letting the Server ask for one
// upfront. rpc.Server.serveOnce does not consult CreateServerBuffer: it
// always allocates the receive buffer with Create before calling
// Transport.Receive.
type Factory interface {
	Create() *Buffer
	Dispose(*Buffer)
	// CreateServerBuffer reports whether the Server should allocate the
	// receive buffer itself before calling Transport.Receive. Zero-copy
	// factories return false and let Receive supply its own buffer.
	CreateServerBuffer() bool
	// PrepareServerBufferForSend gives the factory a chance to reallocate
	// or resize buf before it is handed to Transport.Send for the reply.
	PrepareServerBufferForSend(buf *Buffer) error
}

// DynamicFactory allocates a fresh heap-backed slice per Create call and
// relies on the garbage collector for reclamation; Dispose is a no-op
// besides dropping the reference. Grounded on the prior implementation's plain
// make([]byte, total) allocations (codec/binary_codec.go) — the "just
// allocate one per call" idiom generalized from an encode buffer to any
// buffer in the runtime.
type DynamicFactory struct {
	Size int
}

// NewDynamicFactory returns a factory producing buffers of the given size.
func NewDynamicFactory(size int) *DynamicFactory {
	return &DynamicFactory{Size: size}
}

func (f *DynamicFactory) Create() *Buffer {
	return New(make([]byte, f.Size))
}

func (f *DynamicFactory) Dispose(*Buffer) {}

func (f *DynamicFactory) CreateServerBuffer() bool { return true }

func (f *DynamicFactory) PrepareServerBufferForSend(*Buffer) error { return nil }

// WithServerBuffering wraps a Factory to flip CreateServerBuffer off,
// modeling a transport that delivers its own buffer inside Receive (e.g. a
// zero-copy shared-memory mailbox).
type WithServerBuffering struct {
	Factory
	ServerAllocates bool
}

func (f *WithServerBuffering) CreateServerBuffer() bool { return f.ServerAllocates }

var _ Factory = (*DynamicFactory)(nil)
var _ Factory = (*WithServerBuffering)(nil)
