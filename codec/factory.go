package codec

import (
	"sync"

	"erpcgo/buffer"
)

// Factory creates and disposes Codecs. Grounded on the prior implementation's
// codec.GetCodec factory function, generalized from a type-switch
// returning a stateless struct to a pooled allocator, since every Codec
// here wraps a live cursor rather than being a bare strategy value.
type Factory interface {
	Create(cur *buffer.Cursor) *Codec
	Dispose(*Codec)
}

// PooledFactory reuses Codec values across calls via sync.Pool, avoiding
// an allocation per request on the hot path.
type PooledFactory struct {
	pool sync.Pool
}

// NewPooledFactory returns a ready-to-use pooled codec factory.
func NewPooledFactory() *PooledFactory {
	return &PooledFactory{
		pool: sync.Pool{New: func() any { return &Codec{} }},
	}
}

func (f *PooledFactory) Create(cur *buffer.Cursor) *Codec {
	c := f.pool.Get().(*Codec)
	c.cursor = cur
	c.status = nil
	return c
}

func (f *PooledFactory) Dispose(c *Codec) {
	c.cursor = nil
	c.status = nil
	f.pool.Put(c)
}

var _ Factory = (*PooledFactory)(nil)
