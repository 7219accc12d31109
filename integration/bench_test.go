package integration_test

import (
	"context"
	"testing"

	"erpcgo/buffer"
	"erpcgo/codec"
)

// BenchmarkSerialCall measures one goroutine issuing requests back to
// back over a real TCP connection — the baseline the prior implementation's
// BenchmarkSerialCall established for a single JSON-over-TCP client.
func BenchmarkSerialCall(b *testing.B) {
	cm, teardown := setupServerAndClient(b, "127.0.0.1:19540")
	defer teardown()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := cm.NewRequest(ctx, codec.MessageInvocation, 1, 0)
		req.Codec.WriteInt32(1)
		req.Codec.WriteInt32(2)
		if err := cm.PerformRequest(ctx, req); err != nil {
			b.Fatal(err)
		}
		cm.ReleaseRequest(req)
	}
}

// BenchmarkConcurrentCall fires requests from many goroutines at once
// over one arbitrated connection, the multiplexing case the prior implementation's
// BenchmarkConcurrentCall was written to show an advantage for.
func BenchmarkConcurrentCall(b *testing.B) {
	cm, teardown := setupServerAndClient(b, "127.0.0.1:19541")
	defer teardown()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			req := cm.NewRequest(ctx, codec.MessageInvocation, 1, 0)
			req.Codec.WriteInt32(1)
			req.Codec.WriteInt32(2)
			if err := cm.PerformRequest(ctx, req); err != nil {
				b.Error(err)
				return
			}
			cm.ReleaseRequest(req)
		}
	})
}

// BenchmarkCodecEncodeDecode measures the binary codec alone, no network
// involved — the prior implementation's BenchmarkCodecBinary generalized from one
// fixed Args/Reply JSON shape to the field-by-field binary codec this
// runtime actually ships.
func BenchmarkCodecEncodeDecode(b *testing.B) {
	storage := make([]byte, 256)
	cf := codec.NewPooledFactory()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := buffer.New(storage)
		cur := buffer.NewCursor(buf)
		c := cf.Create(cur)
		c.StartWriteMessage(codec.MessageInvocation, 1, 0, uint32(i))
		c.WriteInt32(1)
		c.WriteInt32(2)

		c.ResetForRead(0)
		c.StartReadMessage()
		c.ReadInt32()
		c.ReadInt32()
		cf.Dispose(c)
	}
}
