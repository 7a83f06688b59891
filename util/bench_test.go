package util

import "testing"

// BenchmarkBufPool measures the allocation advantage of sync.Pool
// buffer reuse versus fresh allocation for read-loop buffers.
func BenchmarkBufPool(b *testing.B) {
	b.Run("pool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := GetBuf()
			_ = (*buf)[0]
			PutBuf(buf)
		}
	})
	b.Run("alloc", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := make([]byte, ReadBufSize)
			_ = buf[0]
		}
	})
}
