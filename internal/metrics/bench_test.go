package metrics

import "testing"

// BenchmarkCollector_ReadPath measures the per-read overhead the read
// loop pays: one byte counter and one emitted event.
func BenchmarkCollector_ReadPath(b *testing.B) {
	c := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.BytesReceived(512)
		c.EventEmitted()
	}
}

// BenchmarkCollector_Snapshot measures the cost of taking a snapshot.
func BenchmarkCollector_Snapshot(b *testing.B) {
	c := New()
	c.ConnectionOpened()
	c.BytesSent(1024)
	c.RecordError("read error")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Snapshot()
	}
}

// BenchmarkNilCollector verifies nil-safe no-ops have zero overhead.
func BenchmarkNilCollector(b *testing.B) {
	var c *Collector
	for i := 0; i < b.N; i++ {
		c.BytesReceived(512)
		c.EventEmitted()
	}
}
