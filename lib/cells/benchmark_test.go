package cells

import (
	"bytes"
	"fmt"
	"testing"
)

// benchmarkSizes are the value sizes used by the benchmarks
var benchmarkSizes = []int{0, 16, 256, 4096}

// BenchmarkWriterAdd measures encoding throughput into a reused, non-growing buffer
func BenchmarkWriterAdd(b *testing.B) {
	for _, size := range benchmarkSizes {
		b.Run(fmt.Sprintf("value=%d", size), func(b *testing.B) {
			w := NewWriter(1<<20, false)
			row := []byte("benchmark-row-key")
			family := []byte("family")
			qualifier := []byte("qualifier")
			value := bytes.Repeat([]byte{'x'}, size)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if !w.AddInsert(row, family, qualifier, int64(i), value) {
					w.Clear()
					w.AddInsert(row, family, qualifier, int64(i), value)
				}
			}
			b.ReportMetric(float64(recordOverhead+8+len(row)+len(family)+len(qualifier)+size), "bytes")
		})
	}
}

// BenchmarkWriterGrow measures encoding into a buffer that starts small and grows
func BenchmarkWriterGrow(b *testing.B) {
	cell := NewInsert("benchmark-row-key", "family", "qualifier", TimestampAutoAssign, bytes.Repeat([]byte{'x'}, 64))

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		w := NewWriter(64, true)
		for j := 0; j < 1000; j++ {
			w.Add(cell)
		}
		_ = w.Buffer()
	}
}

// BenchmarkDecode measures decoding throughput of a stream with 1000 cells
func BenchmarkDecode(b *testing.B) {
	for _, size := range benchmarkSizes {
		b.Run(fmt.Sprintf("value=%d", size), func(b *testing.B) {
			w := NewWriter(1024, true)
			for j := 0; j < 1000; j++ {
				w.Add(NewInsert(fmt.Sprintf("row-%04d", j), "family", "qualifier", int64(j), bytes.Repeat([]byte{'x'}, size)))
			}
			stream := w.Bytes()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				r := NewReader(stream)
				for r.Next() {
				}
				if r.Err() != nil {
					b.Fatal(r.Err())
				}
			}
			b.ReportMetric(float64(len(stream)), "bytes")
		})
	}
}
