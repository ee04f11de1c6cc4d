package testing

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/ValentinKolb/cellwire/lib/table"
)

// RunTableBenchmarks runs all benchmarks for a table implementation
func RunTableBenchmarks(b *testing.B, name string, factory table.Factory) {

	b.Run("ApplyBatch", func(b *testing.B) {
		benchmarkApplyBatch(b, factory(name))
	})

	b.Run("ApplyAutoTimestamp", func(b *testing.B) {
		benchmarkApplyAutoTimestamp(b, factory(name))
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory(name))
	})

	b.Run("Scan", func(b *testing.B) {
		benchmarkScan(b, factory(name))
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// batch encodes n inserts starting at row offset into one finalized stream
func batch(offset, n int, timestamp int64) []byte {
	w := cells.NewWriter(n*64, true)
	for i := 0; i < n; i++ {
		row := []byte(fmt.Sprintf("row-%08d", offset+i))
		w.AddInsert(row, []byte("cf"), []byte("cq"), timestamp, []byte("benchmark-value"))
	}
	return w.Bytes()
}

// Benchmark for applying batches of 100 explicit-timestamp inserts
func benchmarkApplyBatch(b *testing.B, tbl table.ITable) {
	stream := batch(0, 100, 1)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := tbl.Apply(stream); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.ReportMetric(float64(len(stream)), "bytes/op")
}

// Benchmark for applying batches that need server assigned timestamps
func benchmarkApplyAutoTimestamp(b *testing.B, tbl table.ITable) {
	stream := batch(0, 100, cells.TimestampAutoAssign)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := tbl.Apply(stream); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func benchmarkGet(b *testing.B, tbl table.ITable) {
	numRows := 10_000
	if _, err := tbl.Apply(batch(0, numRows, 1)); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = tbl.Get(fmt.Sprintf("row-%08d", i%numRows))
			i++
		}
	})
}

func benchmarkScan(b *testing.B, tbl table.ITable) {
	if _, err := tbl.Apply(batch(0, 10_000, 1)); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n := 0
		_ = tbl.Scan("row-00001000", "row-00002000", func(cells.Cell) bool {
			n++
			return true
		})
		if n != 1000 {
			b.Fatalf("expected 1000 cells, got %d", n)
		}
	}
}

func benchmarkSaveLoad(b *testing.B, factory table.Factory) {
	tbl := factory("save")
	if _, err := tbl.Apply(batch(0, 10_000, 1)); err != nil {
		b.Fatal(err)
	}

	var buf bytes.Buffer
	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf.Reset()
			if err := tbl.Save(&buf); err != nil {
				b.Fatal(err)
			}
		}
		b.ReportMetric(float64(buf.Len()), "bytes")
	})

	b.Run("Load", func(b *testing.B) {
		data := buf.Bytes()
		for i := 0; i < b.N; i++ {
			if err := factory("load").Load(bytes.NewReader(data)); err != nil {
				b.Fatal(err)
			}
		}
	})
}
