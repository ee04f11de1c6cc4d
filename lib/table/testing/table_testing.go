package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/ValentinKolb/cellwire/lib/table"
	"github.com/pkg/errors"
)

// RunTableTests runs a comprehensive test suite for an ITable implementation.
func RunTableTests(t *testing.T, name string, factory table.Factory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Insert&Get", func(t *testing.T) {
			testInsertGet(t, factory("insert-get"))
		})

		t.Run("AutoTimestamp", func(t *testing.T) {
			testAutoTimestamp(t, factory("auto-timestamp"))
		})

		t.Run("StaleInsert", func(t *testing.T) {
			testStaleInsert(t, factory("stale-insert"))
		})

		t.Run("DeleteKinds", func(t *testing.T) {
			testDeleteKinds(t, factory("delete-kinds"))
		})

		t.Run("DeleteRespectsTimestamp", func(t *testing.T) {
			testDeleteRespectsTimestamp(t, factory("delete-timestamp"))
		})

		t.Run("Scan", func(t *testing.T) {
			testScan(t, factory("scan"))
		})

		t.Run("InvalidInput", func(t *testing.T) {
			testInvalidInput(t, factory("invalid-input"))
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory("info"))
		})

		t.Run("Concurrent", func(t *testing.T) {
			testConcurrent(t, factory("concurrent"))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// apply encodes the cells into one stream and applies it to the table
func apply(t testing.TB, tbl table.ITable, cs ...cells.Cell) {
	t.Helper()
	w := cells.NewWriter(256, true)
	for _, c := range cs {
		if !w.Add(c) {
			t.Fatalf("failed to encode %s", c)
		}
	}
	applied, err := tbl.Apply(w.Bytes())
	if err != nil {
		t.Fatalf("Unexpected error during Apply: %v", err)
	}
	if applied != len(cs) {
		t.Fatalf("Expected %d applied cells, got %d", len(cs), applied)
	}
}

// get returns the row as a map from "family:qualifier" to value
func get(t testing.TB, tbl table.ITable, row string) map[string]string {
	t.Helper()
	cs, err := tbl.Get(row)
	if err != nil {
		t.Fatalf("Unexpected error during Get: %v", err)
	}
	out := make(map[string]string, len(cs))
	for _, c := range cs {
		out[c.Key.ColumnFamily+":"+c.Key.ColumnQualifier] = string(c.Value)
	}
	return out
}

func expectColumns(t *testing.T, tbl table.ITable, row string, want map[string]string) {
	t.Helper()
	got := get(t, tbl, row)
	if len(got) != len(want) {
		t.Errorf("Row %s: expected %d cells %v, got %d cells %v", row, len(want), want, len(got), got)
		return
	}
	for col, value := range want {
		if got[col] != value {
			t.Errorf("Row %s column %s: expected %q, got %q", row, col, value, got[col])
		}
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertGet(t *testing.T, tbl table.ITable) {
	apply(t, tbl,
		cells.NewInsert("r1", "info", "b", 10, []byte("v-b")),
		cells.NewInsert("r1", "info", "a", 10, []byte("v-a")),
		cells.NewInsert("r1", "data", "x", 10, []byte("v-x")),
		cells.NewInsert("r2", "info", "a", 10, nil),
	)

	cs, err := tbl.Get("r1")
	if err != nil {
		t.Fatalf("Unexpected error during Get: %v", err)
	}
	order := []string{"data:x", "info:a", "info:b"}
	if len(cs) != len(order) {
		t.Fatalf("Expected %d cells, got %d", len(order), len(cs))
	}
	for i, c := range cs {
		if got := c.Key.ColumnFamily + ":" + c.Key.ColumnQualifier; got != order[i] {
			t.Errorf("Cell %d: expected column %s, got %s", i, order[i], got)
		}
		if c.Key.Row != "r1" || c.Key.Timestamp != 10 || c.Key.Flag != cells.KeyFlagInsert {
			t.Errorf("Cell %d: unexpected key %+v", i, c.Key)
		}
	}

	// returned values are copies
	cs[0].Value[0] = 'X'
	expectColumns(t, tbl, "r1", map[string]string{"data:x": "v-x", "info:a": "v-a", "info:b": "v-b"})

	// empty values are stored
	expectColumns(t, tbl, "r2", map[string]string{"info:a": ""})

	cs, err = tbl.Get("nonexistent")
	if err != nil || len(cs) != 0 {
		t.Errorf("Expected no cells and no error for missing row, got %v, %v", cs, err)
	}
}

func testAutoTimestamp(t *testing.T, tbl table.ITable) {
	apply(t, tbl, cells.NewInsert("row", "cf", "cq", cells.TimestampAutoAssign, []byte("first")))

	cs, _ := tbl.Get("row")
	if len(cs) != 1 {
		t.Fatalf("Expected 1 cell, got %d", len(cs))
	}
	first := cs[0].Key.Timestamp
	if cells.IsSentinel(first) {
		t.Fatalf("Expected an assigned timestamp, got sentinel %d", first)
	}

	// a null timestamp is assigned as well and always newer
	apply(t, tbl, cells.NewInsert("row", "cf", "cq", cells.TimestampNull, []byte("second")))
	cs, _ = tbl.Get("row")
	if string(cs[0].Value) != "second" {
		t.Errorf("Expected second value to win, got %q", cs[0].Value)
	}
	if cs[0].Key.Timestamp <= first {
		t.Errorf("Expected timestamp > %d, got %d", first, cs[0].Key.Timestamp)
	}

	// assigned timestamps are newer than explicit ones the table has seen
	future := cs[0].Key.Timestamp + 1_000_000_000_000
	apply(t, tbl, cells.NewInsert("row", "cf", "other", future, []byte("explicit")))
	apply(t, tbl, cells.NewInsert("row", "cf", "other", cells.TimestampAutoAssign, []byte("auto")))
	expectColumns(t, tbl, "row", map[string]string{"cf:cq": "second", "cf:other": "auto"})
}

func testStaleInsert(t *testing.T, tbl table.ITable) {
	apply(t, tbl, cells.NewInsert("row", "cf", "cq", 100, []byte("v100")))
	apply(t, tbl, cells.NewInsert("row", "cf", "cq", 50, []byte("v50")))
	expectColumns(t, tbl, "row", map[string]string{"cf:cq": "v100"})

	// same timestamp overwrites
	apply(t, tbl, cells.NewInsert("row", "cf", "cq", 100, []byte("again")))
	expectColumns(t, tbl, "row", map[string]string{"cf:cq": "again"})

	apply(t, tbl, cells.NewInsert("row", "cf", "cq", 101, []byte("v101")))
	expectColumns(t, tbl, "row", map[string]string{"cf:cq": "v101"})
}

func testDeleteKinds(t *testing.T, tbl table.ITable) {
	fill := func(row string) {
		apply(t, tbl,
			cells.NewInsert(row, "a", "1", 10, []byte("a1")),
			cells.NewInsert(row, "a", "2", 10, []byte("a2")),
			cells.NewInsert(row, "b", "1", 10, []byte("b1")),
		)
	}

	fill("cell")
	apply(t, tbl, cells.NewDeleteCell("cell", "a", "1", 20))
	expectColumns(t, tbl, "cell", map[string]string{"a:2": "a2", "b:1": "b1"})

	fill("family")
	apply(t, tbl, cells.NewDeleteColumnFamily("family", "a", 20))
	expectColumns(t, tbl, "family", map[string]string{"b:1": "b1"})

	fill("row")
	apply(t, tbl, cells.NewDeleteRow("row", 20))
	expectColumns(t, tbl, "row", map[string]string{})

	// sentinel timestamps delete everything
	fill("auto")
	apply(t, tbl, cells.NewDeleteRow("auto", cells.TimestampAutoAssign))
	expectColumns(t, tbl, "auto", map[string]string{})

	// deleting missing rows is a no-op
	apply(t, tbl, cells.NewDeleteRow("missing", 20), cells.NewDeleteCell("missing", "a", "1", 20))

	// a deleted row can be written again
	apply(t, tbl, cells.NewInsert("row", "a", "1", 30, []byte("back")))
	expectColumns(t, tbl, "row", map[string]string{"a:1": "back"})
}

func testDeleteRespectsTimestamp(t *testing.T, tbl table.ITable) {
	apply(t, tbl,
		cells.NewInsert("row", "cf", "old", 100, []byte("old")),
		cells.NewInsert("row", "cf", "new", 300, []byte("new")),
	)

	apply(t, tbl, cells.NewDeleteRow("row", 200))
	expectColumns(t, tbl, "row", map[string]string{"cf:new": "new"})

	apply(t, tbl, cells.NewDeleteCell("row", "cf", "new", 299))
	expectColumns(t, tbl, "row", map[string]string{"cf:new": "new"})

	apply(t, tbl, cells.NewDeleteCell("row", "cf", "new", 300))
	expectColumns(t, tbl, "row", map[string]string{})
}

func testScan(t *testing.T, tbl table.ITable) {
	for i := 0; i < 10; i++ {
		row := fmt.Sprintf("row-%02d", i)
		apply(t, tbl,
			cells.NewInsert(row, "cf", "a", 1, []byte(row+"-a")),
			cells.NewInsert(row, "cf", "b", 1, []byte(row+"-b")),
		)
	}

	collect := func(start, end string) []string {
		var out []string
		err := tbl.Scan(start, end, func(c cells.Cell) bool {
			out = append(out, c.Key.Row+"/"+c.Key.ColumnQualifier)
			return true
		})
		if err != nil {
			t.Fatalf("Unexpected error during Scan: %v", err)
		}
		return out
	}

	all := collect("", "")
	if len(all) != 20 {
		t.Fatalf("Expected 20 cells in full scan, got %d", len(all))
	}
	if all[0] != "row-00/a" || all[1] != "row-00/b" || all[19] != "row-09/b" {
		t.Errorf("Unexpected scan order: %v", all)
	}

	ranged := collect("row-03", "row-05")
	want := []string{"row-03/a", "row-03/b", "row-04/a", "row-04/b"}
	if len(ranged) != len(want) {
		t.Fatalf("Expected %v, got %v", want, ranged)
	}
	for i := range want {
		if ranged[i] != want[i] {
			t.Errorf("Scan position %d: expected %s, got %s", i, want[i], ranged[i])
		}
	}

	if got := collect("row-08", ""); len(got) != 4 {
		t.Errorf("Expected 4 cells for open end, got %v", got)
	}

	count := 0
	_ = tbl.Scan("", "", func(cells.Cell) bool {
		count++
		return count < 3
	})
	if count != 3 {
		t.Errorf("Expected scan to stop after 3 cells, got %d", count)
	}
}

func testInvalidInput(t *testing.T, tbl table.ITable) {
	w := cells.NewWriter(128, true)
	w.AddInsert([]byte("r1"), []byte("cf"), []byte("cq"), 1, []byte("v1"))
	w.AddInsert([]byte("r2"), []byte("cf"), []byte("cq"), 1, []byte("v2"))
	stream := w.Bytes()

	// without terminator the complete records still apply
	applied, err := tbl.Apply(stream[:len(stream)-1])
	if err == nil {
		t.Errorf("Expected error for stream without terminator")
	}
	var tableErr *table.Error
	if !errors.As(err, &tableErr) || tableErr.Code != table.RetCInvalidOperation {
		t.Errorf("Expected InvalidOperation error, got %v", err)
	}
	if applied != 2 {
		t.Errorf("Expected 2 applied cells, got %d", applied)
	}
	expectColumns(t, tbl, "r2", map[string]string{"cf:cq": "v2"})

	applied, err = tbl.ApplyCells([]cells.Cell{
		cells.NewInsert("r3", "cf", "cq", 1, []byte("ok")),
		cells.NewInsert("bad\x00row", "cf", "cq", 1, []byte("bad")),
	})
	if err == nil || applied != 1 {
		t.Errorf("Expected error after 1 applied cell, got %d, %v", applied, err)
	}
	expectColumns(t, tbl, "r3", map[string]string{"cf:cq": "ok"})
}

func testSaveLoad(t *testing.T, factory table.Factory) {
	tbl := factory("save")
	tbl2 := factory("load")

	numRows := 500
	for i := 0; i < numRows; i++ {
		row := fmt.Sprintf("save-load-row-%d", i)
		apply(t, tbl,
			cells.NewInsert(row, "cf", "value", int64(i+1), []byte(fmt.Sprintf("value-%d", i))),
			cells.NewInsert(row, "cf", "empty", int64(i+1), nil),
		)
	}

	var buf bytes.Buffer
	if err := tbl.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}

	// the saved stream is a regular, finalized cell stream
	r := cells.NewReader(buf.Bytes())
	for r.Next() {
	}
	if r.Err() != nil || r.Flag()&cells.FlagEndOfScan == 0 {
		t.Errorf("Expected a stream terminated with EOS, got flag %s, err %v", r.Flag(), r.Err())
	}

	// load replaces existing content
	apply(t, tbl2, cells.NewInsert("stale", "cf", "cq", 1, []byte("stale")))
	if err := tbl2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}
	expectColumns(t, tbl2, "stale", map[string]string{})

	for i := 0; i < numRows; i++ {
		row := fmt.Sprintf("save-load-row-%d", i)
		cs, _ := tbl2.Get(row)
		if len(cs) != 2 {
			t.Errorf("Row %s: expected 2 cells after Load, got %d", row, len(cs))
			continue
		}
		if cs[0].Key.Timestamp != int64(i+1) {
			t.Errorf("Row %s: expected timestamp %d, got %d", row, i+1, cs[0].Key.Timestamp)
		}
		expectColumns(t, tbl2, row, map[string]string{
			"cf:value": fmt.Sprintf("value-%d", i),
			"cf:empty": "",
		})
	}

	if info := tbl2.Info(); info.Rows != numRows || info.Cells != 2*numRows {
		t.Errorf("Expected %d rows and %d cells, got %+v", numRows, 2*numRows, info)
	}
}

func testInfo(t *testing.T, tbl table.ITable) {
	if info := tbl.Info(); info.Name != tbl.Name() || info.Rows != 0 || info.Cells != 0 {
		t.Errorf("Unexpected info for empty table: %+v", info)
	}

	apply(t, tbl,
		cells.NewInsert("r1", "cf", "a", 1, []byte("x")),
		cells.NewInsert("r1", "cf", "b", 1, []byte("y")),
		cells.NewInsert("r2", "cf", "a", 1, []byte("z")),
		cells.NewDeleteCell("r2", "cf", "a", 1),
	)

	info := tbl.Info()
	if info.Rows != 1 || info.Cells != 2 {
		t.Errorf("Expected 1 row with 2 cells, got %+v", info)
	}
	if info.Applied != 4 {
		t.Errorf("Expected 4 applied cells, got %d", info.Applied)
	}
	if info.SizeBytes <= 0 {
		t.Errorf("Expected positive size, got %d", info.SizeBytes)
	}
}

func testConcurrent(t *testing.T, tbl table.ITable) {
	numWorkers := 8
	perWorker := 500

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(worker int) {
			defer wg.Done()
			writer := cells.NewWriter(1024, false)
			for i := 0; i < perWorker; i++ {
				c := cells.NewInsert(fmt.Sprintf("row-%d-%d", worker, i), "cf", "cq", cells.TimestampAutoAssign, []byte("v"))
				if !writer.Add(c) {
					if _, err := tbl.Apply(writer.Bytes()); err != nil {
						t.Errorf("Unexpected error during Apply: %v", err)
						return
					}
					writer.Clear()
					writer.Add(c)
				}
				// hot row shared by all workers
				if i%10 == 0 {
					_, _ = tbl.ApplyCells([]cells.Cell{cells.NewInsert("hot", "cf", fmt.Sprintf("w%d", worker), cells.TimestampAutoAssign, []byte("v"))})
					_, _ = tbl.Get("hot")
				}
			}
			if !writer.IsEmpty() {
				if _, err := tbl.Apply(writer.Bytes()); err != nil {
					t.Errorf("Unexpected error during Apply: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	info := tbl.Info()
	if info.Rows != numWorkers*perWorker+1 {
		t.Errorf("Expected %d rows, got %d", numWorkers*perWorker+1, info.Rows)
	}
	if got := len(get(t, tbl, "hot")); got != numWorkers {
		t.Errorf("Expected %d cells in hot row, got %d", numWorkers, got)
	}
}
