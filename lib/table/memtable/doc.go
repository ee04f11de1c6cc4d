// Package memtable provides an in-memory implementation of table.ITable.
//
// Rows are stored in a concurrent, ordered skip list (github.com/zhangyunhao116/skipmap)
// keyed by row key, so scans return rows in key order without sorting. The
// cells of one row live in a small map guarded by a per-row mutex; a row that
// loses its last cell is removed from the skip list.
//
// Timestamps: inserts that carry TimestampAutoAssign or TimestampNull get a
// timestamp from a per-table clock. The clock never goes backwards and is raised
// by every explicit timestamp the table sees, so an assigned timestamp is always
// newer than every cell already stored.
//
// Save writes a single finalized cell stream (terminated with FlagEndOfScan),
// Load reads it back and atomically replaces the row index.
//
// Example usage:
//
//	t := memtable.NewMemTable("users")
//	w := cells.NewWriter(1024, true)
//	w.AddInsert([]byte("alice"), []byte("info"), []byte("mail"), cells.TimestampAutoAssign, []byte("a@example.org"))
//	applied, err := t.Apply(w.Bytes())
package memtable
