package memtable

import (
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/ValentinKolb/cellwire/lib/table"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/zhangyunhao116/skipmap"
)

var Logger = logger.GetLogger("table")

// rowIndex is the ordered map from row key to row
type rowIndex = skipmap.FuncMap[string, *row]

// column identifies a cell within a row
type column struct {
	family    string
	qualifier string
}

// version is the stored state of one cell
type version struct {
	timestamp int64
	value     []byte
}

// row holds all cells of one row key.
// A row removed from the index is marked dead, writers that still hold a
// pointer to it have to look it up again.
type row struct {
	mu      sync.Mutex
	columns map[column]version
	dead    bool
}

type memTable struct {
	name    string
	rows    atomic.Pointer[rowIndex]
	clock   atomic.Int64  // last assigned or observed timestamp
	applied atomic.Uint64 // number of applied cells
}

// NewMemTable creates a new, empty in-memory table.
// Rows are kept in a concurrent skip list ordered by row key, cells of one
// row are guarded by a per-row mutex.
func NewMemTable(name string) table.ITable {
	t := &memTable{name: name}
	t.rows.Store(newRowIndex())
	return t
}

func newRowIndex() *rowIndex {
	return skipmap.NewFunc[string, *row](func(a, b string) bool {
		return a < b
	})
}

// --------------------------------------------------------------------------
// Interface Methods (docu see table/interface.go)
// --------------------------------------------------------------------------

func (t *memTable) Name() string {
	return t.name
}

func (t *memTable) Apply(stream []byte) (int, error) {
	applied := 0
	r := cells.NewReader(stream)
	for r.Next() {
		if err := t.apply(r.Cell()); err != nil {
			return applied, err
		}
		applied++
	}
	if err := r.Err(); err != nil {
		return applied, table.NewError(table.RetCInvalidOperation, err.Error())
	}
	return applied, nil
}

func (t *memTable) ApplyCells(cs []cells.Cell) (int, error) {
	for i, c := range cs {
		if err := cells.ValidateKey(c.Key.Row, c.Key.ColumnFamily, c.Key.ColumnQualifier); err != nil {
			return i, table.NewError(table.RetCInvalidOperation, err.Error())
		}
		if err := t.apply(c); err != nil {
			return i, err
		}
	}
	return len(cs), nil
}

func (t *memTable) Get(rowKey string) ([]cells.Cell, error) {
	r, ok := t.rows.Load().Load(rowKey)
	if !ok {
		return nil, nil
	}
	return r.snapshot(rowKey), nil
}

func (t *memTable) Scan(startRow, endRow string, fn func(cell cells.Cell) bool) error {
	t.rows.Load().Range(func(key string, r *row) bool {
		if key < startRow {
			return true
		}
		if endRow != "" && key >= endRow {
			return false
		}
		for _, c := range r.snapshot(key) {
			if !fn(c) {
				return false
			}
		}
		return true
	})
	return nil
}

func (t *memTable) Save(w io.Writer) error {
	writer := cells.NewWriter(64*1024, true)
	var addErr error
	_ = t.Scan("", "", func(c cells.Cell) bool {
		if !writer.Add(c) {
			addErr = errors.Errorf("failed to encode cell %s", c)
			return false
		}
		return true
	})
	if addErr != nil {
		return addErr
	}
	writer.Finalize(cells.FlagEndOfScan)

	_, err := w.Write(writer.Buffer())
	return errors.Wrapf(err, "failed to save table %s", t.name)
}

func (t *memTable) Load(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "failed to read table %s", t.name)
	}
	cs, err := cells.Decode(data)
	if err != nil {
		return table.NewError(table.RetCInvalidOperation, err.Error())
	}

	// build the new index next to the old one and swap it in
	fresh := &memTable{name: t.name}
	fresh.rows.Store(newRowIndex())
	fresh.clock.Store(t.clock.Load())
	for _, c := range cs {
		if err := fresh.apply(c); err != nil {
			return err
		}
	}

	t.rows.Store(fresh.rows.Load())
	t.observe(fresh.clock.Load())
	Logger.Debugf("loaded %d cells into table %s", len(cs), t.name)
	return nil
}

func (t *memTable) Info() table.Info {
	info := table.Info{
		Name:    t.name,
		Applied: t.applied.Load(),
	}
	t.rows.Load().Range(func(key string, r *row) bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		info.Rows++
		for col, v := range r.columns {
			info.Cells++
			info.SizeBytes += len(key) + len(col.family) + len(col.qualifier) + len(v.value) + 8
		}
		return true
	})
	return info
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// apply applies a single decoded cell
func (t *memTable) apply(c cells.Cell) error {
	k := c.Key
	switch k.Flag {
	case cells.KeyFlagInsert:
		t.insert(k, c.Value)
	case cells.KeyFlagDeleteRow:
		t.delete(k.Row, k.Timestamp, func(column) bool { return true })
	case cells.KeyFlagDeleteColumnFamily:
		t.delete(k.Row, k.Timestamp, func(col column) bool {
			return col.family == k.ColumnFamily
		})
	case cells.KeyFlagDeleteCell:
		t.delete(k.Row, k.Timestamp, func(col column) bool {
			return col.family == k.ColumnFamily && col.qualifier == k.ColumnQualifier
		})
	default:
		return table.NewError(table.RetCInvalidOperation, "unknown key flag "+k.Flag.String())
	}
	t.applied.Add(1)
	return nil
}

// insert stores the value unless a newer version exists
func (t *memTable) insert(k cells.Key, value []byte) {
	ts := k.Timestamp
	if cells.IsSentinel(ts) {
		ts = t.nextTimestamp()
	} else {
		t.observe(ts)
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	col := column{family: k.ColumnFamily, qualifier: k.ColumnQualifier}

	for {
		rows := t.rows.Load()
		r, ok := rows.Load(k.Row)
		if !ok {
			r, _ = rows.LoadOrStore(k.Row, &row{columns: make(map[column]version)})
		}

		r.mu.Lock()
		if r.dead {
			r.mu.Unlock()
			continue
		}
		if old, exists := r.columns[col]; !exists || old.timestamp <= ts {
			r.columns[col] = version{timestamp: ts, value: stored}
		} else {
			Logger.Debugf("ignoring stale insert for %s %s:%s (%d < %d)", k.Row, col.family, col.qualifier, ts, old.timestamp)
		}
		r.mu.Unlock()
		return
	}
}

// delete removes all matching cells of a row with a timestamp <= ts.
// A sentinel timestamp removes every matching cell.
func (t *memTable) delete(rowKey string, ts int64, match func(column) bool) {
	rows := t.rows.Load()
	r, ok := rows.Load(rowKey)
	if !ok {
		return
	}

	all := cells.IsSentinel(ts)
	if !all {
		t.observe(ts)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dead {
		return
	}
	for col, v := range r.columns {
		if match(col) && (all || v.timestamp <= ts) {
			delete(r.columns, col)
		}
	}
	if len(r.columns) == 0 {
		r.dead = true
		rows.Delete(rowKey)
	}
}

// nextTimestamp returns a timestamp that is larger than every timestamp
// assigned or observed before and not smaller than the wall clock
func (t *memTable) nextTimestamp() int64 {
	for {
		last := t.clock.Load()
		next := time.Now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if t.clock.CompareAndSwap(last, next) {
			return next
		}
	}
}

// observe raises the clock to ts
func (t *memTable) observe(ts int64) {
	for {
		last := t.clock.Load()
		if ts <= last || t.clock.CompareAndSwap(last, ts) {
			return
		}
	}
}

// snapshot returns copies of the cells of a row ordered by family and qualifier
func (r *row) snapshot(rowKey string) []cells.Cell {
	r.mu.Lock()
	out := make([]cells.Cell, 0, len(r.columns))
	for col, v := range r.columns {
		value := make([]byte, len(v.value))
		copy(value, v.value)
		out = append(out, cells.NewInsert(rowKey, col.family, col.qualifier, v.timestamp, value))
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.ColumnFamily != out[j].Key.ColumnFamily {
			return out[i].Key.ColumnFamily < out[j].Key.ColumnFamily
		}
		return out[i].Key.ColumnQualifier < out[j].Key.ColumnQualifier
	})
	return out
}
