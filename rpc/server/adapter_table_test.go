package server

import (
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/ValentinKolb/cellwire/lib/table/memtable"
	"github.com/ValentinKolb/cellwire/rpc/common"
)

func newTestNamespace(t *testing.T, dataDir string) *Namespace {
	t.Helper()
	ns := newNamespace(1, dataDir, memtable.NewMemTable, newServerMetrics())
	if err := ns.load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return ns
}

func stream(cs ...cells.Cell) []byte {
	w := cells.NewWriter(0, true)
	for _, c := range cs {
		w.Add(c)
	}
	return w.Bytes()
}

func mustSucceed(t *testing.T, resp *common.Message) *common.Message {
	t.Helper()
	if resp.Err != "" {
		t.Fatalf("unexpected error response (%s): %s", resp.MsgType, resp.Err)
	}
	return resp
}

func TestTableLifecycle(t *testing.T) {
	ns := newTestNamespace(t, "")
	adapter := NewTableServerAdapter(false)

	mustSucceed(t, adapter.Handle(common.NewTableCreateRequest("users"), ns))

	resp := adapter.Handle(common.NewTableCreateRequest("users"), ns)
	if !strings.Contains(resp.Err, "TableExists") {
		t.Errorf("expected TableExists error, got %q", resp.Err)
	}

	resp = mustSucceed(t, adapter.Handle(common.NewTableExistsRequest("users"), ns))
	if !resp.Ok {
		t.Errorf("expected table to exist")
	}

	mustSucceed(t, adapter.Handle(common.NewTableDropRequest("users"), ns))

	resp = mustSucceed(t, adapter.Handle(common.NewTableExistsRequest("users"), ns))
	if resp.Ok {
		t.Errorf("expected table to be dropped")
	}

	resp = adapter.Handle(common.NewTableDropRequest("users"), ns)
	if !strings.Contains(resp.Err, "TableNotFound") {
		t.Errorf("expected TableNotFound error, got %q", resp.Err)
	}

	for _, name := range []string{"", ".", "..", "a/b", "a\x00b"} {
		resp = adapter.Handle(common.NewTableCreateRequest(name), ns)
		if resp.Err == "" {
			t.Errorf("expected error for table name %q", name)
		}
	}
}

func TestSetAndReadCells(t *testing.T) {
	ns := newTestNamespace(t, "")
	adapter := NewTableServerAdapter(false)

	data := stream(
		cells.NewInsert("r1", "cf", "a", 10, []byte("v1")),
		cells.NewInsert("r1", "cf", "b", 10, []byte("v2")),
		cells.NewInsert("r2", "cf", "a", 10, []byte("v3")),
		cells.NewInsert("r3", "cf", "a", 10, []byte("v4")),
	)

	// unknown table without auto create
	resp := adapter.Handle(common.NewSetCellsRequest("t", data, 0), ns)
	if !strings.Contains(resp.Err, "TableNotFound") {
		t.Fatalf("expected TableNotFound, got %q", resp.Err)
	}

	// IgnoreUnknownCFs creates the table
	resp = mustSucceed(t, adapter.Handle(common.NewSetCellsRequest("t", data, uint32(common.MutatorFlagIgnoreUnknownCFs)), ns))
	if resp.Count != 4 {
		t.Errorf("expected 4 applied cells, got %d", resp.Count)
	}

	resp = mustSucceed(t, adapter.Handle(common.NewGetCellsRequest("t", "r1"), ns))
	if !resp.Ok || resp.Count != 2 {
		t.Fatalf("expected 2 cells for r1, got ok=%v count=%d", resp.Ok, resp.Count)
	}
	r := cells.NewReader(resp.Cells)
	var got []string
	for r.Next() {
		got = append(got, r.Cell().Key.ColumnQualifier+"="+string(r.Cell().Value))
	}
	if r.Err() != nil || r.Flag()&cells.FlagEndOfScan == 0 {
		t.Errorf("expected clean EOS terminated stream, err=%v flag=%s", r.Err(), r.Flag())
	}
	if strings.Join(got, ",") != "a=v1,b=v2" {
		t.Errorf("unexpected cells %v", got)
	}

	resp = mustSucceed(t, adapter.Handle(common.NewGetCellsRequest("t", "missing"), ns))
	if resp.Ok || resp.Count != 0 {
		t.Errorf("expected no cells for missing row")
	}

	resp = mustSucceed(t, adapter.Handle(common.NewScanCellsRequest("t", "r2", ""), ns))
	if resp.Count != 2 {
		t.Errorf("expected 2 cells in [r2, ...), got %d", resp.Count)
	}
	resp = mustSucceed(t, adapter.Handle(common.NewScanCellsRequest("t", "r1", "r3"), ns))
	if resp.Count != 3 {
		t.Errorf("expected 3 cells in [r1, r3), got %d", resp.Count)
	}

	// malformed stream
	resp = adapter.Handle(common.NewSetCellsRequest("t", []byte{0x48, 'r'}, 0), ns)
	if !strings.Contains(resp.Err, "InvalidOperation") {
		t.Errorf("expected InvalidOperation for malformed stream, got %q", resp.Err)
	}
}

func TestMutatorSession(t *testing.T) {
	ns := newTestNamespace(t, "")
	adapter := NewTableServerAdapter(true)

	resp := mustSucceed(t, adapter.Handle(common.NewMutatorOpenRequest("t", 0), ns))
	handle := resp.Handle
	if handle == 0 {
		t.Fatalf("expected a mutator handle")
	}
	if ns.OpenMutators() != 1 {
		t.Errorf("expected 1 open mutator, got %d", ns.OpenMutators())
	}

	resp = mustSucceed(t, adapter.Handle(common.NewMutatorSetCellsRequest(handle, stream(
		cells.NewInsert("r", "cf", "q", cells.TimestampAutoAssign, []byte("v")),
	)), ns))
	if resp.Count != 1 {
		t.Errorf("expected 1 applied cell, got %d", resp.Count)
	}

	// a batch with a FLUSH terminator counts as a flush
	w := cells.NewWriter(0, true)
	w.Add(cells.NewDeleteRow("r", cells.TimestampAutoAssign))
	w.Finalize(cells.FlagFlush)
	mustSucceed(t, adapter.Handle(common.NewMutatorSetCellsRequest(handle, w.Bytes()), ns))
	mustSucceed(t, adapter.Handle(common.NewMutatorFlushRequest(handle), ns))

	session, _ := ns.mutators.Load(handle)
	if session.flushes.Load() != 2 || session.cells.Load() != 2 {
		t.Errorf("expected 2 flushes and 2 cells, got %d and %d", session.flushes.Load(), session.cells.Load())
	}

	tbl, _ := ns.Table("t")
	if row, _ := tbl.Get("r"); len(row) != 0 {
		t.Errorf("expected row to be deleted, got %v", row)
	}

	mustSucceed(t, adapter.Handle(common.NewMutatorCloseRequest(handle), ns))

	resp = adapter.Handle(common.NewMutatorSetCellsRequest(handle, stream()), ns)
	if !strings.Contains(resp.Err, "MutatorNotFound") {
		t.Errorf("expected MutatorNotFound after close, got %q", resp.Err)
	}

	// handles are never reused
	resp = mustSucceed(t, adapter.Handle(common.NewMutatorOpenRequest("t", 0), ns))
	if resp.Handle == handle {
		t.Errorf("handle %d was reused", handle)
	}
}

func TestMutatorOnDroppedTable(t *testing.T) {
	ns := newTestNamespace(t, "")
	adapter := NewTableServerAdapter(false)

	mustSucceed(t, adapter.Handle(common.NewTableCreateRequest("t"), ns))
	handle := mustSucceed(t, adapter.Handle(common.NewMutatorOpenRequest("t", 0), ns)).Handle
	mustSucceed(t, adapter.Handle(common.NewTableDropRequest("t"), ns))

	resp := adapter.Handle(common.NewMutatorSetCellsRequest(handle, stream(cells.NewInsert("r", "cf", "q", 1, nil))), ns)
	if !strings.Contains(resp.Err, "TableNotFound") {
		t.Errorf("expected TableNotFound, got %q", resp.Err)
	}
}

func TestCloseIdleMutators(t *testing.T) {
	ns := newTestNamespace(t, "")
	handle, err := ns.OpenMutator("t", 0, true)
	if err != nil {
		t.Fatalf("OpenMutator failed: %v", err)
	}

	if closed := ns.closeIdleMutators(time.Hour); closed != 0 {
		t.Errorf("expected no idle mutators, closed %d", closed)
	}

	session, _ := ns.mutators.Load(handle)
	session.lastUsed.Store(time.Now().Add(-2 * time.Hour).UnixNano())
	if closed := ns.closeIdleMutators(time.Hour); closed != 1 {
		t.Errorf("expected 1 idle mutator, closed %d", closed)
	}
	if err := ns.MutatorFlush(handle); err == nil {
		t.Errorf("expected error for closed mutator")
	}
}

func TestUnsupportedMessage(t *testing.T) {
	ns := newTestNamespace(t, "")
	resp := NewTableServerAdapter(false).Handle(&common.Message{MsgType: common.MsgTSuccess}, ns)
	if resp.MsgType != common.MsgTError {
		t.Errorf("expected error response, got %s", resp.MsgType)
	}
	if resp := NewTableServerAdapter(false).Handle(&common.Message{}, nil); resp.MsgType != common.MsgTError {
		t.Errorf("expected error response for nil namespace")
	}
}
