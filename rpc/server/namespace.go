package server

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/ValentinKolb/cellwire/lib/table"
	"github.com/ValentinKolb/cellwire/lib/table/commitlog"
	"github.com/ValentinKolb/cellwire/rpc/common"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	snapshotExt = ".cells"
	logExt      = ".log"
)

// mutatorHandles is shared by all namespaces so a handle is never reused within a process
var mutatorHandles atomic.Uint64

// Namespace is a set of tables plus the mutator sessions open on them.
// Every namespace id of the server config has its own Namespace.
type Namespace struct {
	id       uint64
	dir      string // empty if persistence is disabled
	factory  table.Factory
	metrics  *serverMetrics
	tables   *xsync.MapOf[string, *serverTable]
	mutators *xsync.MapOf[uint64, *mutatorSession]
}

// serverTable wraps a table with its commit log
type serverTable struct {
	table.ITable
	log *commitlog.Log // nil if persistence is disabled

	// applies hold the read lock, snapshots the write lock
	mu      sync.RWMutex
	dropped bool
}

// mutatorSession is the server side state of an open mutator
type mutatorSession struct {
	handle   uint64
	table    string
	flags    common.MutatorFlag
	lastUsed atomic.Int64 // unix nanos
	cells    atomic.Uint64
	flushes  atomic.Uint64
}

func newNamespace(id uint64, dataDir string, factory table.Factory, metrics *serverMetrics) *Namespace {
	ns := &Namespace{
		id:       id,
		factory:  factory,
		metrics:  metrics,
		tables:   xsync.NewMapOf[string, *serverTable](),
		mutators: xsync.NewMapOf[uint64, *mutatorSession](),
	}
	if dataDir != "" {
		ns.dir = filepath.Join(dataDir, strconv.FormatUint(id, 10))
	}
	return ns
}

// ID returns the namespace id
func (ns *Namespace) ID() uint64 {
	return ns.id
}

// --------------------------------------------------------------------------
// Tables
// --------------------------------------------------------------------------

// CreateTable creates an empty table. It fails with RetCTableExists if the name is taken.
func (ns *Namespace) CreateTable(name string) error {
	if err := validateTableName(name); err != nil {
		return err
	}

	if ns.HasTable(name) {
		return table.NewError(table.RetCTableExists, "table "+name+" already exists")
	}

	t, err := ns.newTable(name)
	if err != nil {
		return err
	}
	if _, loaded := ns.tables.LoadOrStore(name, t); loaded {
		// lost the race against another create
		if t.log != nil {
			_ = t.log.Close()
		}
		return table.NewError(table.RetCTableExists, "table "+name+" already exists")
	}
	Logger.Infof("created table %s in namespace %d", name, ns.id)
	return nil
}

// DropTable removes a table together with its snapshot and commit log
func (ns *Namespace) DropTable(name string) error {
	t, ok := ns.tables.LoadAndDelete(name)
	if !ok {
		return table.NewError(table.RetCTableNotFound, "table "+name+" does not exist")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.dropped = true

	if t.log != nil {
		if err := t.log.Remove(); err != nil {
			return err
		}
		if err := os.Remove(ns.snapshotPath(name)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to remove snapshot of table %s", name)
		}
	}
	Logger.Infof("dropped table %s in namespace %d", name, ns.id)
	return nil
}

// HasTable reports whether a table exists
func (ns *Namespace) HasTable(name string) bool {
	_, ok := ns.tables.Load(name)
	return ok
}

// Table returns a table by name
func (ns *Namespace) Table(name string) (table.ITable, error) {
	t, ok := ns.tables.Load(name)
	if !ok {
		return nil, table.NewError(table.RetCTableNotFound, "table "+name+" does not exist")
	}
	return t.ITable, nil
}

// TableNames returns the names of all tables in the namespace
func (ns *Namespace) TableNames() []string {
	names := make([]string, 0, ns.tables.Size())
	ns.tables.Range(func(name string, _ *serverTable) bool {
		names = append(names, name)
		return true
	})
	return names
}

// ApplyCells writes the stream to the commit log of the table and applies it.
// If create is true a missing table is created first.
func (ns *Namespace) ApplyCells(name string, stream []byte, flags common.MutatorFlag, create bool) (int, error) {
	t, ok := ns.tables.Load(name)
	if !ok {
		if !create {
			return 0, table.NewError(table.RetCTableNotFound, "table "+name+" does not exist")
		}
		if err := ns.CreateTable(name); err != nil && !isCode(err, table.RetCTableExists) {
			return 0, err
		}
		if t, ok = ns.tables.Load(name); !ok {
			return 0, table.NewError(table.RetCTableNotFound, "table "+name+" was dropped")
		}
	}
	applied, err := t.apply(stream, flags)
	ns.metrics.cellsApplied(ns.id, applied)
	ns.metrics.streamSize(len(stream))
	return applied, err
}

// --------------------------------------------------------------------------
// Mutators
// --------------------------------------------------------------------------

// OpenMutator opens a mutator session on a table and returns its handle.
// A missing table is created if create is true.
func (ns *Namespace) OpenMutator(name string, flags common.MutatorFlag, create bool) (uint64, error) {
	if !ns.HasTable(name) {
		if !create {
			return 0, table.NewError(table.RetCTableNotFound, "table "+name+" does not exist")
		}
		if err := ns.CreateTable(name); err != nil && !isCode(err, table.RetCTableExists) {
			return 0, err
		}
	}

	session := &mutatorSession{
		handle: mutatorHandles.Add(1),
		table:  name,
		flags:  flags,
	}
	session.touch()
	ns.mutators.Store(session.handle, session)
	Logger.Debugf("opened mutator %d on table %s (flags %d)", session.handle, name, flags)
	return session.handle, nil
}

// MutatorSetCells applies a stream through an open mutator. A stream whose
// terminator carries FlagFlush is flushed after it was applied.
func (ns *Namespace) MutatorSetCells(handle uint64, stream []byte) (int, error) {
	session, err := ns.mutator(handle)
	if err != nil {
		return 0, err
	}

	applied, err := ns.ApplyCells(session.table, stream, session.flags, false)
	session.cells.Add(uint64(applied))
	if err != nil {
		return applied, err
	}

	if len(stream) > 0 && cells.Flag(stream[len(stream)-1])&cells.FlagFlush != 0 {
		return applied, ns.flush(session)
	}
	return applied, nil
}

// MutatorFlush syncs the commit log of the mutator's table
func (ns *Namespace) MutatorFlush(handle uint64) error {
	session, err := ns.mutator(handle)
	if err != nil {
		return err
	}
	return ns.flush(session)
}

// CloseMutator closes a mutator session
func (ns *Namespace) CloseMutator(handle uint64) error {
	session, ok := ns.mutators.LoadAndDelete(handle)
	if !ok {
		return table.NewError(table.RetCMutatorNotFound, "mutator "+strconv.FormatUint(handle, 10)+" is not open")
	}
	Logger.Debugf("closed mutator %d on table %s (%d cells, %d flushes)",
		handle, session.table, session.cells.Load(), session.flushes.Load())
	return nil
}

// OpenMutators returns the number of open mutator sessions
func (ns *Namespace) OpenMutators() int {
	return ns.mutators.Size()
}

// closeIdleMutators closes all sessions that were not used for longer than timeout
func (ns *Namespace) closeIdleMutators(timeout time.Duration) int {
	deadline := time.Now().Add(-timeout).UnixNano()
	closed := 0
	ns.mutators.Range(func(handle uint64, session *mutatorSession) bool {
		if session.lastUsed.Load() < deadline {
			ns.mutators.Delete(handle)
			Logger.Warningf("closed idle mutator %d on table %s", handle, session.table)
			closed++
		}
		return true
	})
	return closed
}

func (ns *Namespace) mutator(handle uint64) (*mutatorSession, error) {
	session, ok := ns.mutators.Load(handle)
	if !ok {
		return nil, table.NewError(table.RetCMutatorNotFound, "mutator "+strconv.FormatUint(handle, 10)+" is not open")
	}
	session.touch()
	return session, nil
}

func (ns *Namespace) flush(session *mutatorSession) error {
	session.flushes.Add(1)
	ns.metrics.flush()

	t, ok := ns.tables.Load(session.table)
	if !ok {
		return table.NewError(table.RetCTableNotFound, "table "+session.table+" does not exist")
	}
	if t.log == nil || session.flags.Has(common.MutatorFlagNoLog) {
		return nil
	}
	return t.log.Sync()
}

func (s *mutatorSession) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

// load restores all tables from the namespace directory: the snapshot of
// every table is loaded and its commit log is replayed on top
func (ns *Namespace) load() error {
	if ns.dir == "" {
		return nil
	}
	if err := os.MkdirAll(ns.dir, 0750); err != nil {
		return errors.Wrapf(err, "failed to create directory of namespace %d", ns.id)
	}

	entries, err := os.ReadDir(ns.dir)
	if err != nil {
		return errors.Wrapf(err, "failed to read directory of namespace %d", ns.id)
	}

	// a table exists if it has a snapshot or a log
	names := make(map[string]struct{})
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case entry.IsDir():
		case strings.HasSuffix(name, snapshotExt):
			names[strings.TrimSuffix(name, snapshotExt)] = struct{}{}
		case strings.HasSuffix(name, logExt):
			names[strings.TrimSuffix(name, logExt)] = struct{}{}
		}
	}

	for name := range names {
		t, err := ns.newTable(name)
		if err != nil {
			return err
		}

		if f, err := os.Open(ns.snapshotPath(name)); err == nil {
			err = t.Load(f)
			_ = f.Close()
			if err != nil {
				return errors.Wrapf(err, "failed to load snapshot of table %s", name)
			}
		} else if !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to open snapshot of table %s", name)
		}

		replayed, err := t.log.Replay(func(stream []byte) error {
			_, err := t.Apply(stream)
			return err
		})
		if err != nil {
			return err
		}

		ns.tables.Store(name, t)
		info := t.Info()
		Logger.Infof("restored table %s in namespace %d (%d rows, %d cells, %d log entries)",
			name, ns.id, info.Rows, info.Cells, replayed)
	}
	return nil
}

// save writes a snapshot of every table and truncates the commit logs
func (ns *Namespace) save() error {
	if ns.dir == "" {
		return nil
	}

	var firstErr error
	ns.tables.Range(func(name string, t *serverTable) bool {
		if err := ns.saveTable(name, t); err != nil {
			Logger.Errorf("failed to save table %s in namespace %d: %v", name, ns.id, err)
			if firstErr == nil {
				firstErr = err
			}
		}
		return true
	})
	return firstErr
}

func (ns *Namespace) saveTable(name string, t *serverTable) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dropped {
		return nil
	}

	// write to a temporary file first so a crash never leaves a partial snapshot
	path := ns.snapshotPath(name)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrapf(err, "failed to create snapshot of table %s", name)
	}
	if err := t.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to sync snapshot of table %s", name)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close snapshot of table %s", name)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "failed to rename snapshot of table %s", name)
	}
	return t.log.Truncate()
}

// close closes all commit logs
func (ns *Namespace) close() {
	ns.tables.Range(func(name string, t *serverTable) bool {
		if t.log != nil {
			if err := t.log.Close(); err != nil {
				Logger.Warningf("failed to close commit log of table %s: %v", name, err)
			}
		}
		return true
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (ns *Namespace) newTable(name string) (*serverTable, error) {
	t := &serverTable{ITable: ns.factory(name)}
	if ns.dir != "" {
		log, err := commitlog.Open(filepath.Join(ns.dir, name+logExt))
		if err != nil {
			return nil, err
		}
		t.log = log
	}
	return t, nil
}

func (ns *Namespace) snapshotPath(name string) string {
	return filepath.Join(ns.dir, name+snapshotExt)
}

// apply validates, logs and applies a stream
func (t *serverTable) apply(stream []byte, flags common.MutatorFlag) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.dropped {
		return 0, table.NewError(table.RetCTableNotFound, "table "+t.Name()+" was dropped")
	}
	// a stream that fails to decode must never reach the log, replay would fail on it
	if _, err := cells.Validate(stream); err != nil {
		return 0, table.NewError(table.RetCInvalidOperation, err.Error())
	}

	if t.log != nil && !flags.Has(common.MutatorFlagNoLog) {
		if err := t.log.Append(stream, !flags.Has(common.MutatorFlagNoLogSync)); err != nil {
			return 0, table.NewError(table.RetCInternalError, err.Error())
		}
	}
	return t.Apply(stream)
}

// validateTableName rejects names that can not be used as file names
func validateTableName(name string) error {
	switch {
	case name == "":
		return table.NewError(table.RetCInvalidOperation, "table name is empty")
	case name == "." || name == "..":
		return table.NewError(table.RetCInvalidOperation, "invalid table name "+name)
	case strings.ContainsAny(name, "/\\\x00"):
		return table.NewError(table.RetCInvalidOperation, "table name contains a path separator or NUL")
	case strings.HasSuffix(name, ".tmp"):
		return table.NewError(table.RetCInvalidOperation, "table name must not end in .tmp")
	}
	return nil
}

// isCode reports whether err is a table error with the given code
func isCode(err error, code table.RetCode) bool {
	var tErr *table.Error
	return errors.As(err, &tErr) && tErr.Code == code
}
