package client

import (
	"sync"
	"time"

	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/ValentinKolb/cellwire/lib/util"
	"github.com/ValentinKolb/cellwire/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	gometrics "github.com/rcrowley/go-metrics"
)

// DefaultMutatorBufferSize is the buffer size of a mutator if none is configured
const DefaultMutatorBufferSize = 1 << 20

var mutatorLogger = logger.GetLogger("mutator")

// ErrMutatorClosed is returned by operations on a closed mutator
var ErrMutatorClosed = errors.New("mutator is closed")

type rpcMutator struct {
	rpcClientAdapter
	table  string
	handle uint64
	opts   MutatorOptions

	mu     sync.Mutex
	writer *cells.Writer
	count  int // cells in the current batch
	closed bool

	stop chan struct{}
	wg   sync.WaitGroup

	// statistics
	opened     time.Time
	registry   gometrics.Registry
	cells      gometrics.Counter
	batches    gometrics.Counter
	flushes    gometrics.Counter
	bytes      gometrics.Counter
	batchCells gometrics.Histogram
	batchBytes *util.SizeHistogram
}

// newMutator opens the server side session and creates the client side buffer
func newMutator(adapter rpcClientAdapter, table string, opts MutatorOptions) (*rpcMutator, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultMutatorBufferSize
	}

	resp, err := adapter.invoke(common.NewMutatorOpenRequest(table, uint32(opts.Flags)))
	if err != nil {
		return nil, err
	}

	registry := gometrics.NewRegistry()
	m := &rpcMutator{
		rpcClientAdapter: adapter,
		table:            table,
		handle:           resp.Handle,
		opts:             opts,
		writer:           cells.NewWriter(opts.BufferSize, false),
		stop:             make(chan struct{}),
		opened:           time.Now(),
		registry:         registry,
		cells:            gometrics.GetOrRegisterCounter("cells", registry),
		batches:          gometrics.GetOrRegisterCounter("batches", registry),
		flushes:          gometrics.GetOrRegisterCounter("flushes", registry),
		bytes:            gometrics.GetOrRegisterCounter("bytes", registry),
		batchCells:       gometrics.GetOrRegisterHistogram("batch_cells", registry, gometrics.NewUniformSample(1028)),
		batchBytes:       util.NewSizeHistogram(),
	}

	if opts.FlushInterval > 0 {
		m.wg.Add(1)
		go m.flushPeriodically()
	}

	mutatorLogger.Debugf("opened mutator %d on table %s", m.handle, table)
	return m, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see interface.go)
// --------------------------------------------------------------------------

func (m *rpcMutator) Set(cell cells.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(cell)
}

func (m *rpcMutator) SetCells(cs []cells.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cell := range cs {
		if err := m.addLocked(cell); err != nil {
			return err
		}
	}
	return nil
}

func (m *rpcMutator) SetSerialized(stream []byte) error {
	// count the records up front so a malformed stream is rejected before it is buffered
	n, err := cells.Validate(stream)
	if err != nil {
		return errors.Wrap(err, "invalid cell stream")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrMutatorClosed
	}
	if !m.writer.AppendFinalized(stream) {
		if err := m.sendLocked(0); err != nil {
			return err
		}
		// an empty writer always accepts
		m.writer.AppendFinalized(stream)
	}
	m.count += n
	m.cells.Inc(int64(n))
	return nil
}

func (m *rpcMutator) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrMutatorClosed
	}
	return m.flushLocked()
}

func (m *rpcMutator) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	flushErr := m.flushLocked()
	m.closed = true
	m.mu.Unlock()

	close(m.stop)
	m.wg.Wait()

	_, closeErr := m.invoke(common.NewMutatorCloseRequest(m.handle))
	mutatorLogger.Debugf("closed mutator %d on table %s (%d cells in %d batches)",
		m.handle, m.table, m.cells.Count(), m.batches.Count())
	m.registry.UnregisterAll()

	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (m *rpcMutator) Stats() MutatorStats {
	stats := MutatorStats{
		Cells:       m.cells.Count(),
		Batches:     m.batches.Count(),
		Flushes:     m.flushes.Count(),
		Bytes:       m.bytes.Count(),
		MeanCells:   m.batchCells.Mean(),
		MedianBytes: m.batchBytes.MedianEstimate(),
		P99Bytes:    m.batchBytes.GetPercentileEstimate(99),
	}
	if elapsed := time.Since(m.opened).Seconds(); elapsed > 0 {
		stats.CellRate = float64(stats.Cells) / elapsed
	}
	return stats
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// addLocked buffers a cell and sends the current batch if the cell does not fit
func (m *rpcMutator) addLocked(cell cells.Cell) error {
	if m.closed {
		return ErrMutatorClosed
	}
	if err := cells.ValidateCell(cell); err != nil {
		return errors.Wrap(err, "invalid cell")
	}

	if !m.writer.Add(cell) {
		if err := m.sendLocked(0); err != nil {
			return err
		}
		// an empty writer always accepts one cell
		m.writer.Add(cell)
	}
	m.count++
	m.cells.Inc(1)
	return nil
}

// flushLocked sends the buffered cells with a FLUSH terminator, or a plain
// flush request if nothing is buffered
func (m *rpcMutator) flushLocked() error {
	m.flushes.Inc(1)
	if !m.writer.IsEmpty() {
		return m.sendLocked(cells.FlagFlush)
	}
	_, err := m.invoke(common.NewMutatorFlushRequest(m.handle))
	return err
}

// sendLocked finalizes the buffer with extra and sends it as one batch.
// The buffer is cleared even if sending fails, the error reports the lost cells.
func (m *rpcMutator) sendLocked(extra cells.Flag) error {
	m.writer.Finalize(extra)
	stream := m.writer.Buffer()
	count := m.count

	resp, err := m.invoke(common.NewMutatorSetCellsRequest(m.handle, stream))

	m.batches.Inc(1)
	m.bytes.Inc(int64(len(stream)))
	m.batchCells.Update(int64(count))
	m.batchBytes.AddSample(len(stream))
	m.writer.Clear()
	m.count = 0

	if err != nil {
		applied := uint64(0)
		if resp != nil {
			applied = resp.Count
		}
		mutatorLogger.Warningf("mutator %d: batch of %d cells failed after %d applied: %v", m.handle, count, applied, err)
		return errors.Wrapf(err, "batch of %d cells failed after %d applied", count, applied)
	}
	return nil
}

// flushPeriodically flushes the mutator every FlushInterval until it is closed
func (m *rpcMutator) flushPeriodically() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			if !m.closed && !m.writer.IsEmpty() {
				if err := m.flushLocked(); err != nil {
					mutatorLogger.Errorf("periodic flush of mutator %d failed: %v", m.handle, err)
				}
			}
			m.mu.Unlock()
		}
	}
}
