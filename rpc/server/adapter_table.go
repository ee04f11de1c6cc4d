package server

import (
	"fmt"

	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/ValentinKolb/cellwire/rpc/common"
)

// scanBufferSize is the initial size of the buffer result streams are encoded into
const scanBufferSize = 16 * 1024

// NewTableServerAdapter creates the adapter for table, mutator and cell requests.
// If autoCreate is true, MutatorOpen and SetCells create unknown tables.
func NewTableServerAdapter(autoCreate bool) IRPCServerAdapter {
	return &tableServerAdapterImpl{autoCreate: autoCreate}
}

type tableServerAdapterImpl struct {
	autoCreate bool
}

func (adapter *tableServerAdapterImpl) Handle(req *common.Message, ns *Namespace) *common.Message {
	// Check for nil namespace
	if ns == nil {
		return common.NewErrorResponse("handler: namespace is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTTableCreate:
		return common.NewResponse(common.MsgTTableCreate, ns.CreateTable(req.Table))
	case common.MsgTTableDrop:
		return common.NewResponse(common.MsgTTableDrop, ns.DropTable(req.Table))
	case common.MsgTTableExists:
		return common.NewTableExistsResponse(ns.HasTable(req.Table), nil)
	case common.MsgTMutatorOpen:
		flags := common.MutatorFlag(req.Flags)
		handle, err := ns.OpenMutator(req.Table, flags, adapter.create(flags))
		return common.NewMutatorOpenResponse(handle, err)
	case common.MsgTMutatorSetCells:
		applied, err := ns.MutatorSetCells(req.Handle, req.Cells)
		return common.NewApplyResponse(common.MsgTMutatorSetCells, uint64(applied), err)
	case common.MsgTMutatorFlush:
		return common.NewResponse(common.MsgTMutatorFlush, ns.MutatorFlush(req.Handle))
	case common.MsgTMutatorClose:
		return common.NewResponse(common.MsgTMutatorClose, ns.CloseMutator(req.Handle))
	case common.MsgTSetCells:
		flags := common.MutatorFlag(req.Flags)
		applied, err := ns.ApplyCells(req.Table, req.Cells, flags, adapter.create(flags))
		return common.NewApplyResponse(common.MsgTSetCells, uint64(applied), err)
	case common.MsgTGetCells:
		return adapter.getCells(req, ns)
	case common.MsgTScanCells:
		return adapter.scanCells(req, ns)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC TableAdapter - Unsuported message type: %s", req.MsgType),
		)
	}
}

func (adapter *tableServerAdapterImpl) create(flags common.MutatorFlag) bool {
	return adapter.autoCreate || flags.Has(common.MutatorFlagIgnoreUnknownCFs)
}

// getCells returns the cells of one row as a stream. Ok is false if the row does not exist.
func (adapter *tableServerAdapterImpl) getCells(req *common.Message, ns *Namespace) *common.Message {
	t, err := ns.Table(req.Table)
	if err != nil {
		return common.NewCellsResponse(common.MsgTGetCells, nil, 0, false, err)
	}
	row, err := t.Get(req.Row)
	if err != nil {
		return common.NewCellsResponse(common.MsgTGetCells, nil, 0, false, err)
	}

	w := cells.NewWriter(scanBufferSize, true)
	for _, c := range row {
		w.Add(c)
	}
	w.Finalize(cells.FlagEndOfScan)
	return common.NewCellsResponse(common.MsgTGetCells, w.Buffer(), uint64(len(row)), len(row) > 0, nil)
}

// scanCells returns the cells of a row range as one stream
func (adapter *tableServerAdapterImpl) scanCells(req *common.Message, ns *Namespace) *common.Message {
	t, err := ns.Table(req.Table)
	if err != nil {
		return common.NewCellsResponse(common.MsgTScanCells, nil, 0, false, err)
	}

	w := cells.NewWriter(scanBufferSize, true)
	count := uint64(0)
	err = t.Scan(req.Row, req.EndRow, func(c cells.Cell) bool {
		w.Add(c)
		count++
		return true
	})
	if err != nil {
		return common.NewCellsResponse(common.MsgTScanCells, nil, 0, false, err)
	}
	w.Finalize(cells.FlagEndOfScan)
	return common.NewCellsResponse(common.MsgTScanCells, w.Buffer(), count, count > 0, nil)
}
