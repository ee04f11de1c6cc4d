package client

import (
	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/ValentinKolb/cellwire/rpc/common"
	"github.com/ValentinKolb/cellwire/rpc/serializer"
	"github.com/ValentinKolb/cellwire/rpc/transport"
	"github.com/pkg/errors"
)

// NewRPCTableClient creates a new client for the tables of a namespace
// The function takes a namespace, a config, a transport and a serializer as parameters
// It returns an ITableClient and an error
func NewRPCTableClient(
	namespace uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (ITableClient, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC table client
	c := rpcTableClient{
		rpcClientAdapter{
			namespace:  namespace,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	return &c, nil
}

type rpcTableClient struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see interface.go)
// --------------------------------------------------------------------------

func (c *rpcTableClient) CreateTable(name string) error {
	_, err := c.invoke(common.NewTableCreateRequest(name))
	return err
}

func (c *rpcTableClient) DropTable(name string) error {
	_, err := c.invoke(common.NewTableDropRequest(name))
	return err
}

func (c *rpcTableClient) TableExists(name string) (bool, error) {
	resp, err := c.invoke(common.NewTableExistsRequest(name))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (c *rpcTableClient) SetCells(table string, cs []cells.Cell, flags common.MutatorFlag) (int, error) {
	w := cells.NewWriter(DefaultMutatorBufferSize, true)
	for i, cell := range cs {
		if err := cells.ValidateCell(cell); err != nil {
			return 0, errors.Wrapf(err, "invalid cell %d", i)
		}
		w.Add(cell)
	}
	return c.SetCellsSerialized(table, w.Buffer(), flags)
}

func (c *rpcTableClient) SetCellsSerialized(table string, stream []byte, flags common.MutatorFlag) (int, error) {
	resp, err := c.invoke(common.NewSetCellsRequest(table, stream, uint32(flags)))
	if resp != nil {
		// the server reports the applied cells even if a later cell failed
		return int(resp.Count), err
	}
	return 0, err
}

func (c *rpcTableClient) GetRow(table, row string) ([]cells.Cell, error) {
	resp, err := c.invoke(common.NewGetCellsRequest(table, row))
	if err != nil {
		return nil, err
	}
	return decodeResponse(resp)
}

func (c *rpcTableClient) Scan(table, startRow, endRow string) ([]cells.Cell, error) {
	resp, err := c.invoke(common.NewScanCellsRequest(table, startRow, endRow))
	if err != nil {
		return nil, err
	}
	return decodeResponse(resp)
}

func (c *rpcTableClient) OpenMutator(table string, opts MutatorOptions) (IMutator, error) {
	return newMutator(c.rpcClientAdapter, table, opts)
}

func (c *rpcTableClient) Close() error {
	return c.transport.Close()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// decodeResponse decodes the cell stream of a GetCells or ScanCells response
func decodeResponse(resp *common.Message) ([]cells.Cell, error) {
	if len(resp.Cells) == 0 {
		return nil, nil
	}
	cs, err := cells.Decode(resp.Cells)
	if err != nil {
		return nil, errors.Wrap(err, "RPC TableClient - invalid cell stream in response")
	}
	if uint64(len(cs)) != resp.Count {
		return nil, errors.Errorf("RPC TableClient - expected %d cells in response, got %d", resp.Count, len(cs))
	}
	return cs, nil
}
