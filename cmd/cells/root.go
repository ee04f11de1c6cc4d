package cells

import (
	"github.com/ValentinKolb/cellwire/cmd/util"
	"github.com/ValentinKolb/cellwire/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcTables client.ITableClient

	// CellCommands represents the cells command group
	CellCommands = &cobra.Command{
		Use:               "cells",
		Short:             "Manage tables and read or write cells",
		PersistentPreRunE: setupTableClient,
		PersistentPostRun: func(*cobra.Command, []string) {
			if rpcTables != nil {
				_ = rpcTables.Close()
			}
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the cells command
	util.SetupRPCClientFlags(CellCommands)

	// Add subcommands
	CellCommands.AddCommand(createCmd)
	CellCommands.AddCommand(dropCmd)
	CellCommands.AddCommand(existsCmd)
	CellCommands.AddCommand(setCmd)
	CellCommands.AddCommand(delCmd)
	CellCommands.AddCommand(getCmd)
	CellCommands.AddCommand(scanCmd)
	CellCommands.AddCommand(loadCmd)
	CellCommands.AddCommand(perfTestCmd)
}

// setupTableClient initializes the RPC table client
func setupTableClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	namespace := util.GetNamespace()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the table client
	rpcTables, err = client.NewRPCTableClient(
		namespace,
		*config,
		t,
		s,
	)

	return err
}
