package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/cellwire/cmd/cells"
	"github.com/ValentinKolb/cellwire/cmd/codec"
	"github.com/ValentinKolb/cellwire/cmd/serve"
	"github.com/ValentinKolb/cellwire/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "cellwire",
		Short: "serialized cell mutation server and tools",
		Long: fmt.Sprintf(`cellwire (v%s)

A server and client library for tables that are written with compact
serialized cell streams: batches of inserts and deletes encoded into
a single buffer, shipped by buffered mutators and applied in order.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of cellwire",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cellwire v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(cells.CellCommands)
	RootCmd.AddCommand(codec.CodecCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
