// Package cmd implements the command-line interface of cellwire. It provides
// a hierarchical command structure with operations for running the server,
// interacting with it as a client and working with cell stream files.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the cellwire server
//   - cells: Commands for table management and cell operations (create, set, del, get, scan, load, perf)
//   - codec: Offline encoding of YAML mutation files into cell streams and decoding of streams
//   - util: Shared utilities for command-line processing, configuration and mutation files (internal use)
//
// See cellwire -help for a list of all commands.
package cmd
