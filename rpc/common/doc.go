// Package common provides the data structures shared by the cellwire RPC
// server, its clients and the transports.
//
// The package focuses on:
//   - Message protocol definition for client server communication
//   - Configuration structures for client and server components
//   - Custom logging implementation on top of Dragonboat's logger package
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. Cell data is never
//     expanded into structured fields: requests and responses carry serialized
//     cell streams (see package lib/cells) in the Cells field, so a batch built by
//     a client mutator travels to the table unchanged.
//
//   - MessageType: Enumeration of all supported operations, categorized into
//     table management, mutator sessions and one-shot cell operations.
//
//   - MutatorFlag: Bits controlling how the server applies cells of a mutator
//     (commit log syncing, commit log bypass, creation of unknown tables).
//
//   - ServerConfig / ClientConfig: Configuration for the server and clients,
//     including transport and socket settings.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's
//     logger.Factory while providing consistent formatting across the application.
package common
