// Package table defines the storage side of cellwire: tables that serialized
// cell streams are applied to.
//
// The package focuses on:
//   - ITable: the interface every table implementation satisfies
//   - Error and RetCode: typed errors shared by tables, the RPC server and clients
//   - Info: table metadata
//
// Semantics:
//
// A table stores at most one version per cell (row, column family, qualifier).
//   - Inserts with TimestampAutoAssign or TimestampNull get a table assigned
//     timestamp that is strictly increasing within the table.
//   - An insert whose timestamp is older than the stored version is ignored.
//   - Deletes remove all matching cells with a timestamp <= the delete timestamp.
//     A delete with a sentinel timestamp removes every matching cell.
//   - Rows without cells disappear.
//
// Implementations:
//
//   - memtable: an in-memory table on an ordered skip list, see package memtable
//
// The subpackage testing contains a conformance suite (RunTableTests) that every
// implementation should pass.
package table
