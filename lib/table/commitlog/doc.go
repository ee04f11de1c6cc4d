// Package commitlog implements a simple write-ahead log for cell streams.
//
// The RPC server appends every stream to the log of its table before the
// stream is applied, unless the mutator asked to skip logging. After a restart
// the latest table snapshot is loaded and the log is replayed on top of it;
// saving a new snapshot truncates the log.
//
// Entries are length prefixed and protected by an xxhash64 checksum, a torn
// entry at the end of the file is ignored on replay.
package commitlog
