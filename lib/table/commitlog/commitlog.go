package commitlog

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var Logger = logger.GetLogger("commitlog")

// entryHeaderSize is the size of the length (uint32) and checksum (uint64) in front of every entry
const entryHeaderSize = 4 + 8

// ErrClosed is returned by operations on a closed log
var ErrClosed = errors.New("commit log is closed")

// Log is an append-only file of cell streams.
// Every entry is stored as: length (uint32, LE) | xxhash64 of the stream (uint64, LE) | stream.
type Log struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *bufio.Writer
	dirty  bool // data was written since the last sync
}

// Open opens or creates the log file at path. Missing directories are created.
func Open(path string) (*Log, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, errors.Wrapf(err, "failed to create commit log directory for %s", path)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open commit log %s", path)
	}

	return &Log{
		path:   path,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// Path returns the file path of the log
func (l *Log) Path() string {
	return l.path
}

// Append writes a stream to the log. If sync is true the file is synced to
// stable storage before Append returns, otherwise the entry is only flushed
// to the OS and synced by the next Sync call.
func (l *Log) Append(stream []byte, sync bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrClosed
	}

	var header [entryHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:4], uint32(len(stream)))
	binary.LittleEndian.PutUint64(header[4:], xxhash.Sum64(stream))

	if _, err := l.writer.Write(header[:]); err != nil {
		return errors.Wrap(err, "failed to write commit log entry")
	}
	if _, err := l.writer.Write(stream); err != nil {
		return errors.Wrap(err, "failed to write commit log entry")
	}
	if err := l.writer.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush commit log")
	}

	l.dirty = true
	if sync {
		return l.syncLocked()
	}
	return nil
}

// Sync syncs all appended entries to stable storage
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrClosed
	}
	return l.syncLocked()
}

// Replay calls fn for every entry in the log in append order.
// A torn entry at the end of the file (e.g. after a crash during Append) is
// skipped with a warning, a checksum mismatch in the middle of the file is an error.
func (l *Log) Replay(fn func(stream []byte) error) (entries int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return 0, ErrClosed
	}

	file, err := os.Open(l.path)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to open commit log %s for reading", l.path)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	var header [entryHeaderSize]byte
	for {
		if _, err := io.ReadFull(reader, header[:]); err != nil {
			if err == io.EOF {
				return entries, nil
			}
			if err == io.ErrUnexpectedEOF {
				Logger.Warningf("ignoring torn entry header at the end of %s", l.path)
				return entries, nil
			}
			return entries, errors.Wrapf(err, "failed to read commit log %s", l.path)
		}

		stream := make([]byte, binary.LittleEndian.Uint32(header[:4]))
		if _, err := io.ReadFull(reader, stream); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				Logger.Warningf("ignoring torn entry at the end of %s", l.path)
				return entries, nil
			}
			return entries, errors.Wrapf(err, "failed to read commit log %s", l.path)
		}

		if xxhash.Sum64(stream) != binary.LittleEndian.Uint64(header[4:]) {
			return entries, errors.Errorf("checksum mismatch in entry %d of %s", entries, l.path)
		}

		if err := fn(stream); err != nil {
			return entries, errors.Wrapf(err, "failed to replay entry %d of %s", entries, l.path)
		}
		entries++
	}
}

// Truncate removes all entries, e.g. after the table was saved to a snapshot
func (l *Log) Truncate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrClosed
	}
	if err := l.writer.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush commit log")
	}
	if err := l.file.Truncate(0); err != nil {
		return errors.Wrapf(err, "failed to truncate commit log %s", l.path)
	}
	l.dirty = true
	return l.syncLocked()
}

// Close syncs and closes the log
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.syncLocked()
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	l.writer = nil
	return err
}

// Remove closes the log and deletes its file
func (l *Log) Remove() error {
	if err := l.Close(); err != nil {
		return err
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove commit log %s", l.path)
	}
	return nil
}

// syncLocked flushes the writer and syncs the file if needed, l.mu must be held
func (l *Log) syncLocked() error {
	if err := l.writer.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush commit log")
	}
	if !l.dirty {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync commit log")
	}
	l.dirty = false
	return nil
}
