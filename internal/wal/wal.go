// Package wal implements the single-file, append-only write-ahead log:
// length-prefixed command records and a throttled fsync discipline (a
// background ticker flips a flag every interval; fsync only actually
// happens, and clears the flag, when the flag was set). This trades
// "every write is durable" for "at most one fsync per interval,"
// bounding fsync cost under heavy write load while keeping the exposure
// window small and explicit.
package wal

import (
	"encoding/binary"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSyncInterval is the throttling window between fsyncs.
const DefaultSyncInterval = 2 * time.Second

// Log is a single append-only WAL file for Command[K, V] records.
type Log[K any, V any] struct {
	mu   sync.Mutex
	file *os.File
	path string

	syncAllowed atomic.Bool
	stopTicker  chan struct{}
	tickerDone  chan struct{}
}

// Create makes a new, empty WAL file at path and starts its sync ticker.
func Create[K any, V any](path string, interval time.Duration) (*Log[K, V], error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return newLog[K, V](f, path, interval), nil
}

// Open reopens an existing WAL file (e.g. to replay it after a crash) and
// starts its sync ticker.
func Open[K any, V any](path string, interval time.Duration) (*Log[K, V], error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return newLog[K, V](f, path, interval), nil
}

// Exists reports whether a WAL file is present at path without opening it.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newLog[K any, V any](f *os.File, path string, interval time.Duration) *Log[K, V] {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	l := &Log[K, V]{
		file:       f,
		path:       path,
		stopTicker: make(chan struct{}),
		tickerDone: make(chan struct{}),
	}
	go l.runTicker(interval)
	return l
}

func (l *Log[K, V]) runTicker(interval time.Duration) {
	defer close(l.tickerDone)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.syncAllowed.Store(true)
		case <-l.stopTicker:
			return
		}
	}
}

// flush fsyncs the file, but only if the ticker has set syncAllowed since
// the last flush; otherwise it is a no-op. This is the throttling step.
// The returned bool reports whether an fsync actually ran.
func (l *Log[K, V]) flush() (bool, error) {
	if l.syncAllowed.CompareAndSwap(true, false) {
		return true, l.file.Sync()
	}
	return false, nil
}

// Append writes a length-prefixed command record and attempts a throttled
// fsync, reporting whether that fsync actually ran. The length prefix and
// the payload are two separate writes, and a record is durable only once
// an fsync (this one or a later one) covers it. An append cut short by a
// crash leaves a partial record at the tail, which Replay treats as the
// end of the log.
func (l *Log[K, V]) Append(cmd Command[K, V]) (bool, error) {
	payload, err := encodeCommand(cmd)
	if err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	if _, err := l.file.Write(lenBuf[:]); err != nil {
		return false, err
	}
	if _, err := l.file.Write(payload); err != nil {
		return false, err
	}
	return l.flush()
}

// Replay reads every complete record from the start of the file and
// invokes apply for each, in append order. It stops cleanly at a clean
// EOF or at a torn trailing record (a length prefix with no matching
// payload, the signature of a crash mid-append), returning nil in both
// cases; any other read error, or a payload that fails to decode, is
// returned to the caller.
func (l *Log[K, V]) Replay(apply func(Command[K, V]) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r := l.file
	for {
		var lenBuf [8]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil // clean EOF or a torn length prefix
			}
			return err
		}
		n := binary.BigEndian.Uint64(lenBuf[:])
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil // torn record payload
			}
			return err
		}
		cmd, err := decodeCommand[K, V](payload)
		if err != nil {
			return err
		}
		if err := apply(cmd); err != nil {
			return err
		}
	}
}

// Close stops the sync ticker and closes the file without removing it.
func (l *Log[K, V]) Close() error {
	close(l.stopTicker)
	<-l.tickerDone
	return l.file.Close()
}

// Remove closes and deletes the WAL file, used after a checkpoint flush
// has made its records durable in the main store and a fresh log can
// start from empty.
func (l *Log[K, V]) Remove() error {
	if err := l.Close(); err != nil {
		return err
	}
	return os.Remove(l.path)
}

// Path returns the WAL file's path.
func (l *Log[K, V]) Path() string { return l.path }
