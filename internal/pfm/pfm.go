// Package pfm implements the paged file manager: a single file holding a
// fixed header block, a growable region of variably-sized data extents,
// and a trailing footer describing which extents are in use and which are
// free. It uses os.File ReadAt/WriteAt/Sync rather than mmap: extents here
// vary in block count, so mmap's benefit of skipping a read syscall per
// fixed page does not apply.
package pfm

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/ashgrove/bargate/internal/codec"
)

const (
	headerMagic   = uint8(0xB6)
	headerVersion = codec.Version
	headerSize    = BlockSize // header occupies the whole first block

	// DefaultInitialSize is the byte budget pre-allocated for a newly
	// created file when the caller does not specify one.
	DefaultInitialSize int64 = 512_000
)

// footerPayload is the gob-encoded tail of the file: the map from node
// index to its data extent, the free extent list, and the offset at
// which the next never-before-used extent would be appended.
type footerPayload struct {
	BlockMap map[int]Block
	Free     []Block
	DataEnd  int64
}

// Manager owns the single backing file and all extent bookkeeping. It is
// not safe for concurrent use; the store facade serializes access through
// its mutex.
type Manager struct {
	path    string
	file    *os.File
	blocks  map[int]Block
	free    freeList
	dataEnd int64

	footerOffset int64
	rootIndex    int
	treeIndex    int
	initialSize  int64
}

// Create makes a new, empty backing file at path, pre-allocated to
// initialSize bytes (a single free extent spanning the whole data region
// beyond the header). It fails if the file already exists. Passing an
// initialSize no larger than the header simply skips pre-allocation; the
// file still grows on demand as WriteData needs more room.
func Create(path string, initialSize int64) (*Manager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		path:        path,
		file:        f,
		blocks:      make(map[int]Block),
		rootIndex:   0,
		treeIndex:   0,
		initialSize: initialSize,
	}
	m.provision()
	if err := m.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return m, nil
}

// provision lays out the initial free extent implied by initialSize and
// grows dataEnd to cover it, without touching the file itself (Flush's
// Truncate call does that). Used by Create and Reset so both provision
// the same budget the same way.
func (m *Manager) provision() {
	m.dataEnd = headerSize
	m.free = freeList{}
	if m.initialSize <= headerSize {
		return
	}
	blocks := (m.initialSize - headerSize) / BlockSize
	if blocks <= 0 {
		return
	}
	m.free.insert(Block{Offset: headerSize, Count: blocks})
	m.dataEnd = headerSize + blocks*BlockSize
}

// Open reopens an existing backing file, reading its header and footer.
func Open(path string) (*Manager, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path, file: f}
	if err := m.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	if err := m.readFooter(); err != nil {
		f.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) readHeader() error {
	buf := make([]byte, headerSize)
	if _, err := m.file.ReadAt(buf, 0); err != nil {
		return err
	}
	if buf[0] != headerMagic {
		return ErrInvalidVersion
	}
	if buf[1] != headerVersion {
		return ErrInvalidVersion
	}
	m.footerOffset = int64(binary.BigEndian.Uint64(buf[2:10]))
	m.rootIndex = int(binary.BigEndian.Uint64(buf[10:18]))
	m.treeIndex = int(binary.BigEndian.Uint64(buf[18:26]))
	m.initialSize = int64(binary.BigEndian.Uint64(buf[26:34]))
	return nil
}

func (m *Manager) readFooter() error {
	info, err := m.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size() - m.footerOffset
	if size < 0 {
		return fmt.Errorf("%w: footer offset past end of file", ErrLostBlock)
	}
	buf := make([]byte, size)
	if _, err := m.file.ReadAt(buf, m.footerOffset); err != nil {
		return err
	}
	var fp footerPayload
	if err := codec.Decode(buf, &fp); err != nil {
		return fmt.Errorf("decode footer: %w", err)
	}
	m.blocks = fp.BlockMap
	m.free = freeList{blocks: fp.Free}
	m.dataEnd = fp.DataEnd
	return nil
}

// RootIndex returns the currently recorded root node index.
func (m *Manager) RootIndex() int { return m.rootIndex }

// SetRootIndex records a new root node index; takes effect on the next Flush.
func (m *Manager) SetRootIndex(idx int) { m.rootIndex = idx }

// TreeIndex returns the next-allocation node index counter.
func (m *Manager) TreeIndex() int { return m.treeIndex }

// SetTreeIndex records the next-allocation node index counter.
func (m *Manager) SetTreeIndex(idx int) { m.treeIndex = idx }

// ReadData reads back the bytes previously written for index.
func (m *Manager) ReadData(index int) ([]byte, error) {
	b, ok := m.blocks[index]
	if !ok {
		return nil, fmt.Errorf("index %d: %w", index, ErrLostMapping)
	}
	info, err := m.file.Stat()
	if err != nil {
		return nil, err
	}
	if b.Offset+b.Bytes() > info.Size() {
		return nil, fmt.Errorf("index %d: %w", index, ErrLostBlock)
	}
	buf := make([]byte, b.Bytes())
	if _, err := m.file.ReadAt(buf, b.Offset); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(buf[:4])
	return buf[4 : 4+length], nil
}

// WriteData stores data under index, allocating a fresh extent (freeing
// any prior extent for the same index first) sized to fit.
func (m *Manager) WriteData(index int, data []byte) error {
	if old, ok := m.blocks[index]; ok {
		m.free.insert(old)
		delete(m.blocks, index)
	}
	need := blocksNeeded(len(data))
	b, ok := m.free.bestFit(need)
	if !ok {
		b = Block{Offset: m.dataEnd, Count: need}
		m.dataEnd += b.Bytes()
	}
	buf := make([]byte, b.Bytes())
	binary.BigEndian.PutUint32(buf[:4], uint32(len(data)))
	copy(buf[4:], data)
	if _, err := m.file.WriteAt(buf, b.Offset); err != nil {
		return err
	}
	m.blocks[index] = b
	return nil
}

// FreeData releases the extent backing index back to the free list.
func (m *Manager) FreeData(index int) error {
	b, ok := m.blocks[index]
	if !ok {
		return fmt.Errorf("index %d: %w", index, ErrBlockReturn)
	}
	delete(m.blocks, index)
	m.free.insert(b)
	return nil
}

// blocksNeeded returns how many BlockSize blocks are needed to hold n
// payload bytes plus the 4-byte length prefix WriteData adds.
func blocksNeeded(n int) int64 {
	total := int64(n) + 4
	return (total + BlockSize - 1) / BlockSize
}

// Flush persists the header and footer and fsyncs the file. It must be
// called after every batch of WriteData/FreeData calls that should
// survive a crash.
func (m *Manager) Flush() error {
	fp := footerPayload{BlockMap: m.blocks, Free: m.free.blocks, DataEnd: m.dataEnd}
	body, err := codec.Encode(fp)
	if err != nil {
		return err
	}
	footerOffset := m.dataEnd
	if _, err := m.file.WriteAt(body, footerOffset); err != nil {
		return err
	}
	m.footerOffset = footerOffset

	header := make([]byte, headerSize)
	header[0] = headerMagic
	header[1] = headerVersion
	binary.BigEndian.PutUint64(header[2:10], uint64(m.footerOffset))
	binary.BigEndian.PutUint64(header[10:18], uint64(m.rootIndex))
	binary.BigEndian.PutUint64(header[18:26], uint64(m.treeIndex))
	binary.BigEndian.PutUint64(header[26:34], uint64(m.initialSize))
	if _, err := m.file.WriteAt(header, 0); err != nil {
		return err
	}
	size := m.footerOffset + int64(len(body))
	if size < m.initialSize {
		size = m.initialSize
	}
	if err := m.file.Truncate(size); err != nil {
		return err
	}
	return m.file.Sync()
}

// Reset discards all data and free-list state, truncating the file back
// to its originally provisioned initial size and rebuilding the initial
// free extent. Used by Clear, which does not go through the write-ahead
// log.
func (m *Manager) Reset() error {
	m.blocks = make(map[int]Block)
	m.rootIndex = 0
	m.treeIndex = 0
	m.provision()
	if err := m.file.Truncate(m.initialSize); err != nil {
		return err
	}
	return m.Flush()
}

// InitialSize returns the byte budget this file was provisioned with.
func (m *Manager) InitialSize() int64 { return m.initialSize }

// FileSize returns the backing file's current size in bytes.
func (m *Manager) FileSize() (int64, error) {
	info, err := m.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Close flushes and closes the backing file.
func (m *Manager) Close() error {
	if err := m.Flush(); err != nil {
		m.file.Close()
		return err
	}
	return m.file.Close()
}

// Utilization-adjacent accessor: number of blocks currently free, for
// metrics/diagnostics.
func (m *Manager) FreeBlocks() int64 { return m.free.totalBlocks() }
