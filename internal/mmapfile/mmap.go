// Package mmapfile memory-maps a file into a sequence of bounded chunks
// and exposes a random-access, position-based cursor over the mapping, so
// the large embedding tables of the memory-mapped model variant never
// need to be copied onto the heap.
package mmapfile

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"golang.org/x/sys/unix"

	"github.com/screenager/fasttext/internal/ftfail"
)

// chunkSizePower bounds each individual mmap chunk to 2^chunkSizePower
// bytes, a power-of-two boundary comfortably under platform limits
// (2^30 on 64-bit).
const chunkSizePower = 30

const chunkSize = int64(1) << chunkSizePower

// chunk is one mmap'd region of the file.
type chunk struct {
	data []byte
}

// shared is the mapping state shared by a File and all of its clones.
// refcount tracks live Files so the mapping is unmapped only once the last
// one closes.
type shared struct {
	chunks   []chunk
	size     int64
	refcount *int32
	f        *os.File // kept open for the lifetime of the mapping
}

// File is a random-access cursor over a memory-mapped file. Clone returns
// an independent cursor over the same mapping; the mapping itself is
// released only when every clone (and the original) has been closed.
type File struct {
	sh  *shared
	pos int64
}

// Open memory-maps path read-only. If preload is true, the OS is asked
// (best-effort, via MAP_POPULATE where supported) to page the whole file
// in eagerly rather than faulting it in on first access.
func Open(path string, preload bool) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s is empty", ftfail.ErrMapFailed, path)
	}

	var chunks []chunk
	flags := unix.MAP_SHARED
	if preload {
		flags |= mapPopulateFlag()
	}
	for off := int64(0); off < size; off += chunkSize {
		n := chunkSize
		if off+n > size {
			n = size - off
		}
		data, err := unix.Mmap(int(f.Fd()), off, int(n), unix.PROT_READ, flags)
		if err != nil {
			for _, c := range chunks {
				unix.Munmap(c.data)
			}
			f.Close()
			return nil, fmt.Errorf("%w: mmap %s at offset %d: %v", ftfail.ErrMapFailed, path, off, err)
		}
		chunks = append(chunks, chunk{data: data})
	}

	rc := int32(1)
	return &File{sh: &shared{chunks: chunks, size: size, refcount: &rc, f: f}}, nil
}

// Size returns the total mapped file size in bytes.
func (m *File) Size() int64 { return m.sh.size }

// Clone returns an independent cursor over the same mapping, positioned at
// offset 0. Movements of the clone's cursor never affect the original's.
func (m *File) Clone() *File {
	*m.sh.refcount++
	return &File{sh: m.sh}
}

// Close releases this cursor's reference to the mapping. Once every clone
// (and the original) has closed, the underlying mmap regions are unmapped
// and the file descriptor released.
func (m *File) Close() error {
	*m.sh.refcount--
	if *m.sh.refcount > 0 {
		return nil
	}
	var firstErr error
	for _, c := range m.sh.chunks {
		if err := unix.Munmap(c.data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := m.sh.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Seek repositions the cursor to an absolute byte offset.
func (m *File) Seek(pos int64) { m.pos = pos }

// Pos returns the cursor's current absolute byte offset.
func (m *File) Pos() int64 { return m.pos }

// chunkAndOffset maps an absolute position to its (chunk index, in-chunk
// offset) pair.
func chunkAndOffset(pos int64) (int, int64) {
	return int(pos / chunkSize), pos % chunkSize
}

// readAt copies n bytes starting at absolute position pos into dst,
// transparently crossing chunk boundaries.
func (m *File) readAt(pos int64, dst []byte) error {
	if pos < 0 || pos+int64(len(dst)) > m.sh.size {
		return fmt.Errorf("%w: read [%d,%d) out of bounds (size %d)", ftfail.ErrTruncated, pos, pos+int64(len(dst)), m.sh.size)
	}
	remaining := dst
	cur := pos
	for len(remaining) > 0 {
		ci, off := chunkAndOffset(cur)
		c := m.sh.chunks[ci].data
		n := copy(remaining, c[off:])
		remaining = remaining[n:]
		cur += int64(n)
	}
	return nil
}

// ReadByte reads one byte at the cursor and advances it.
func (m *File) ReadByte() (byte, error) {
	var b [1]byte
	if err := m.readAt(m.pos, b[:]); err != nil {
		return 0, err
	}
	m.pos++
	return b[0], nil
}

// ReadBytes reads n bytes at the cursor and advances it.
func (m *File) ReadBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := m.readAt(m.pos, buf); err != nil {
		return nil, err
	}
	m.pos += int64(n)
	return buf, nil
}

// ReadInt32 reads a little-endian 4-byte signed integer at the cursor.
func (m *File) ReadInt32() (int32, error) {
	var buf [4]byte
	if err := m.readAt(m.pos, buf[:]); err != nil {
		return 0, err
	}
	m.pos += 4
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// ReadInt64 reads a little-endian 8-byte signed integer at the cursor.
func (m *File) ReadInt64() (int64, error) {
	var buf [8]byte
	if err := m.readAt(m.pos, buf[:]); err != nil {
		return 0, err
	}
	m.pos += 8
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

// ReadFloat32 reads a little-endian IEEE-754 single precision float at the
// cursor.
func (m *File) ReadFloat32() (float32, error) {
	var buf [4]byte
	if err := m.readAt(m.pos, buf[:]); err != nil {
		return 0, err
	}
	m.pos += 4
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:])), nil
}

// ReadFloat32At reads a float32 at an absolute byte offset without moving
// the cursor, used for random-access row/column lookups into the mapped
// embedding matrix.
func (m *File) ReadFloat32At(pos int64) (float32, error) {
	var buf [4]byte
	if err := m.readAt(pos, buf[:]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:])), nil
}

// ReadInt64At reads an int64 at an absolute byte offset without moving the
// cursor, used for binary search over the sorted hash array.
func (m *File) ReadInt64At(pos int64) (int64, error) {
	var buf [8]byte
	if err := m.readAt(pos, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

// ReadInt32At reads an int32 at an absolute byte offset without moving the
// cursor.
func (m *File) ReadInt32At(pos int64) (int32, error) {
	var buf [4]byte
	if err := m.readAt(pos, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// ReadBytesAt reads n raw bytes at an absolute byte offset without moving
// the cursor.
func (m *File) ReadBytesAt(pos int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := m.readAt(pos, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadByteAt reads a single byte at an absolute byte offset without moving
// the cursor.
func (m *File) ReadByteAt(pos int64) (byte, error) {
	var b [1]byte
	if err := m.readAt(pos, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}
