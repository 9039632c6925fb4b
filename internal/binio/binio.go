// Package binio implements the two binary serialization dialects the
// on-disk model format uses: a "native" dialect with little-endian scalars
// and terminator-delimited strings (the single-file .bin/.ftz layout), and
// a "length-prefixed" dialect with fixed-width string fields (the
// memory-mapped sidecar files). Both dialects share scalar encodings;
// only string framing differs.
package binio

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"unicode/utf8"

	"github.com/screenager/fasttext/internal/ftfail"
)

// native string terminators: the first of these bytes encountered ends the
// string; it is consumed from the stream but not included in the result.
const (
	termNUL  = 0x00
	termSpc  = 0x20
	termNL   = 0x0A
	maxNativ = 1 << 20 // sanity bound against a corrupt/unterminated stream
)

// Reader reads scalars and strings from a file in either dialect. It is
// built over an *os.File so it can be cloned: a clone reopens the
// underlying path and seeks to the same byte offset, giving the clone an
// independent cursor with no shared mutable state, per the single-writer /
// cloned-reader concurrency model.
type Reader struct {
	f    *os.File
	path string
	pos  int64
}

// NewReader wraps an already-open file. The Reader takes ownership of
// sequential reads from the file's current offset.
func NewReader(f *os.File) *Reader {
	return &Reader{f: f, path: f.Name()}
}

// OpenReader opens path for reading.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewReader(f), nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

// Clone returns an independent Reader over the same path, positioned at
// this reader's current offset. The original is unaffected by the clone's
// subsequent reads.
func (r *Reader) Clone() (*Reader, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("clone reader %s: %w", r.path, err)
	}
	if _, err := f.Seek(r.pos, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return &Reader{f: f, path: r.path, pos: r.pos}, nil
}

func (r *Reader) fill(buf []byte) error {
	n, err := io.ReadFull(r.f, buf)
	r.pos += int64(n)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("%w: expected %d bytes, got %d", ftfail.ErrTruncated, len(buf), n)
		}
		return err
	}
	return nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	var b [1]byte
	if err := r.fill(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := r.fill(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadInt32 reads a little-endian 4-byte signed integer ("int" in the
// format, 32 bits).
func (r *Reader) ReadInt32() (int32, error) {
	var buf [4]byte
	if err := r.fill(buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// ReadInt64 reads a little-endian 8-byte signed integer ("long").
func (r *Reader) ReadInt64() (int64, error) {
	var buf [8]byte
	if err := r.fill(buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

// ReadFloat32 reads a little-endian IEEE-754 single precision float.
func (r *Reader) ReadFloat32() (float32, error) {
	var buf [4]byte
	if err := r.fill(buf[:]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:])), nil
}

// ReadFloat64 reads a little-endian IEEE-754 double precision float
// ("double").
func (r *Reader) ReadFloat64() (float64, error) {
	var buf [8]byte
	if err := r.fill(buf[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}

// ReadBool reads a single byte, 0 or 1.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// ReadCStyleString reads the native dialect: raw UTF-8 bytes terminated by
// one of NUL, space, or newline. The terminator is consumed but not
// returned.
func (r *Reader) ReadCStyleString() (string, error) {
	buf := make([]byte, 0, 16)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == termNUL || b == termSpc || b == termNL {
			break
		}
		buf = append(buf, b)
		if len(buf) > maxNativ {
			return "", fmt.Errorf("%w: unterminated string", ftfail.ErrInvalidModel)
		}
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("%w: %q", ftfail.ErrInvalidUtf8, buf)
	}
	return string(buf), nil
}

// ReadLengthPrefixedString reads the mmap dialect: a 4-byte length prefix
// followed by that many UTF-8 bytes, then padding so that payload plus
// padding span fieldWidth bytes after the prefix (fieldWidth must be >=
// length).
func (r *Reader) ReadLengthPrefixedString(fieldWidth int) (string, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return "", err
	}
	if n < 0 || int(n) > fieldWidth {
		return "", fmt.Errorf("%w: length-prefixed string length %d exceeds field width %d", ftfail.ErrInvalidModel, n, fieldWidth)
	}
	payload, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	pad := fieldWidth - int(n)
	if pad > 0 {
		if _, err := r.ReadBytes(pad); err != nil {
			return "", err
		}
	}
	if !utf8.Valid(payload) {
		return "", fmt.Errorf("%w: %q", ftfail.ErrInvalidUtf8, payload)
	}
	return string(payload), nil
}

// Writer writes scalars and strings in either dialect to an io.Writer,
// tracking a running CRC32 checksum and total byte count as it goes.
type Writer struct {
	w     io.Writer
	crc   uint32
	n     int64
	err   error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered, if any.
func (w *Writer) Err() error { return w.err }

// BytesWritten returns the total number of bytes written so far.
func (w *Writer) BytesWritten() int64 { return w.n }

// CRC32 returns the running CRC32 checksum (IEEE polynomial) of every byte
// written so far.
func (w *Writer) CRC32() uint32 { return w.crc }

func (w *Writer) write(buf []byte) {
	if w.err != nil {
		return
	}
	n, err := w.w.Write(buf)
	w.n += int64(n)
	w.crc = crc32.Update(w.crc, crc32.IEEETable, buf[:n])
	if err != nil {
		w.err = err
	}
}

// WriteByte writes a single byte.
func (w *Writer) WriteByte(b byte) { w.write([]byte{b}) }

// WriteBytes writes a raw byte slice.
func (w *Writer) WriteBytes(b []byte) { w.write(b) }

// WriteInt32 writes a little-endian 4-byte signed integer.
func (w *Writer) WriteInt32(v int32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	w.write(buf[:])
}

// WriteInt64 writes a little-endian 8-byte signed integer.
func (w *Writer) WriteInt64(v int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	w.write(buf[:])
}

// WriteFloat32 writes a little-endian IEEE-754 single precision float.
func (w *Writer) WriteFloat32(v float32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	w.write(buf[:])
}

// WriteFloat64 writes a little-endian IEEE-754 double precision float.
func (w *Writer) WriteFloat64(v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	w.write(buf[:])
}

// WriteBool writes a single byte, 0 or 1.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}

// WriteCStyleString writes s followed by a single NUL terminator (the
// native dialect's canonical terminator on save).
func (w *Writer) WriteCStyleString(s string) {
	w.write([]byte(s))
	w.WriteByte(termNUL)
}

// WriteLengthPrefixedString writes a 4-byte length prefix, the UTF-8
// bytes of s, then zero padding so that payload plus padding span
// fieldWidth bytes after the prefix.
func (w *Writer) WriteLengthPrefixedString(s string, fieldWidth int) error {
	if len(s) > fieldWidth {
		return fmt.Errorf("%w: string %q (len %d) does not fit field width %d", ftfail.ErrInvalidArgument, s, len(s), fieldWidth)
	}
	w.WriteInt32(int32(len(s)))
	w.write([]byte(s))
	pad := fieldWidth - len(s)
	if pad > 0 {
		w.write(make([]byte, pad))
	}
	return nil
}
