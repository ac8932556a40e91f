// Package codec implements the framed, tagged-union command stream
// described by spec §4.2 and §6: a length-prefixed frame of
// `u64_be length || payload`, where payload is either the snapshot
// metadata (first frame only) or a tagged Command.
package codec

import (
	"encoding/binary"
	"io"

	"github.com/oasislabs/tezos-snapshot/go/common/logging"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/errs"
)

// flushThreshold is the writer's high-water mark: the in-memory buffer is
// flushed to the descriptor whenever it exceeds this size (spec §4.2).
const flushThreshold = 1 << 20 // 1 MiB

// refillChunk is the minimum amount the reader requests from the
// descriptor on each refill (spec §4.2).
const refillChunk = 1 << 20 // 1 MiB

var logger = logging.GetLogger("snapshot/codec")

// Writer accumulates frames into an in-memory buffer and flushes to the
// underlying descriptor at the 1 MiB high-water mark and unconditionally
// whenever Flush is called.
type Writer struct {
	w       io.Writer
	buf     []byte
	written uint64
}

// NewWriter creates a frame writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// BytesWritten returns the running total of bytes flushed to the
// descriptor so far (exposed for progress reporting, spec §4.2/§5).
func (fw *Writer) BytesWritten() uint64 {
	return fw.written
}

// WriteFrame appends a length-prefixed frame carrying payload, flushing
// the buffer if it now exceeds the high-water mark.
func (fw *Writer) WriteFrame(payload []byte) error {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(payload)))

	fw.buf = append(fw.buf, lenBuf[:]...)
	fw.buf = append(fw.buf, payload...)

	if len(fw.buf) > flushThreshold {
		return fw.Flush()
	}
	return nil
}

// Flush writes any buffered bytes to the descriptor.
func (fw *Writer) Flush() error {
	if len(fw.buf) == 0 {
		return nil
	}
	n, err := fw.w.Write(fw.buf)
	fw.written += uint64(n)
	if err != nil {
		return errs.SystemWriteError(err)
	}
	fw.buf = fw.buf[:0]
	return nil
}

// Reader is a refillable byte buffer over the underlying descriptor: it
// serves exact-length slices, refilling from the descriptor in
// >=1 MiB chunks as needed (spec §4.2).
type Reader struct {
	r    io.Reader
	buf  []byte
	pos  int
	read uint64
}

// NewReader creates a frame reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// BytesRead returns the running total of bytes consumed from the
// descriptor so far.
func (fr *Reader) BytesRead() uint64 {
	return fr.read
}

// available returns the number of unconsumed bytes currently buffered.
func (fr *Reader) available() int {
	return len(fr.buf) - fr.pos
}

// ensure guarantees at least n bytes are buffered from fr.pos onward,
// refilling from the descriptor in >=1 MiB chunks. It shifts already
// consumed bytes out of the buffer first.
func (fr *Reader) ensure(n int) error {
	if fr.available() >= n {
		return nil
	}

	if fr.pos > 0 {
		fr.buf = append(fr.buf[:0], fr.buf[fr.pos:]...)
		fr.pos = 0
	}

	for fr.available() < n {
		want := n - fr.available()
		if want < refillChunk {
			want = refillChunk
		}
		chunk := make([]byte, want)
		read, err := io.ReadAtLeast(fr.r, chunk, 1)
		if read > 0 {
			fr.buf = append(fr.buf, chunk[:read]...)
			fr.read += uint64(read)
		}
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return errs.ErrInconsistentSnapshotFile
			}
			return errs.SystemReadError(err)
		}
	}
	return nil
}

// ReadExact returns the next n bytes from the stream, refilling as
// necessary. A short read (EOF before n bytes are available) is
// Inconsistent_snapshot_file.
func (fr *Reader) ReadExact(n int) ([]byte, error) {
	if err := fr.ensure(n); err != nil {
		return nil, err
	}
	out := fr.buf[fr.pos : fr.pos+n]
	fr.pos += n
	return out, nil
}

// ReadFrame reads the next length-prefixed frame's payload.
func (fr *Reader) ReadFrame() ([]byte, error) {
	lenBytes, err := fr.ReadExact(8)
	if err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint64(lenBytes)
	if n > maxFrameLength {
		logger.Debug("frame length exceeds sanity bound", "length", n)
		return nil, errs.ErrInconsistentSnapshotFile
	}
	payload, err := fr.ReadExact(int(n))
	if err != nil {
		return nil, err
	}
	// Copy out of the internal buffer: the next ensure() may reallocate
	// or overwrite it.
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

// maxFrameLength is a sanity bound on a single frame's payload length,
// well above any realistic block header, write log chunk, or node
// listing, guarding against a corrupt length prefix turning a short read
// into an out-of-memory allocation.
const maxFrameLength = 1 << 34 // 16 GiB
