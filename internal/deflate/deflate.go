package deflate

import (
	"io"

	"github.com/pschultz/pmflate/internal/bitio"
)

// Encode writes r to w as a sequence of dynamic-Huffman blocks of up to
// blockSize bytes each. A blockSize <= 0 selects DefaultBlockSize. r must
// support Seek so each block can probe one byte ahead to decide BFINAL.
func Encode(w io.Writer, r io.ReadSeeker, blockSize int) error {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	bw := bitio.NewWriter(w)
	var b block
	for {
		bfinal, err := encodeBlock(bw, r, &b, blockSize)
		if err != nil {
			return err
		}
		if bfinal {
			break
		}
	}
	return bw.Flush()
}

// Decode reads a sequence of blocks written by Encode from r and writes
// the decompressed bytes to w. r must support Seek: once the final block
// is consumed, any bits buffered past the trailing byte boundary are
// pushed back so a caller can read a trailing container (e.g. a gzip
// CRC/ISIZE) starting exactly where the deflate stream ended.
func Decode(w io.Writer, r io.ReadSeeker) error {
	return DecodeWithTrace(w, r, nil)
}

// DecodeWithTrace behaves like Decode but writes a human-readable dump of
// each block's header and payload summary to trace, when non-nil.
func DecodeWithTrace(w io.Writer, r io.ReadSeeker, trace io.Writer) error {
	br := bitio.NewReader(r)
	for {
		bfinal, err := decodeBlock(br, w, trace)
		if err != nil {
			return err
		}
		if bfinal {
			break
		}
	}
	return br.PutBackExtra()
}

// Writer is an incremental, push-style encoder: callers feed it bytes via
// Write and it emits a block as soon as blockSize bytes have accumulated,
// rather than pulling from a seekable source and probing ahead. Close
// must be called to flush the final (possibly empty) block with BFINAL
// set, followed by the bit accumulator itself.
type Writer struct {
	bw        *bitio.Writer
	blockSize int
	block     block
	pending   []byte
	closed    bool
	err       error
}

// NewWriter returns a Writer that flushes full blocks of blockSize bytes
// as they accumulate. A blockSize <= 0 selects DefaultBlockSize.
func NewWriter(w io.Writer, blockSize int) *Writer {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Writer{bw: bitio.NewWriter(w), blockSize: blockSize}
}

func (dw *Writer) Write(p []byte) (int, error) {
	if dw.err != nil {
		return 0, dw.err
	}
	n := len(p)
	dw.pending = append(dw.pending, p...)
	for len(dw.pending) >= dw.blockSize {
		dw.block.loadBytes(dw.pending[:dw.blockSize])
		dw.pending = dw.pending[dw.blockSize:]
		if err := encodeBlockCore(dw.bw, &dw.block, false); err != nil {
			dw.err = err
			return n, err
		}
	}
	return n, nil
}

// Close flushes the final block (BFINAL=1, possibly empty) and the
// underlying bit accumulator. Every exit path that constructs a Writer
// must call it; later calls write nothing and return the first call's
// error.
func (dw *Writer) Close() error {
	if dw.closed {
		return dw.err
	}
	dw.closed = true
	if dw.err != nil {
		return dw.err
	}

	dw.block.loadBytes(dw.pending)
	dw.pending = nil
	if err := encodeBlockCore(dw.bw, &dw.block, true); err != nil {
		dw.err = err
		return err
	}
	if err := dw.bw.Flush(); err != nil {
		dw.err = err
		return err
	}
	return nil
}

// Reader is the incremental decoder counterpart to Writer. It decodes
// blocks lazily as Read is called, so a caller need not size a
// destination buffer for the whole stream up front.
type Reader struct {
	br      *bitio.Reader
	trace   io.Writer
	pending []byte
	done    bool
	err     error
}

// NewReader returns a Reader decoding blocks from r. trace, if non-nil,
// receives a diagnostic dump of each block's header and payload summary.
func NewReader(r io.ReadSeeker, trace io.Writer) *Reader {
	return &Reader{br: bitio.NewReader(r), trace: trace}
}

func (dr *Reader) Read(p []byte) (int, error) {
	for len(dr.pending) == 0 {
		if dr.err != nil {
			return 0, dr.err
		}
		if dr.done {
			return 0, io.EOF
		}

		var buf fixedBuffer
		bfinal, err := decodeBlock(dr.br, &buf, dr.trace)
		if err != nil {
			dr.err = err
			return 0, err
		}
		dr.pending = buf.data
		dr.done = bfinal
		if bfinal {
			if err := dr.br.PutBackExtra(); err != nil {
				dr.err = err
			}
		}
	}

	n := copy(p, dr.pending)
	dr.pending = dr.pending[n:]
	return n, nil
}

// fixedBuffer is an io.Writer that appends every Write to an internal
// slice, used to collect a single block's decoded bytes for Reader.
type fixedBuffer struct {
	data []byte
}

func (b *fixedBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}
