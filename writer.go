package pmflate

import (
	"hash"
	"hash/crc32"
	"io"

	"github.com/pschultz/pmflate/internal/deflate"
)

// Writer is an incremental gzip writer: it writes the header on
// construction and flushes full DEFLATE blocks as data accumulates,
// instead of requiring the whole payload up front the way Compress does.
// Close must be called on every exit path to flush the final block and
// the CRC-32/ISIZE trailer.
type Writer struct {
	w      io.Writer
	dw     *deflate.Writer
	crc    hash.Hash32
	size   uint64
	closed bool
}

// NewWriter writes the gzip header (with an FNAME field when name is
// non-empty) and returns a Writer ready to accept payload bytes.
func NewWriter(w io.Writer, name string) (*Writer, error) {
	if err := writeHeader(w, name); err != nil {
		return nil, err
	}
	return &Writer{
		w:   w,
		dw:  deflate.NewWriter(w, deflate.DefaultBlockSize),
		crc: crc32.NewIEEE(),
	}, nil
}

func (gw *Writer) Write(p []byte) (int, error) {
	n, err := gw.dw.Write(p)
	gw.crc.Write(p[:n])
	gw.size += uint64(n)
	return n, err
}

// Close flushes the final DEFLATE block and writes the CRC-32/ISIZE
// trailer. It is idempotent.
func (gw *Writer) Close() error {
	if gw.closed {
		return nil
	}
	gw.closed = true

	if err := gw.dw.Close(); err != nil {
		return err
	}
	return writeTrailer(gw.w, gw.crc.Sum32(), uint32(gw.size))
}

// Reader is the incremental counterpart to Decompress: it validates the
// header on construction and decodes the payload lazily as Read is
// called, checking the CRC-32/ISIZE trailer once the final block has
// been consumed.
type Reader struct {
	r              io.ReadSeeker
	dr             *deflate.Reader
	crc            hash.Hash32
	size           uint64
	trailerChecked bool
	trailerErr     error
}

// NewReader validates the gzip header (and consumes any FEXTRA/FNAME/
// FCOMMENT/FHCRC fields) and returns a Reader positioned at the start of
// the DEFLATE payload. trace, if non-nil, receives a human-readable dump
// of each block's header and payload summary as it is decoded.
func NewReader(r io.ReadSeeker, trace io.Writer) (*Reader, error) {
	if err := readHeader(r); err != nil {
		return nil, err
	}
	return &Reader{r: r, dr: deflate.NewReader(r, trace), crc: crc32.NewIEEE()}, nil
}

func (gr *Reader) Read(p []byte) (int, error) {
	n, err := gr.dr.Read(p)
	gr.crc.Write(p[:n])
	gr.size += uint64(n)

	if err == io.EOF {
		if !gr.trailerChecked {
			gr.trailerChecked = true
			gr.trailerErr = gr.checkTrailer()
		}
		if gr.trailerErr != nil {
			return n, gr.trailerErr
		}
	}
	return n, err
}

func (gr *Reader) checkTrailer() error {
	wantCRC, wantSize, err := readTrailer(gr.r)
	if err != nil {
		return err
	}
	if gr.crc.Sum32() != wantCRC {
		return ErrCRCMismatch
	}
	if uint32(gr.size) != wantSize {
		return ErrSizeMismatch
	}
	return nil
}
