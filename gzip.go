// Package pmflate implements a gzip-compatible container (RFC 1952) around
// a restricted, dynamic-Huffman-only DEFLATE codec (RFC 1951): literal
// bytes and an end-of-block symbol only, no LZ77 matching.
package pmflate

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/pschultz/pmflate/internal/deflate"
)

const (
	gzipID1   = 0x1f
	gzipID2   = 0x8b
	cmDeflate = 8

	flagFHCRC    = 1 << 1
	flagFEXTRA   = 1 << 2
	flagFNAME    = 1 << 3
	flagFComment = 1 << 4

	xflDefault = 4
	osUnknown  = 255
)

func writeHeader(w io.Writer, name string) error {
	var hdr [10]byte
	hdr[0] = gzipID1
	hdr[1] = gzipID2
	hdr[2] = cmDeflate
	if name != "" {
		hdr[3] = flagFNAME
	}
	// MTIME left at 0: this implementation never embeds a timestamp.
	hdr[8] = xflDefault
	hdr[9] = osUnknown

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	if _, err := io.WriteString(w, name); err != nil {
		return err
	}
	_, err := w.Write([]byte{0})
	return err
}

// readHeader validates the 10-byte gzip header and consumes any optional
// FEXTRA/FNAME/FCOMMENT/FHCRC fields per the flag bits, leaving r
// positioned at the start of the DEFLATE payload.
func readHeader(r io.ReadSeeker) error {
	var hdr [10]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("pmflate: reading header: %w", err)
	}
	if hdr[0] != gzipID1 || hdr[1] != gzipID2 || hdr[2] != cmDeflate {
		return ErrBadMagic
	}
	flags := hdr[3]

	if flags&flagFEXTRA != 0 {
		var xlenBuf [2]byte
		if _, err := io.ReadFull(r, xlenBuf[:]); err != nil {
			return fmt.Errorf("pmflate: reading FEXTRA length: %w", err)
		}
		xlen := int64(binary.LittleEndian.Uint16(xlenBuf[:]))
		if _, err := r.Seek(xlen, io.SeekCurrent); err != nil {
			return fmt.Errorf("pmflate: skipping FEXTRA: %w", err)
		}
	}
	if flags&flagFNAME != 0 {
		if err := skipNullTerminated(r); err != nil {
			return fmt.Errorf("pmflate: reading FNAME: %w", err)
		}
	}
	if flags&flagFComment != 0 {
		if err := skipNullTerminated(r); err != nil {
			return fmt.Errorf("pmflate: reading FCOMMENT: %w", err)
		}
	}
	if flags&flagFHCRC != 0 {
		if _, err := r.Seek(2, io.SeekCurrent); err != nil {
			return fmt.Errorf("pmflate: skipping FHCRC: %w", err)
		}
	}
	return nil
}

func skipNullTerminated(r io.Reader) error {
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		if b[0] == 0 {
			return nil
		}
	}
}

func writeTrailer(w io.Writer, crc, size uint32) error {
	var trailer [8]byte
	binary.LittleEndian.PutUint32(trailer[0:4], crc)
	binary.LittleEndian.PutUint32(trailer[4:8], size)
	_, err := w.Write(trailer[:])
	return err
}

func readTrailer(r io.Reader) (crc, size uint32, err error) {
	var trailer [8]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return 0, 0, fmt.Errorf("pmflate: reading trailer: %w", err)
	}
	return binary.LittleEndian.Uint32(trailer[0:4]), binary.LittleEndian.Uint32(trailer[4:8]), nil
}

// Compress reads all of r, writes it as a gzip member to w (header, FNAME
// when name is non-empty, DEFLATE payload, CRC-32/ISIZE trailer), and
// returns any error encountered. r need not be seekable: Compress buffers
// it so the restricted DEFLATE codec can probe ahead for end-of-input.
func Compress(w io.Writer, r io.Reader, name string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("pmflate: reading input: %w", err)
	}

	if err := writeHeader(w, name); err != nil {
		return fmt.Errorf("pmflate: writing header: %w", err)
	}
	if err := deflate.Encode(w, bytes.NewReader(data), deflate.DefaultBlockSize); err != nil {
		return fmt.Errorf("pmflate: encoding payload: %w", err)
	}

	sum := crc32.ChecksumIEEE(data)
	return writeTrailer(w, sum, uint32(len(data)))
}

// Decompress decodes a single gzip member from r, writing the
// decompressed bytes to w, and validates the trailing CRC-32 and ISIZE
// against what was actually decoded.
func Decompress(w io.Writer, r io.ReadSeeker) error {
	return DecompressWithTrace(w, r, nil)
}

// DecompressWithTrace behaves like Decompress but writes a human-readable
// dump of each block's header and payload summary to trace, when non-nil —
// the source of the CLI's -v / -info style diagnostics.
func DecompressWithTrace(w io.Writer, r io.ReadSeeker, trace io.Writer) error {
	if err := readHeader(r); err != nil {
		return err
	}

	cw := &crcCountWriter{w: w, crc: crc32.NewIEEE()}
	if err := deflate.DecodeWithTrace(cw, r, trace); err != nil {
		return fmt.Errorf("pmflate: decoding payload: %w", err)
	}

	wantCRC, wantSize, err := readTrailer(r)
	if err != nil {
		return err
	}
	if cw.crc.Sum32() != wantCRC {
		return ErrCRCMismatch
	}
	if uint32(cw.size) != wantSize {
		return ErrSizeMismatch
	}
	return nil
}

// crcCountWriter forwards writes to an underlying io.Writer while
// accumulating a CRC-32 digest and a byte count.
type crcCountWriter struct {
	w    io.Writer
	crc  hash.Hash32
	size uint64
}

func (c *crcCountWriter) Write(p []byte) (int, error) {
	c.crc.Write(p)
	c.size += uint64(len(p))
	return c.w.Write(p)
}
