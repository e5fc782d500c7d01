// Package deflate implements the restricted dynamic-Huffman-only subset of
// RFC 1951 this module supports: literal bytes plus an end-of-block
// symbol, no LZ77 back-references, no stored or static-Huffman blocks.
package deflate

import (
	"errors"
	"fmt"
	"io"

	"github.com/pschultz/pmflate/internal/bitio"
	"github.com/pschultz/pmflate/internal/huffman"
)

const (
	numLiteralSymbols  = 286
	numLengthSymbols   = 19
	numDistanceSymbols = 30
	eob                = 256

	maxCodeLength       = 15
	maxLengthCodeLength = 7
	codeLengthBits      = 3

	repeatPrev3to6        = 16
	repeatPrev3to6Bits    = 2
	repeatZero3to10       = 17
	repeatZero3to10Bits   = 3
	repeatZero11to138     = 18
	repeatZero11to138Bits = 7

	// DefaultBlockSize is the number of input bytes per block absent an
	// explicit override.
	DefaultBlockSize = 16384
)

var lengthOrder = [numLengthSymbols]int{
	16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15,
}

var (
	// ErrMalformedHeader covers a bad BTYPE, an invalid RLE symbol, an RLE
	// run that would overflow the declared HLIT/HDIST counts, or a
	// code-length table that fails to round-trip through a tree.
	ErrMalformedHeader = errors.New("deflate: malformed block header")

	// ErrUnsupportedSymbol is returned when the literal tree decodes a
	// length code (257-285) — this implementation never emits matches and
	// cannot decode them either.
	ErrUnsupportedSymbol = errors.New("deflate: length/distance codes are not supported")
)

// block is per-block encoder scratch state: the literal stream plus the
// frequency tables used to build that block's Huffman codes. It is reused
// (not reallocated) across blocks.
type block struct {
	symbols       []uint16
	literalFreqs  [numLiteralSymbols]uint32
	distanceFreqs [numDistanceSymbols]uint32
}

func (b *block) reset() {
	b.symbols = b.symbols[:0]
	for i := range b.literalFreqs {
		b.literalFreqs[i] = 0
	}
	for i := range b.distanceFreqs {
		b.distanceFreqs[i] = 0
	}
	b.literalFreqs[eob] = 1
}

// fill reads up to blockSize bytes from r into the block, recording each
// byte as a literal symbol and tallying its frequency.
func (b *block) fill(r io.Reader, blockSize int) error {
	b.reset()

	var buf [256]byte
	total := 0
	for total < blockSize {
		toRead := len(buf)
		if rem := blockSize - total; rem < toRead {
			toRead = rem
		}

		n, err := r.Read(buf[:toRead])
		for _, by := range buf[:n] {
			b.symbols = append(b.symbols, uint16(by))
			b.literalFreqs[by]++
		}
		total += n

		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// isEndOfInput probes one byte ahead of r, seeking back if one was read,
// to decide whether the block just filled is the last one.
func isEndOfInput(r io.ReadSeeker) (bool, error) {
	var buf [1]byte
	n, err := r.Read(buf[:])
	if n == 1 {
		if _, serr := r.Seek(-1, io.SeekCurrent); serr != nil {
			return false, serr
		}
		return false, nil
	}
	if err != nil && err != io.EOF {
		return false, err
	}
	return true, nil
}

// huffmanTableRLESymbols walks the first numCodes entries of table and
// produces the code-length-alphabet symbol stream that serializes their
// lengths, per RFC 1951's run-length rules, tallying lengthsFreqs as it
// goes.
func huffmanTableRLESymbols(table huffman.Table, numCodes int, lengthsFreqs *[numLengthSymbols]uint32) []uint16 {
	var symbols []uint16

	i := 0
	for i < numCodes {
		length := table[i].Length

		j := i + 1
		for j < numCodes && table[j].Length == length {
			j++
		}
		run := j - i

		if length == 0 && run >= 3 {
			if run <= 10 {
				lengthsFreqs[repeatZero3to10]++
				run = min(run, 10)
				symbols = append(symbols, repeatZero3to10, uint16(run-3))
			} else {
				lengthsFreqs[repeatZero11to138]++
				run = min(run, 138)
				symbols = append(symbols, repeatZero11to138, uint16(run-11))
			}
		} else {
			lengthsFreqs[length]++
			symbols = append(symbols, uint16(length))

			if run >= 4 {
				lengthsFreqs[repeatPrev3to6]++
				run = min(run, 7)
				symbols = append(symbols, repeatPrev3to6, uint16(run-4))
			} else {
				run = 1
			}
		}

		i += run
	}

	return symbols
}

func writeHuffmanLengthSymbols(bw *bitio.Writer, symbols []uint16, lengthTable huffman.Table) {
	i := 0
	for i < len(symbols) {
		sym := symbols[i]
		code := lengthTable.Code(int(sym))
		bw.WriteBits(uint64(code.Code), int(code.Length))

		switch sym {
		case repeatPrev3to6:
			i++
			bw.WriteBits(uint64(symbols[i]), repeatPrev3to6Bits)
		case repeatZero3to10:
			i++
			bw.WriteBits(uint64(symbols[i]), repeatZero3to10Bits)
		case repeatZero11to138:
			i++
			bw.WriteBits(uint64(symbols[i]), repeatZero11to138Bits)
		}
		i++
	}
}

const (
	numLiteralCodes  = eob + 1 // 257; HLIT is always this constant, no matches are ever emitted
	numDistanceCodes = 1       // HDIST is always this constant: one declared, unused, zero-length code
)

func writeHeader(bw *bitio.Writer, literalTable, distanceTable huffman.Table) error {
	bw.WriteBits(uint64(numLiteralCodes-257), 5)
	bw.WriteBits(uint64(numDistanceCodes-1), 5)

	var lengthsFreqs [numLengthSymbols]uint32
	litSymbols := huffmanTableRLESymbols(literalTable, numLiteralCodes, &lengthsFreqs)
	distSymbols := huffmanTableRLESymbols(distanceTable, numDistanceCodes, &lengthsFreqs)

	numCodeLengthCodes := 4
	for i := numLengthSymbols - 1; i >= 4; i-- {
		if lengthsFreqs[lengthOrder[i]] != 0 {
			numCodeLengthCodes = i + 1
			break
		}
	}
	bw.WriteBits(uint64(numCodeLengthCodes-4), 4)

	lengthTable, err := huffman.BuildLengthLimited(lengthsFreqs[:], maxLengthCodeLength)
	if err != nil {
		return err
	}

	for idx := 0; idx < numCodeLengthCodes; idx++ {
		bw.WriteBits(uint64(lengthTable.Code(lengthOrder[idx]).Length), codeLengthBits)
	}

	writeHuffmanLengthSymbols(bw, litSymbols, lengthTable)
	writeHuffmanLengthSymbols(bw, distSymbols, lengthTable)

	return bw.Err()
}

// loadBytes resets the block and records data as its literal stream,
// for callers (the push-model Writer) that already hold the block's
// bytes in memory rather than pulling them from a Reader.
func (b *block) loadBytes(data []byte) {
	b.reset()
	for _, by := range data {
		b.symbols = append(b.symbols, uint16(by))
		b.literalFreqs[by]++
	}
}

// encodeBlockCore writes one dynamic-Huffman block for the symbols
// already loaded into b, with the given BFINAL bit.
func encodeBlockCore(bw *bitio.Writer, b *block, bfinal bool) error {
	literalTable, err := huffman.BuildLengthLimited(b.literalFreqs[:], maxCodeLength)
	if err != nil {
		return err
	}
	distanceTable, err := huffman.BuildLengthLimited(b.distanceFreqs[:], maxCodeLength)
	if err != nil {
		return err
	}

	var bfinalBit uint64
	if bfinal {
		bfinalBit = 1
	}
	bw.WriteBits(bfinalBit|0b100, 3) // BFINAL then BTYPE=10

	if err := writeHeader(bw, literalTable, distanceTable); err != nil {
		return err
	}

	for _, sym := range b.symbols {
		code := literalTable.Code(int(sym))
		bw.WriteBits(uint64(code.Code), int(code.Length))
	}
	eobCode := literalTable.Code(eob)
	bw.WriteBits(uint64(eobCode.Code), int(eobCode.Length))

	return bw.Err()
}

func encodeBlock(bw *bitio.Writer, r io.ReadSeeker, b *block, blockSize int) (bool, error) {
	if err := b.fill(r, blockSize); err != nil {
		return false, err
	}

	bfinal, err := isEndOfInput(r)
	if err != nil {
		return false, err
	}

	if err := encodeBlockCore(bw, b, bfinal); err != nil {
		return false, err
	}
	return bfinal, nil
}

// readHeader decodes HLIT/HDIST/HCLEN, the code-length table, and the
// lit/len and distance length vectors, returning the canonical literal
// table built from them. Distance lengths are validated for RLE-overflow
// but otherwise discarded: no distance code ever appears in the payload.
func readHeader(br *bitio.Reader, trace io.Writer) (huffman.Table, error) {
	hlit := int(br.ReadBits(5)) + 257
	hdist := int(br.ReadBits(5)) + 1
	hclen := int(br.ReadBits(4)) + 4
	if err := br.Err(); err != nil {
		return nil, err
	}

	var clen [numLengthSymbols]byte
	for i := 0; i < hclen; i++ {
		clen[lengthOrder[i]] = byte(br.ReadBits(codeLengthBits))
	}
	if err := br.Err(); err != nil {
		return nil, err
	}

	lengthTable, err := huffman.FromLengths(clen[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	lengthTree := huffman.From(lengthTable)
	if lengthTree.Empty() {
		return nil, ErrMalformedHeader
	}

	total := hlit + hdist
	lengths := make([]byte, total)

	idx := 0
	for idx < total {
		w := lengthTree.NewWalker()
		for !lengthTree.IsLeaf(w) {
			bit := br.ReadBits(1) != 0
			var err error
			w, err = lengthTree.Walk(w, bit)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
			}
		}
		if err := br.Err(); err != nil {
			return nil, err
		}
		sym := w.Symbol()

		switch {
		case sym <= 15:
			lengths[idx] = byte(sym)
			idx++

		case sym == repeatPrev3to6:
			// RFC 1951 treats the HLIT and HDIST lengths as a single
			// combined sequence here, so a repeat is free to cross the
			// boundary between them.
			n := int(br.ReadBits(repeatPrev3to6Bits)) + 3
			if idx == 0 || idx+n > total {
				return nil, ErrMalformedHeader
			}
			prev := lengths[idx-1]
			for k := 0; k < n; k++ {
				lengths[idx+k] = prev
			}
			idx += n

		case sym == repeatZero3to10:
			n := int(br.ReadBits(repeatZero3to10Bits)) + 3
			if idx+n > total {
				return nil, ErrMalformedHeader
			}
			idx += n

		case sym == repeatZero11to138:
			n := int(br.ReadBits(repeatZero11to138Bits)) + 11
			if idx+n > total {
				return nil, ErrMalformedHeader
			}
			idx += n

		default:
			return nil, ErrMalformedHeader
		}

		if err := br.Err(); err != nil {
			return nil, err
		}
	}

	literalTable, err := huffman.FromLengths(lengths[:hlit])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	if trace != nil {
		fmt.Fprintf(trace, "block header: hlit=%d hdist=%d hclen=%d\n", hlit, hdist, hclen)
	}

	return literalTable, nil
}

func decodeBlock(br *bitio.Reader, w io.Writer, trace io.Writer) (bool, error) {
	bfinalBit := br.ReadBits(1)
	btype := br.ReadBits(2)
	if err := br.Err(); err != nil {
		return false, err
	}
	if btype != 0b10 {
		return false, ErrMalformedHeader
	}

	literalTable, err := readHeader(br, trace)
	if err != nil {
		return false, err
	}
	tree := huffman.From(literalTable)
	if tree.Empty() {
		return false, ErrMalformedHeader
	}

	decoded := 0
	for {
		walker := tree.NewWalker()
		for !tree.IsLeaf(walker) {
			bit := br.ReadBits(1) != 0
			walker, err = tree.Walk(walker, bit)
			if err != nil {
				return false, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
			}
		}
		if err := br.Err(); err != nil {
			return false, err
		}

		symbol := walker.Symbol()
		if symbol == eob {
			break
		}
		if symbol > eob {
			return false, ErrUnsupportedSymbol
		}
		if _, err := w.Write([]byte{byte(symbol)}); err != nil {
			return false, err
		}
		decoded++
	}

	if trace != nil {
		fmt.Fprintf(trace, "block payload: %d literal bytes, bfinal=%v\n", decoded, bfinalBit != 0)
	}

	return bfinalBit != 0, nil
}
