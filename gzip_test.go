package pmflate

import (
	"bytes"
	"io"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	input := []byte("the quick brown fox jumps over the lazy dog, repeatedly, " +
		"so the Huffman tables actually have something skewed to chew on")

	var compressed bytes.Buffer
	if err := Compress(&compressed, bytes.NewReader(input), "sample.txt"); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	var decompressed bytes.Buffer
	if err := Decompress(&decompressed, bytes.NewReader(compressed.Bytes())); err != nil {
		t.Fatalf("Decompress: %v", err)
	}

	if !bytes.Equal(decompressed.Bytes(), input) {
		t.Fatalf("round trip mismatch: got %q, want %q", decompressed.Bytes(), input)
	}
}

func TestCompressDecompressEmptyInput(t *testing.T) {
	var compressed bytes.Buffer
	if err := Compress(&compressed, bytes.NewReader(nil), ""); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	var decompressed bytes.Buffer
	if err := Decompress(&decompressed, bytes.NewReader(compressed.Bytes())); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if decompressed.Len() != 0 {
		t.Fatalf("expected empty output, got %d bytes", decompressed.Len())
	}
}

func TestDecompressRejectsBadMagic(t *testing.T) {
	var out bytes.Buffer
	err := Decompress(&out, bytes.NewReader([]byte("not a gzip file at all")))
	if err != ErrBadMagic {
		t.Fatalf("got %v, want ErrBadMagic", err)
	}
}

func TestDecompressDetectsCorruptedPayload(t *testing.T) {
	var compressed bytes.Buffer
	if err := Compress(&compressed, bytes.NewReader([]byte("hello, world")), ""); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	corrupted := append([]byte(nil), compressed.Bytes()...)
	// Flip a byte square in the middle of the DEFLATE payload.
	corrupted[len(corrupted)/2] ^= 0xFF

	var out bytes.Buffer
	err := Decompress(&out, bytes.NewReader(corrupted))
	if err == nil {
		t.Fatal("expected an error decoding a corrupted payload")
	}
}

func TestStreamingWriterReaderRoundTrip(t *testing.T) {
	input := bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyz"), 1000)

	var compressed bytes.Buffer
	gw, err := NewWriter(&compressed, "data.bin")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < len(input); i += 777 {
		end := i + 777
		if end > len(input) {
			end = len(input)
		}
		if _, err := gw.Write(input[i:end]); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	gr, err := NewReader(bytes.NewReader(compressed.Bytes()), nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	var out bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := gr.Read(buf)
		out.Write(buf[:n])
		if err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("Read: %v", err)
		}
	}

	if !bytes.Equal(out.Bytes(), input) {
		t.Fatalf("streaming round trip mismatch: got %d bytes, want %d bytes", out.Len(), len(input))
	}
}

func TestStreamingReaderRejectsTrailerMismatch(t *testing.T) {
	var compressed bytes.Buffer
	gw, err := NewWriter(&compressed, "")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := gw.Write([]byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	corrupted := compressed.Bytes()
	// The trailer is the last 8 bytes (CRC-32, then ISIZE); flip every bit
	// of the last byte, the top byte of ISIZE.
	corrupted[len(corrupted)-1] ^= 0xFF

	gr, err := NewReader(bytes.NewReader(corrupted), nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	buf := make([]byte, 64)
	var readErr error
	for {
		_, err := gr.Read(buf)
		if err != nil {
			readErr = err
			break
		}
	}
	if readErr != ErrSizeMismatch && readErr != ErrCRCMismatch {
		t.Fatalf("got %v, want ErrSizeMismatch or ErrCRCMismatch", readErr)
	}
}
