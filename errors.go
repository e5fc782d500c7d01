package pmflate

import "errors"

var (
	// ErrBadMagic is returned when the input does not start with the
	// gzip ID1/ID2 magic bytes or declares a compression method other
	// than DEFLATE (CM=8).
	ErrBadMagic = errors.New("pmflate: not a gzip stream (bad magic or compression method)")

	// ErrCRCMismatch is returned when the trailing CRC-32 does not match
	// the CRC-32 of the bytes actually decoded.
	ErrCRCMismatch = errors.New("pmflate: CRC-32 mismatch")

	// ErrSizeMismatch is returned when the trailing ISIZE does not match
	// the number of bytes actually decoded, modulo 2^32.
	ErrSizeMismatch = errors.New("pmflate: ISIZE mismatch")
)
