package netstring

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	ErrSyntax     = errors.New("netstring: malformed netstring")
	ErrOverflow   = errors.New("netstring: length overflows uint64")
	ErrIncomplete = errors.New("netstring: payload shorter than declared length")
)

// LengthError reports a declared length the caller's accept function
// refused. The value is the parsed length.
type LengthError uint64

func (e LengthError) Error() string {
	return fmt.Sprintf("netstring: declared length %d rejected", uint64(e))
}

// Decode reads one netstring from r and appends its payload to buf.
//
// The declared length is scanned first, one byte at a time. accept is then
// called exactly once with the result; false stops the decode before any
// payload byte is read, returning a LengthError and leaving r positioned
// just past the ':'. Otherwise exactly length payload bytes are appended
// to buf, the trailing ',' is consumed, and the length is returned with r
// positioned on the byte after the comma. Decode holds no state between
// calls, so back-to-back records decode by calling it repeatedly on the
// same reader.
//
// buf is never truncated; prior content stays in place. On ErrIncomplete
// the payload bytes that did arrive remain appended.
//
// ErrSyntax covers a non-digit in the length and a missing comma,
// ErrOverflow a length that exceeds uint64. Any other failure is the
// stream's own error wrapped for context, including io.EOF when the
// stream ends mid-record.
func Decode(r io.Reader, accept func(length uint64) bool, buf *bytes.Buffer) (uint64, error) {
	length, err := decodeLen(r)
	if err != nil {
		return 0, err
	}
	if !accept(length) {
		return 0, LengthError(length)
	}

	for remain := length; remain > 0; {
		chunk := uint64(math.MaxInt64)
		if remain < chunk {
			chunk = remain
		}
		if _, err := io.CopyN(buf, r, int64(chunk)); err != nil {
			if errors.Is(err, io.EOF) {
				return 0, ErrIncomplete
			}
			return 0, fmt.Errorf("netstring: reading payload: %w", err)
		}
		remain -= chunk
	}

	var term [1]byte
	if _, err := io.ReadFull(r, term[:]); err != nil {
		return 0, fmt.Errorf("netstring: reading terminator: %w", err)
	}
	if term[0] != ',' {
		return 0, ErrSyntax
	}
	return length, nil
}

// decodeLen consumes digits up to and including the ':' separator. A zero
// digit run is legal and yields length 0. The overflow check runs before
// each accumulate so a too-large length fails on the offending digit
// without reading further.
func decodeLen(r io.Reader) (uint64, error) {
	var n uint64
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, fmt.Errorf("netstring: reading length: %w", err)
		}
		switch c := b[0]; {
		case c >= '0' && c <= '9':
			digit := uint64(c - '0')
			if n > (math.MaxUint64-digit)/10 {
				return 0, ErrOverflow
			}
			n = n*10 + digit
		case c == ':':
			return n, nil
		default:
			return 0, ErrSyntax
		}
	}
}
