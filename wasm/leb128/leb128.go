// Package leb128 decodes the variable-length integers used throughout the
// WebAssembly binary format.
//
// See https://www.w3.org/TR/wasm-core-1/#binary-int
package leb128

import (
	"errors"
)

var (
	// ErrOverflow is returned when an encoded value does not fit the target type.
	ErrOverflow = errors.New("leb128: value overflows target type")
	// ErrTruncated is returned when the input ends before the terminal byte.
	ErrTruncated = errors.New("leb128: truncated encoding")
)

// DecodeUint32 reads an unsigned 32-bit integer from the beginning of b,
// returning the value and the number of bytes consumed.
func DecodeUint32(b []byte) (ret uint32, n int, err error) {
	for shift := 0; shift < 35; shift += 7 {
		if n == len(b) {
			return 0, 0, ErrTruncated
		}
		c := b[n]
		n++
		ret |= uint32(c&0x7f) << shift
		if c&0x80 == 0 {
			if shift == 28 && c > 0x0f {
				return 0, 0, ErrOverflow
			}
			return ret, n, nil
		}
	}
	return 0, 0, ErrOverflow
}

// DecodeInt32 reads a signed 32-bit integer from the beginning of b,
// returning the value and the number of bytes consumed.
func DecodeInt32(b []byte) (ret int32, n int, err error) {
	var shift int
	var c byte
	for {
		if n == len(b) {
			return 0, 0, ErrTruncated
		}
		c = b[n]
		n++
		ret |= int32(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			break
		}
		if shift == 35 {
			return 0, 0, ErrOverflow
		}
	}
	if shift == 35 {
		// The final byte's bits beyond the value width must replicate the
		// sign bit, otherwise the encoding does not fit int32.
		if m := c & 0x78; m != 0 && m != 0x78 {
			return 0, 0, ErrOverflow
		}
	}
	// Sign-extend when the sign bit of the final group is set.
	if shift < 32 && c&0x40 != 0 {
		ret |= ^0 << shift
	}
	return ret, n, nil
}

// DecodeInt64 reads a signed 64-bit integer from the beginning of b,
// returning the value and the number of bytes consumed.
func DecodeInt64(b []byte) (ret int64, n int, err error) {
	var shift int
	var c byte
	for {
		if n == len(b) {
			return 0, 0, ErrTruncated
		}
		c = b[n]
		n++
		ret |= int64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			break
		}
		if shift == 70 {
			return 0, 0, ErrOverflow
		}
	}
	if shift == 70 {
		// Same final-byte check as DecodeInt32: only bit 0 carries value
		// here, so all seven low bits must agree.
		if m := c & 0x7f; m != 0 && m != 0x7f {
			return 0, 0, ErrOverflow
		}
	}
	if shift < 64 && c&0x40 != 0 {
		ret |= ^0 << shift
	}
	return ret, n, nil
}
