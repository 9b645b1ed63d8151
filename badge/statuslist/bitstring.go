// Package statuslist maintains the per-issuer compact revocation bitstring and
// its signed wrapping credential, one bit per issued credential in allocation
// order.
package statuslist

import (
	"fmt"

	"github.com/openbadgeworks/go-openbadge-sdk/badge/common/util"
)

const (
	bitsPerByte = 8
	bitOffset   = 7

	// minBitStringSize is the minimum list length in bits. Publishing lists no
	// smaller than this keeps individual credentials from being correlated to
	// a short, sparsely populated list.
	minBitStringSize = 131072
)

// BitString is a growable bit array addressed by status list index. Bits are
// set left-to-right within a byte (index 0 is the most significant bit of
// byte 0).
type BitString struct {
	bits []byte
}

// NewBitString returns a zeroed bitstring holding at least length bits.
func NewBitString(length int) *BitString {
	if length < minBitStringSize {
		length = minBitStringSize
	}

	size := 1 + ((length - 1) / bitsPerByte)
	return &BitString{bits: make([]byte, size)}
}

// DecodeBits decodes a multibase-encoded, gzip-compressed bitstring.
func DecodeBits(encoded string) (*BitString, error) {
	bits, err := util.DecompressFromMultibase(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bitstring: %w", err)
	}

	return &BitString{bits: bits}, nil
}

// Set sets or clears the bit at position, growing the array as needed.
func (b *BitString) Set(position int, value bool) error {
	if position < 0 {
		return fmt.Errorf("position is invalid")
	}

	nByte := position / bitsPerByte
	if nByte > len(b.bits)-1 {
		grown := make([]byte, nByte+1)
		copy(grown, b.bits)
		b.bits = grown
	}

	mask := byte(1) << (bitOffset - position%bitsPerByte)
	if value {
		b.bits[nByte] |= mask
	} else {
		b.bits[nByte] &^= mask
	}

	return nil
}

// Get reads the bit at position. Positions past the end of the array read as
// unset: the list may have grown since it was last encoded, and new indices
// default to unrevoked.
func (b *BitString) Get(position int) (bool, error) {
	if position < 0 {
		return false, fmt.Errorf("position is invalid")
	}

	nByte := position / bitsPerByte
	if nByte > len(b.bits)-1 {
		return false, nil
	}

	mask := byte(1) << (bitOffset - position%bitsPerByte)
	return b.bits[nByte]&mask != 0, nil
}

// EncodeBits gzip-compresses the bit array and encodes it as a multibase
// base64url string for the wrapping credential's encodedList.
func (b *BitString) EncodeBits() (string, error) {
	return util.CompressToMultibase(b.bits)
}
