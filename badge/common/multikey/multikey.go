// Package multikey encodes and decodes public keys and signatures in the
// self-describing multibase form used inside credential documents. Public keys
// carry a multicodec prefix identifying the key type; base58btc is the
// canonical textual encoding for both keys and signatures.
package multikey

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/multiformats/go-multibase"
)

// Multicodec prefixes (varint-encoded) for the supported key types.
var (
	ed25519PubPrefix   = []byte{0xed, 0x01}
	secp256k1PubPrefix = []byte{0xe7, 0x01}
)

// EncodeEd25519PublicKey encodes an Ed25519 public key as a base58btc multikey.
func EncodeEd25519PublicKey(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("invalid ed25519 public key length: %d", len(pub))
	}

	return multibase.Encode(multibase.Base58BTC, append(append([]byte{}, ed25519PubPrefix...), pub...))
}

// DecodeEd25519PublicKey decodes a base58btc multikey into an Ed25519 public key.
func DecodeEd25519PublicKey(encoded string) (ed25519.PublicKey, error) {
	encoding, data, err := multibase.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode multikey: %w", err)
	}
	if encoding != multibase.Base58BTC {
		return nil, fmt.Errorf("unexpected multibase encoding: %c", encoding)
	}
	if !bytes.HasPrefix(data, ed25519PubPrefix) {
		return nil, fmt.Errorf("multikey is not an ed25519 public key")
	}

	keyBytes := data[len(ed25519PubPrefix):]
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 public key length: %d", len(keyBytes))
	}

	return ed25519.PublicKey(keyBytes), nil
}

// EncodeSecp256k1PublicKey encodes a 33-byte compressed secp256k1 public key
// as a base58btc multikey.
func EncodeSecp256k1PublicKey(compressed []byte) (string, error) {
	if len(compressed) != 33 {
		return "", fmt.Errorf("invalid compressed secp256k1 public key length: %d", len(compressed))
	}

	return multibase.Encode(multibase.Base58BTC, append(append([]byte{}, secp256k1PubPrefix...), compressed...))
}

// DecodeSecp256k1PublicKey decodes a base58btc multikey into a 33-byte
// compressed secp256k1 public key.
func DecodeSecp256k1PublicKey(encoded string) ([]byte, error) {
	encoding, data, err := multibase.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode multikey: %w", err)
	}
	if encoding != multibase.Base58BTC {
		return nil, fmt.Errorf("unexpected multibase encoding: %c", encoding)
	}
	if !bytes.HasPrefix(data, secp256k1PubPrefix) {
		return nil, fmt.Errorf("multikey is not a secp256k1 public key")
	}

	keyBytes := data[len(secp256k1PubPrefix):]
	if len(keyBytes) != 33 {
		return nil, fmt.Errorf("invalid compressed secp256k1 public key length: %d", len(keyBytes))
	}

	return keyBytes, nil
}

// EncodeSignature encodes a raw signature in the same multibase scheme as the
// keys (base58btc), for use as a proofValue.
func EncodeSignature(sig []byte) (string, error) {
	if len(sig) == 0 {
		return "", fmt.Errorf("signature is empty")
	}

	return multibase.Encode(multibase.Base58BTC, sig)
}

// DecodeSignature decodes a multibase base58btc proofValue into raw bytes.
func DecodeSignature(encoded string) ([]byte, error) {
	encoding, data, err := multibase.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	if encoding != multibase.Base58BTC {
		return nil, fmt.Errorf("unexpected multibase encoding: %c", encoding)
	}

	return data, nil
}
