// Package canonical produces the deterministic byte serialization that signing
// and verification share. Two structurally equal documents always canonicalize
// to byte-identical output, regardless of map insertion order.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/exp/maps"
)

// Canonicalize serializes a JSON document with recursively sorted object keys
// and a single scalar encoding path. Callers strip the top-level proof before
// canonicalizing; CanonicalizeWithoutProof does both in one step.
func Canonicalize(doc map[string]interface{}) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("failed to canonicalize document: document is nil")
	}

	var buf bytes.Buffer
	if err := writeValue(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to canonicalize document: %w", err)
	}

	return buf.Bytes(), nil
}

// CanonicalizeWithoutProof canonicalizes the document with any top-level proof
// property removed. The proof is computed over everything else.
func CanonicalizeWithoutProof(doc map[string]interface{}) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("failed to canonicalize document: document is nil")
	}

	docCopy := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if k != "proof" {
			docCopy[k] = v
		}
	}

	return Canonicalize(docCopy)
}

// Digest computes the SHA-256 digest of the canonical bytes.
func Digest(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}

func writeValue(buf *bytes.Buffer, value interface{}) error {
	switch v := value.(type) {
	case map[string]interface{}:
		return writeObject(buf, v)
	case []interface{}:
		return writeArray(buf, v)
	case []string:
		arr := make([]interface{}, len(v))
		for i, s := range v {
			arr[i] = s
		}
		return writeArray(buf, arr)
	case []map[string]interface{}:
		arr := make([]interface{}, len(v))
		for i, m := range v {
			arr[i] = m
		}
		return writeArray(buf, arr)
	default:
		return writeScalar(buf, v)
	}
}

func writeObject(buf *bytes.Buffer, obj map[string]interface{}) error {
	keys := maps.Keys(obj)
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeScalar(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValue(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')

	return nil
}

func writeArray(buf *bytes.Buffer, arr []interface{}) error {
	buf.WriteByte('[')
	for i, v := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte(']')

	return nil
}

// writeScalar routes every scalar through one encoder so numbers and strings
// have a single fixed rendering on both the signing and verifying side.
func writeScalar(buf *bytes.Buffer, v interface{}) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode scalar %T: %w", v, err)
	}
	// Encode terminates the stream with a newline; the canonical form has none.
	buf.Truncate(buf.Len() - 1)

	return nil
}
