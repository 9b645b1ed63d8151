package util

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/multiformats/go-multibase"
)

// Compress gzip-compresses data.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)

	_, err := gz.Write(data)
	if err != nil {
		return nil, err
	}

	err = gz.Close()
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decompress gzip-decompresses data.
func Decompress(data []byte) ([]byte, error) {
	buf := bytes.NewBuffer(data)

	gz, err := gzip.NewReader(buf)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// CompressToMultibase gzip-compresses data and encodes it as a self-describing
// multibase base64url string, the encoding used by status list encodedList values.
func CompressToMultibase(data []byte) (string, error) {
	compressed, err := Compress(data)
	if err != nil {
		return "", err
	}

	return multibase.Encode(multibase.Base64url, compressed)
}

// DecompressFromMultibase decodes a multibase base64url string and
// gzip-decompresses the result.
func DecompressFromMultibase(data string) ([]byte, error) {
	encoding, compressed, err := multibase.Decode(data)
	if err != nil {
		return nil, err
	}
	if encoding != multibase.Base64url {
		return nil, fmt.Errorf("encoding not supported: %c", encoding)
	}

	return Decompress(compressed)
}
