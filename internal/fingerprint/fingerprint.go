// Package fingerprint computes content digests for tracked files.
package fingerprint

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ChunkSize is the read size used while hashing. Memory use is bounded by it
// regardless of file size.
const ChunkSize = 4096

// Reader consumes r to EOF in ChunkSize reads and returns the hex SHA-512
// of every byte read, in order.
func Reader(r io.Reader) (string, error) {
	h := sha512.New()
	buf := make([]byte, ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading content: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File opens path and returns its digest.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	digest, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return digest, nil
}
