package fingerprint

import (
	"bytes"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func sha512Hex(data []byte) string {
	sum := sha512.Sum512(data)
	return hex.EncodeToString(sum[:])
}

// chunkRecorder records the size of each Read call it serves.
type chunkRecorder struct {
	r     io.Reader
	sizes []int
}

func (c *chunkRecorder) Read(p []byte) (int, error) {
	c.sizes = append(c.sizes, len(p))
	return c.r.Read(p)
}

type failingReader struct {
	served bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.served {
		f.served = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("permission denied")
}

func TestReader(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "hello", data: []byte("hello")},
		{name: "exactly one chunk", data: bytes.Repeat([]byte("a"), ChunkSize)},
		{name: "spans chunks", data: bytes.Repeat([]byte("0123456789"), 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reader(bytes.NewReader(tt.data))
			if err != nil {
				t.Fatalf("Reader() error = %v", err)
			}
			if want := sha512Hex(tt.data); got != want {
				t.Errorf("Reader() = %s, want %s", got, want)
			}
		})
	}
}

func TestReader_KnownDigest(t *testing.T) {
	got, err := Reader(bytes.NewReader([]byte("hello")))
	if err != nil {
		t.Fatalf("Reader() error = %v", err)
	}
	want := "9b71d224bd62f3785d96d46ad3ea3d73319bfbc2890caadae2dff72519673ca72323c3d99ba5c11d7c7acc6e14b8c5da0c4663475c2e5c3adef46f73bcdec043"
	if got != want {
		t.Errorf("Reader(hello) = %s, want %s", got, want)
	}
}

func TestReader_ReadsInFixedChunks(t *testing.T) {
	rec := &chunkRecorder{r: bytes.NewReader(bytes.Repeat([]byte("x"), 3*ChunkSize+10))}
	if _, err := Reader(rec); err != nil {
		t.Fatalf("Reader() error = %v", err)
	}
	for i, n := range rec.sizes {
		if n != ChunkSize {
			t.Errorf("read %d requested %d bytes, want %d", i, n, ChunkSize)
		}
	}
}

func TestReader_PropagatesReadError(t *testing.T) {
	_, err := Reader(&failingReader{})
	if err == nil {
		t.Fatal("Reader() expected error, got nil")
	}
}

func TestFile(t *testing.T) {
	t.Run("hashes file content", func(t *testing.T) {
		dir := t.TempDir()
		p := filepath.Join(dir, "a.txt")
		if err := os.WriteFile(p, []byte("goodbye"), 0644); err != nil {
			t.Fatal(err)
		}

		got, err := File(p)
		if err != nil {
			t.Fatalf("File() error = %v", err)
		}
		if want := sha512Hex([]byte("goodbye")); got != want {
			t.Errorf("File() = %s, want %s", got, want)
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := File(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("File() error = %v, want os.ErrNotExist", err)
		}
	})
}
