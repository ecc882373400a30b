package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"integrity-go/internal/integrity"
)

// plaintextHeader marks a snapshot stored without encryption, so a snapshot
// fetched under the wrong encryption mode fails loudly instead of yielding garbage.
var plaintextHeader = []byte("INTGSNP\x00")

// ErrNotPlaintext is returned when decrypting data that lacks the plaintext marker.
var ErrNotPlaintext = errors.New("snapshot was not stored in plaintext")

// PlaintextEncryptor implements integrity.Encryptor for encryption type "none".
// It prepends a fixed 8-byte marker and strips it again on decryption.
type PlaintextEncryptor struct{}

var _ integrity.Encryptor = (*PlaintextEncryptor)(nil)

// NewPlaintextEncryptor creates a new PlaintextEncryptor.
func NewPlaintextEncryptor() *PlaintextEncryptor {
	return &PlaintextEncryptor{}
}

// Setup is a no-op: there are no keys.
func (e *PlaintextEncryptor) Setup(string) error {
	return nil
}

func (e *PlaintextEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(plaintextHeader); err != nil {
		return fmt.Errorf("writing snapshot header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

// Unlock ignores the passphrase.
func (e *PlaintextEncryptor) Unlock(string) (integrity.DecryptionContext, error) {
	return &PlaintextDecryptionContext{}, nil
}

func (e *PlaintextEncryptor) IsConfigured() bool {
	return true
}

// PlaintextDecryptionContext strips the marker added by PlaintextEncryptor.
type PlaintextDecryptionContext struct{}

var _ integrity.DecryptionContext = (*PlaintextDecryptionContext)(nil)

func (c *PlaintextDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(plaintextHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading snapshot header: %w", err)
	}
	if !bytes.Equal(header, plaintextHeader) {
		return ErrNotPlaintext
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
