package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"integrity-go/internal/config"
	"integrity-go/internal/integrity"
)

// ErrKeysExist is returned by Setup when a key pair is already on disk.
// Replacing it would orphan every snapshot encrypted to the old key.
var ErrKeysExist = errors.New("encryption keys already exist")

// AgeEncryptor implements integrity.Encryptor using filippo.io/age with X25519 keys.
// Snapshots are encrypted to the plaintext public key, so scans never need the
// passphrase. The private key is stored under age's scrypt passphrase encryption.
type AgeEncryptor struct {
	publicKeyPath  string
	privateKeyPath string
}

var _ integrity.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates a new AgeEncryptor from configuration.
func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
}

// Setup generates a key pair and writes both halves. It refuses to replace
// an existing pair.
func (e *AgeEncryptor) Setup(passphrase string) error {
	if passphrase == "" {
		return errors.New("passphrase must not be empty")
	}
	if e.publicKeyPath == "" || e.privateKeyPath == "" {
		return errors.New("public_key_path and private_key_path are required")
	}
	for _, p := range []string{e.publicKeyPath, e.privateKeyPath} {
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("%s: %w", p, ErrKeysExist)
		}
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	for _, dir := range []string{filepath.Dir(e.publicKeyPath), filepath.Dir(e.privateKeyPath)} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}

	if err := e.writePrivateKey(identity, passphrase); err != nil {
		return err
	}
	// The public key goes last: IsConfigured needs both files.
	if err := os.WriteFile(e.publicKeyPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

func (e *AgeEncryptor) writePrivateKey(identity *age.X25519Identity, passphrase string) error {
	f, err := os.OpenFile(e.privateKeyPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating private key file: %w", err)
	}
	defer f.Close()

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	w, err := age.Encrypt(f, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return fmt.Errorf("writing encrypted private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted private key: %w", err)
	}
	return nil
}

// Encrypt streams r through age to w using the stored public key.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	recipient, err := e.loadRecipient()
	if err != nil {
		return fmt.Errorf("loading public key: %w", err)
	}

	encWriter, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Unlock decrypts the private key with passphrase.
func (e *AgeEncryptor) Unlock(passphrase string) (integrity.DecryptionContext, error) {
	privData, err := os.ReadFile(e.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key file: %w", err)
	}

	scryptIdentity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	decReader, err := age.Decrypt(bytes.NewReader(privData), scryptIdentity)
	if err != nil {
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}

	identities, err := age.ParseIdentities(decReader)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if len(identities) == 0 {
		return nil, errors.New("no identities found in private key")
	}

	return &AgeDecryptionContext{identity: identities[0]}, nil
}

// IsConfigured returns true if both key files exist.
func (e *AgeEncryptor) IsConfigured() bool {
	for _, p := range []string{e.publicKeyPath, e.privateKeyPath} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

func (e *AgeEncryptor) loadRecipient() (age.Recipient, error) {
	pubData, err := os.ReadFile(e.publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}

	recipients, err := age.ParseRecipients(bytes.NewReader(pubData))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	if len(recipients) == 0 {
		return nil, errors.New("no recipients found in public key file")
	}
	return recipients[0], nil
}

// AgeDecryptionContext holds an unlocked age identity for decrypting snapshots.
type AgeDecryptionContext struct {
	identity age.Identity
}

var _ integrity.DecryptionContext = (*AgeDecryptionContext)(nil)

// Decrypt reads age ciphertext from r and writes the snapshot to w.
func (c *AgeDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	decReader, err := age.Decrypt(r, c.identity)
	if err != nil {
		return fmt.Errorf("creating decrypted reader: %w", err)
	}
	if _, err := io.Copy(w, decReader); err != nil {
		return fmt.Errorf("decrypting snapshot: %w", err)
	}
	return nil
}
