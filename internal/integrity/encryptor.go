package integrity

import "io"

// Encryptor protects store snapshots before they leave the host.
// Encryption uses the public key only; decryption requires a passphrase to
// unlock the private key.
type Encryptor interface {
	// Setup performs one-time key generation. Called by `integrity keys init`.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase and returns a
	// DecryptionContext for the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if the keys this encryptor needs exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
