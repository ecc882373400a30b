package encryption

import (
	"fmt"

	"integrity-go/internal/config"
	"integrity-go/internal/integrity"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (integrity.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return NewPlaintextEncryptor(), nil
	case "age":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("public_key_path and private_key_path required for age encryption")
		}
		return NewAgeEncryptor(cfg), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
