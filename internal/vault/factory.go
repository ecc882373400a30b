package vault

import (
	"context"
	"fmt"

	"integrity-go/internal/config"
	"integrity-go/internal/integrity"
)

// NewVaultFromConfig creates a Vault implementation based on the vault config type.
// An empty type means snapshot replication is disabled and returns nil, nil.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig) (integrity.Vault, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "memory":
		return NewMemoryVault(cfg.Name), nil
	case "s3":
		v, err := NewS3Vault(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		v, err := NewFileSystemVault(cfg.Name, cfg.FSVaultRoot)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
