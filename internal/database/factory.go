package database

import (
	"fmt"

	"integrity-go/internal/config"
	"integrity-go/internal/integrity"
)

// NewDatabaseFromConfig creates a RecordStore implementation based on the store config type.
func NewDatabaseFromConfig(cfg config.StoreConfig) (integrity.RecordStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for sqlite store")
		}
		db, err := NewSQLiteDatabase(cfg.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "memory":
		db, err := NewSQLiteDatabase(MemoryPath)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
