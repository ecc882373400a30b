package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - INTEGRITY_CONFIG_PATH: config file location (default: ~/.config/integrity.toml)
//   - INTEGRITY_HOME: base directory for the record store, keys and logs (default: ~/.local/share/integrity)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking INTEGRITY_CONFIG_PATH first,
// then falling back to the default ~/.config/integrity.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("INTEGRITY_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "integrity.toml"), nil
}

// getBaseDir returns the data directory, checking INTEGRITY_HOME first,
// then falling back to the XDG default ~/.local/share/integrity.
func getBaseDir() (string, error) {
	if path := os.Getenv("INTEGRITY_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "integrity"), nil
}
