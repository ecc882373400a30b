package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for integrity.
type Config struct {
	HostID     string           `toml:"host_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Roots      []string         `toml:"roots"`
	Store      StoreConfig      `toml:"store"`
	Scan       ScanConfig       `toml:"scan"`
	Alerts     []AlertConfig    `toml:"alerts"`
	Vault      VaultConfig      `toml:"vault"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// StoreConfig locates the record store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type string `toml:"type"`           // "sqlite" or "memory"
	Path string `toml:"path,omitempty"` // only used for type=sqlite; ":memory:" is accepted too
}

// ScanConfig tunes the reconciliation engine.
type ScanConfig struct {
	Workers int      `toml:"workers"` // 0 means one per CPU
	Ignore  []string `toml:"ignore"`
}

// AlertConfig configures one alert destination.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type AlertConfig struct {
	Type        string `toml:"type"`                   // "log" or "mail"
	MinSeverity string `toml:"min_severity,omitempty"` // "info", "warning" or "critical"; empty means all

	// Mail-specific fields (only used when Type == "mail")
	MailHost     string   `toml:"mail_host,omitempty"`
	MailPort     int      `toml:"mail_port,omitempty"`
	MailFrom     string   `toml:"mail_from,omitempty"`
	MailTo       []string `toml:"mail_to,omitempty"`
	MailUsername string   `toml:"mail_username,omitempty"`
	MailPassword string   `toml:"mail_password,omitempty"`
}

// VaultConfig represents configuration for the store snapshot vault.
// An empty Type disables snapshot replication.
type VaultConfig struct {
	Type string `toml:"type"` // "", "memory", "filesystem" or "s3"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible services
	S3KeyID    string `toml:"s3_access_key_id,omitempty"`
	S3Secret   string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for snapshot encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default) or "age"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Store: StoreConfig{
			Type: "sqlite",
			Path: filepath.Join(baseDir, "integrity.db"),
		},
		Alerts: []AlertConfig{{Type: "log"}},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "integrity.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "integrity.key"),
		},
	}
}

// Validate checks the fields every command relies on.
func (c *Config) Validate() error {
	var errs []error
	if c.HostID == "" {
		errs = append(errs, errors.New("host_id is required"))
	}
	if c.LogDir == "" {
		errs = append(errs, errors.New("log_dir is required"))
	}
	if c.Scan.Workers < 0 {
		errs = append(errs, fmt.Errorf("scan.workers must not be negative, got %d", c.Scan.Workers))
	}
	return errors.Join(errs...)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold mail and S3 credentials.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
