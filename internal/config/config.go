// Package config loads internal/cli and internal/httpapi configuration
// from a YAML file, and provides GenerateAPIKey/SaveConfig helpers for
// generating and persisting it.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the cbordoc CLI and HTTP API.
type Config struct {
	// Keystore configuration (the SQLite-backed cose.KeyGetter).
	Keystore KeystoreConfig `yaml:"keystore"`

	// Artifacts configuration (where signed CBOR documents are stored).
	Artifacts ArtifactsConfig `yaml:"artifacts"`

	// Issuer key material used by "mdoc build" and "cose sign".
	Keys KeysConfig `yaml:"keys"`

	// HTTP server configuration.
	Server ServerConfig `yaml:"server"`
}

// KeystoreConfig configures the SQLite key store.
type KeystoreConfig struct {
	Path      string `yaml:"path"`
	EnableWAL bool   `yaml:"enable_wal"`
}

// ArtifactsConfig configures the artifact store.
type ArtifactsConfig struct {
	Type string `yaml:"type"` // "local" or "memory"
	Path string `yaml:"path"` // used when Type == "local"
}

// KeysConfig locates the issuer's signing key material and certificate
// chain on disk.
type KeysConfig struct {
	PrivateKey  string `yaml:"private_key"`  // path to a COSE_Key CBOR file
	Certificate string `yaml:"certificate"`  // path to a DER certificate
	Kid         string `yaml:"kid"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host   string     `yaml:"host"`
	Port   int        `yaml:"port"`
	APIKey string     `yaml:"api_key"`
	CORS   CORSConfig `yaml:"cors"`
}

// CORSConfig configures cross-origin access to the HTTP API.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoadConfig loads and validates configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks that required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.Keystore.Path == "" {
		return fmt.Errorf("keystore path is required")
	}

	if c.Artifacts.Type == "" {
		return fmt.Errorf("artifacts type is required")
	}
	if c.Artifacts.Type != "local" && c.Artifacts.Type != "memory" {
		return fmt.Errorf("unsupported artifacts type %q", c.Artifacts.Type)
	}
	if c.Artifacts.Type == "local" && c.Artifacts.Path == "" {
		return fmt.Errorf("artifacts path is required for local storage")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}

// DefaultConfig returns the configuration used when no config file is
// given, rooted under ./demo.
func DefaultConfig() *Config {
	return &Config{
		Keystore: KeystoreConfig{
			Path:      "./demo/keystore.db",
			EnableWAL: true,
		},
		Artifacts: ArtifactsConfig{
			Type: "local",
			Path: "./demo/artifacts",
		},
		Keys: KeysConfig{
			PrivateKey:  "./demo/issuer-key.cbor",
			Certificate: "./demo/issuer-cert.der",
			Kid:         "demo-issuer",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 56177,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
			},
		},
	}
}

// GenerateAPIKey returns a 64-character hex-encoded 32-byte random API key.
func GenerateAPIKey() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}

// SaveConfig writes config to path as YAML.
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
