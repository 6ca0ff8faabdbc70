// Package common provides shared helpers for the SafeBid binaries: key
// loading, YAML configuration and logger setup.
package common

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RobertxMiller/SafeBid/crypto"
	"github.com/RobertxMiller/SafeBid/services"
)

// Config is the YAML configuration for auctiond.
type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	EnablePprof bool   `yaml:"enable_pprof"`

	LogJSON  bool `yaml:"log_json"`
	LogDebug bool `yaml:"log_debug"`

	// BidTimeout is the per-auction inactivity window.
	BidTimeout time.Duration `yaml:"bid_timeout"`

	// DevEncrypt exposes the plaintext encrypt endpoint. Demo only.
	DevEncrypt bool `yaml:"dev_encrypt"`

	// NATSURL enables the JetStream event publisher when set.
	NATSURL string `yaml:"nats_url"`

	// RedisAddr enables the snapshot cache when set.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Postgres enables the event archiver when Host is set.
	Postgres services.PostgresConfig `yaml:"postgres"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:  ":8080",
		MetricsAddr: ":9090",
	}
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// SetupLogger builds the process logger.
func SetupLogger(json, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if json {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// LoadOrGenerateSigningKey loads an Ed25519 private key from a hex string,
// or generates a new key pair if hexKey is empty.
func LoadOrGenerateSigningKey(hexKey string) (crypto.PrivateKey, error) {
	if hexKey != "" {
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return crypto.NewPrivateKeyFromBytes(keyBytes), nil
	}
	_, privKey, err := crypto.GenerateKeyPair()
	return privKey, err
}

// LoadSigningKeyFile reads a hex-encoded Ed25519 private key from a file.
func LoadSigningKeyFile(path string) (crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	return LoadOrGenerateSigningKey(strings.TrimSpace(string(data)))
}
