package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/veneer"
	"github.com/aretw0/veneer/pkg/transform"
	"github.com/aretw0/veneer/pkg/transforms"
)

// Config is the content of veneer.yaml.
type Config struct {
	Adapter   string          `yaml:"adapter"`
	Location  string          `yaml:"location"`
	SystemDir string          `yaml:"system_dir"`
	Format    string          `yaml:"format"`
	Compact   bool            `yaml:"compact"` // zstd-compress revision trees
	ReadOnly  bool            `yaml:"read_only"`
	Scope     string          `yaml:"scope"`
	Encrypt   *EncryptConfig  `yaml:"encrypt"`
	Compress  *CompressConfig `yaml:"compress"`
}

// EncryptConfig configures field encryption. Either Key (hex) or
// Passphrase with Salt must be set.
type EncryptConfig struct {
	Key        string   `yaml:"key"`
	Passphrase string   `yaml:"passphrase"`
	Salt       string   `yaml:"salt"`
	Fields     []string `yaml:"fields"`
}

// CompressConfig configures field compression.
type CompressConfig struct {
	MinSize int      `yaml:"min_size"`
	Fields  []string `yaml:"fields"`
}

// DefaultConfig is used when no configuration file is found.
func DefaultConfig() *Config {
	return &Config{Adapter: veneer.AdapterFS, Location: "."}
}

// LoadConfig reads path. An empty path looks for veneer.yaml from the
// working directory upwards and falls back to DefaultConfig. A relative
// fs location is resolved against the directory of the file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root, err := veneer.FindRoot(wd)
		if err != nil {
			return DefaultConfig(), nil
		}
		path = filepath.Join(root, "veneer.yaml")
		if _, err := os.Stat(path); err != nil {
			cfg := DefaultConfig()
			cfg.Location = root
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.Adapter == veneer.AdapterFS && !filepath.IsAbs(cfg.Location) {
		cfg.Location = filepath.Join(filepath.Dir(path), cfg.Location)
	}
	return cfg, nil
}

// Transform builds the hook set described by the configuration. It returns
// false when no stock transform is configured.
func (c *Config) Transform() (transform.Config, bool, error) {
	var chain []transform.Config

	if c.Compress != nil {
		cfg, err := transforms.Compress(c.Compress.MinSize, c.Compress.Fields...)
		if err != nil {
			return transform.Config{}, false, err
		}
		chain = append(chain, cfg)
	}
	if c.Encrypt != nil {
		key, err := c.Encrypt.key()
		if err != nil {
			return transform.Config{}, false, err
		}
		cfg, err := transforms.Encrypt(key, c.Encrypt.Fields...)
		if err != nil {
			return transform.Config{}, false, err
		}
		chain = append(chain, cfg)
	}
	if len(chain) == 0 {
		return transform.Config{}, false, nil
	}

	cfg := transforms.Chain(chain...)
	if c.Scope != "" {
		scoped, err := transforms.Scope(c.Scope, cfg)
		if err != nil {
			return transform.Config{}, false, err
		}
		cfg = scoped
	}
	return cfg, true, nil
}

func (e *EncryptConfig) key() ([]byte, error) {
	switch {
	case e.Key != "":
		key, err := hex.DecodeString(e.Key)
		if err != nil {
			return nil, fmt.Errorf("encrypt.key must be hex: %w", err)
		}
		return key, nil
	case e.Passphrase != "":
		return transforms.KeyFromPassphrase(e.Passphrase, e.Salt)
	default:
		return nil, errors.New("encrypt requires a key or a passphrase")
	}
}

// Options converts the configuration into veneer options.
func (c *Config) Options(logger *slog.Logger) ([]veneer.Option, error) {
	opts := []veneer.Option{
		veneer.WithAdapter(c.Adapter),
		veneer.WithLogger(logger),
		veneer.WithReadOnly(c.ReadOnly),
		veneer.WithCompression(c.Compact),
	}
	if c.SystemDir != "" {
		opts = append(opts, veneer.WithSystemDir(c.SystemDir))
	}
	if c.Format != "" {
		opts = append(opts, veneer.WithFormat(c.Format))
	}
	cfg, ok, err := c.Transform()
	if err != nil {
		return nil, fmt.Errorf("invalid transform configuration: %w", err)
	}
	if ok {
		opts = append(opts, veneer.WithTransform(cfg))
	}
	return opts, nil
}
