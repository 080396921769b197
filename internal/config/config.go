// ABOUTME: Configuration management with transfer backend selection
// ABOUTME: Handles settings, environment overrides and the gateway factory function

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/snapfeed/internal/gateway"
)

// S3Config holds settings for the s3 backend.
type S3Config struct {
	Bucket          string `json:"bucket,omitempty"`
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	Prefix          string `json:"prefix,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	UsePathStyle    bool   `json:"use_path_style,omitempty"`

	// PresignTTL is a Go duration string such as "1h".
	PresignTTL string `json:"presign_ttl,omitempty"`
}

// Config stores snapfeed configuration.
type Config struct {
	// Backend selects the transfer backend: "rest" (default) or "s3".
	Backend string `json:"backend,omitempty"`

	// Server is the root URL of the imageUploader service.
	Server string `json:"server,omitempty"`

	// PageSize is how many items each fetch advances the cursor by.
	PageSize int `json:"page_size,omitempty"`

	// Timeout is a Go duration string bounding each request. Defaults to 30s.
	Timeout string `json:"timeout,omitempty"`

	// ExportDir is where exported images land.
	// Supports ~ expansion for home directory. Defaults to ~/Pictures/snapfeed.
	ExportDir string `json:"export_dir,omitempty"`

	S3 S3Config `json:"s3"`

	// UserAgent is set by the CLI from its build version and never persisted.
	UserAgent string `json:"-"`
}

// GetBackend returns the configured backend, defaulting to "rest".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return BackendREST
	}
	return c.Backend
}

// GetServer returns the configured server URL without a trailing slash.
func (c *Config) GetServer() string {
	if c.Server == "" {
		return DefaultServerURL
	}
	return strings.TrimRight(c.Server, "/")
}

// GetPageSize returns the configured page size, clamped to a sane range.
func (c *Config) GetPageSize() int {
	switch {
	case c.PageSize <= 0:
		return DefaultPageSize
	case c.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return c.PageSize
	}
}

// GetTimeout returns the request timeout. Unparseable values fall back to the default.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout == "" {
		return DefaultHTTPTimeout
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return DefaultHTTPTimeout
	}
	return d
}

// GetExportDir returns the export directory with ~ expanded.
func (c *Config) GetExportDir() string {
	if c.ExportDir == "" {
		return defaultExportDir()
	}
	return ExpandPath(c.ExportDir)
}

// ApplyEnv overlays SNAPFEED_* environment variables onto the config.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvServer)); v != "" {
		c.Server = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackend)); v != "" {
		c.Backend = v
	}
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.GetBackend() {
	case BackendREST:
		if !strings.HasPrefix(c.GetServer(), "http://") && !strings.HasPrefix(c.GetServer(), "https://") {
			return fmt.Errorf("server URL must start with http:// or https://, got %q", c.GetServer())
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 backend requires s3.bucket")
		}
	default:
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			return fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
		}
	}
	return nil
}

// TrustedHost returns the host downloads may reach even on a private network.
func (c *Config) TrustedHost() string {
	raw := c.GetServer()
	if c.GetBackend() == BackendS3 {
		raw = c.S3.Endpoint
	}
	if i := strings.Index(raw, "://"); i >= 0 {
		raw = raw[i+3:]
	}
	host, _, _ := strings.Cut(raw, "/")
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	return strings.ToLower(host)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenGateway creates a Gateway implementation based on the configured backend.
func (c *Config) OpenGateway(ctx context.Context, logger *log.Logger) (gateway.Gateway, error) {
	switch c.GetBackend() {
	case BackendREST:
		client, err := gateway.NewRESTClient(c.GetServer(), gateway.RESTOptions{
			PageSize:  c.GetPageSize(),
			Timeout:   c.GetTimeout(),
			UserAgent: c.UserAgent,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case BackendS3:
		var ttl time.Duration
		if c.S3.PresignTTL != "" {
			d, err := time.ParseDuration(c.S3.PresignTTL)
			if err != nil {
				return nil, fmt.Errorf("invalid s3.presign_ttl %q: %w", c.S3.PresignTTL, err)
			}
			ttl = d
		}
		region := c.S3.Region
		if region == "" {
			region = DefaultS3Region
		}
		prefix := c.S3.Prefix
		if prefix == "" {
			prefix = DefaultS3Prefix
		}
		client, err := gateway.NewS3Client(ctx, gateway.S3Options{
			Bucket:          c.S3.Bucket,
			Region:          region,
			Endpoint:        c.S3.Endpoint,
			Prefix:          prefix,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			UsePathStyle:    c.S3.UsePathStyle,
			PresignTTL:      ttl,
			PageSize:        c.GetPageSize(),
			Logger:          logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown backend: %q", c.Backend)
	}
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "snapfeed", "config.json")
}

// Load reads config from disk, writing a default file on first run.
// Environment overrides are applied after the file is read.
func Load() (*Config, error) {
	path := GetConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaultFirstRunConfig()
			if saveErr := cfg.Save(); saveErr != nil {
				fmt.Fprintf(os.Stderr, "warning: could not save default config: %v\n", saveErr)
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ApplyEnv()
	return &cfg, nil
}

// Save writes config to disk atomically.
func (c *Config) Save() error {
	path := GetConfigPath()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

// atomicWrite writes to a temp file in the target directory and renames it into place.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DefaultDirPerms); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, DefaultFilePerms); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// defaultExportDir returns ~/Pictures/snapfeed.
func defaultExportDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Pictures", "snapfeed")
}

// defaultFirstRunConfig returns the config written on first run.
func defaultFirstRunConfig() *Config {
	return &Config{
		Backend:  BackendREST,
		Server:   DefaultServerURL,
		PageSize: DefaultPageSize,
	}
}
