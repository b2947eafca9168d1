package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/vitalvas/httpdigest/digest"
)

const (
	modeVerify = "verify"
	modeSign   = "sign"
)

var (
	errNoUpstream  = errors.New("config: upstream must be set")
	errInvalidMode = errors.New("config: mode must be verify or sign")
)

// Config is the digestd configuration file.
type Config struct {
	// Listen is the address the proxy listens on.
	Listen string `yaml:"listen"`

	// Upstream is the base URL requests are forwarded to.
	Upstream string `yaml:"upstream"`

	// Mode selects the inbound stage: verify checks the client's Digest
	// header, sign computes one.
	Mode string `yaml:"mode"`

	// Algorithms are used for signing, both inbound in sign mode and when
	// forwarding to the upstream.
	Algorithms []string `yaml:"algorithms"`

	// Overwrite replaces a Digest header that is already present.
	Overwrite bool `yaml:"overwrite"`

	// QueueSize is the guard queue capacity of each stage.
	QueueSize int `yaml:"queue_size"`

	// Legacy enables adler32, md5 and sha.
	Legacy bool `yaml:"legacy"`

	// MaxBodyBytes limits request bodies. Zero disables the limit.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	LogLevel        string        `yaml:"log_level"`
	MetricsPath     string        `yaml:"metrics_path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultConfig returns the configuration used for keys missing from the
// configuration file.
func DefaultConfig() Config {
	return Config{
		Listen:          ":8080",
		Mode:            modeVerify,
		Algorithms:      []string{"sha-256"},
		QueueSize:       digest.DefaultQueueSize,
		LogLevel:        log.InfoLevel.String(),
		MetricsPath:     "/metrics",
		ShutdownTimeout: 10 * time.Second,
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
// Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration and resolves its algorithms.
func (c Config) Validate() error {
	if c.Upstream == "" {
		return errNoUpstream
	}

	u, err := url.Parse(c.Upstream)
	if err != nil {
		return fmt.Errorf("config: upstream: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: upstream scheme %q not supported", u.Scheme)
	}

	if c.Mode != modeVerify && c.Mode != modeSign {
		return fmt.Errorf("%w: %q", errInvalidMode, c.Mode)
	}

	if c.QueueSize < 0 {
		return digest.ErrInvalidQueueSize
	}

	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("config: max_body_bytes must not be negative")
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	algs, err := c.DigestAlgorithms()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if len(algs) == 0 {
		return fmt.Errorf("config: %w", digest.ErrNoAlgorithms)
	}

	return nil
}

// Registry returns the digest registry selected by Legacy.
func (c Config) Registry() *digest.Registry {
	return digest.NewRegistry(digest.RegistryConfig{Legacy: c.Legacy})
}

// DigestAlgorithms resolves Algorithms against Registry.
func (c Config) DigestAlgorithms() ([]digest.Algorithm, error) {
	return c.Registry().ParseAlgorithms(c.Algorithms)
}
