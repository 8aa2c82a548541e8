package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LogLevel defines the minimum severity for logs.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// Default HTTP/2 settings values (RFC 7540 Section 6.5.2).
const (
	DefaultHeaderTableSize      uint32 = 4096
	DefaultInitialWindowSize    uint32 = 65535
	DefaultMaxFrameSize         uint32 = 16384
	DefaultMaxConcurrentStreams uint32 = 100
	DefaultMaxHeaderListSize    uint32 = 32 * 1024
)

// MinMaxFrameSize and MaxMaxFrameSize bound SETTINGS_MAX_FRAME_SIZE
// (RFC 7540 Section 6.5.2).
const (
	MinMaxFrameSize uint32 = 1 << 14
	MaxMaxFrameSize uint32 = 1<<24 - 1
)

// MaxWindowSize is the largest legal flow-control window (2^31 - 1).
const MaxWindowSize uint32 = 1<<31 - 1

// Config is the top-level configuration structure.
type Config struct {
	HTTP2   *HTTP2Config   `toml:"http2,omitempty"`
	Logging *LoggingConfig `toml:"logging,omitempty"`
}

// HTTP2Config holds the local HTTP/2 limits this endpoint advertises and
// enforces. All fields are optional; absent fields fall back to the RFC
// defaults via ApplyDefaults.
type HTTP2Config struct {
	HeaderTableSize      *uint32 `toml:"header_table_size,omitempty"`
	EnablePush           *bool   `toml:"enable_push,omitempty"`
	MaxConcurrentStreams *uint32 `toml:"max_concurrent_streams,omitempty"`
	InitialWindowSize    *uint32 `toml:"initial_window_size,omitempty"`
	MaxFrameSize         *uint32 `toml:"max_frame_size,omitempty"`
	MaxHeaderListSize    *uint32 `toml:"max_header_list_size,omitempty"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	LogLevel LogLevel `toml:"log_level,omitempty"`
}

// Load reads, parses and validates a TOML configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills in any absent fields with their default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP2 == nil {
		c.HTTP2 = &HTTP2Config{}
	}
	h := c.HTTP2
	if h.HeaderTableSize == nil {
		h.HeaderTableSize = uint32Ptr(DefaultHeaderTableSize)
	}
	if h.MaxConcurrentStreams == nil {
		h.MaxConcurrentStreams = uint32Ptr(DefaultMaxConcurrentStreams)
	}
	if h.InitialWindowSize == nil {
		h.InitialWindowSize = uint32Ptr(DefaultInitialWindowSize)
	}
	if h.MaxFrameSize == nil {
		h.MaxFrameSize = uint32Ptr(DefaultMaxFrameSize)
	}
	if h.MaxHeaderListSize == nil {
		h.MaxHeaderListSize = uint32Ptr(DefaultMaxHeaderListSize)
	}
	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.LogLevel == "" {
		c.Logging.LogLevel = LogLevelInfo
	}
}

// Validate checks field-level constraints from RFC 7540 Section 6.5.2.
func (c *Config) Validate() error {
	h := c.HTTP2
	if h == nil {
		return fmt.Errorf("http2 section missing (ApplyDefaults not called)")
	}
	if v := *h.MaxFrameSize; v < MinMaxFrameSize || v > MaxMaxFrameSize {
		return fmt.Errorf("max_frame_size %d outside allowed range [%d, %d]", v, MinMaxFrameSize, MaxMaxFrameSize)
	}
	if v := *h.InitialWindowSize; v > MaxWindowSize {
		return fmt.Errorf("initial_window_size %d exceeds maximum %d", v, MaxWindowSize)
	}
	switch c.Logging.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
	default:
		return fmt.Errorf("invalid log_level %q", c.Logging.LogLevel)
	}
	return nil
}

func uint32Ptr(v uint32) *uint32 { return &v }
