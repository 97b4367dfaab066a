package runner

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ircconform/irctest-go/internal/testharness/engine"
	"github.com/ircconform/irctest-go/pkg/discovery"
)

// Output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatJUnit = "junit"
)

// Default values not owned by the engine.
const (
	DefaultPort           = "6667"
	DefaultWriteTimeout   = 2 * time.Second
	DefaultConnectTimeout = 5 * time.Second
)

// Config configures the test runner.
type Config struct {
	// Target is the address of the server under test (host:port). A bare
	// host gets DefaultPort.
	Target string `yaml:"target"`

	// Password is sent with PASS during registration when non-empty.
	Password string `yaml:"password"`

	// TLS selects the TLS transport.
	TLS bool `yaml:"tls"`

	// Insecure skips certificate verification for TLS.
	Insecure bool `yaml:"insecure"`

	// CAFile is a PEM bundle of trusted roots for TLS.
	CAFile string `yaml:"ca_file"`

	// ServerName overrides the TLS verification name.
	ServerName string `yaml:"server_name"`

	// ExpectTimeout is the default wait for expectations.
	ExpectTimeout time.Duration `yaml:"expect_timeout"`

	// PollInterval is the matcher's polling granularity.
	PollInterval time.Duration `yaml:"poll_interval"`

	// ConnectTimeout bounds dial and handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// Timeout is the default scenario timeout.
	Timeout time.Duration `yaml:"timeout"`

	// WriteTimeout bounds every write.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Only selects scenarios by exact name.
	Only []string `yaml:"only"`

	// Pattern filters scenarios by comma-separated glob patterns.
	Pattern string `yaml:"pattern"`

	// Tags includes only scenarios with at least one of these tags (comma-separated).
	Tags string `yaml:"tags"`

	// ExcludeTags excludes scenarios with any of these tags (comma-separated).
	ExcludeTags string `yaml:"exclude_tags"`

	// TestDir is a directory of YAML scenarios, searched recursively.
	TestDir string `yaml:"test_dir"`

	// NoBuiltin leaves the built-in battery out of the registry.
	NoBuiltin bool `yaml:"no_builtin"`

	// OutputFormat is "text", "json", or "junit".
	OutputFormat string `yaml:"output_format"`

	// Output is where reports go.
	Output io.Writer `yaml:"-"`

	// Verbose enables verbose output.
	Verbose bool `yaml:"verbose"`

	// Color enables ANSI colours in text output.
	Color bool `yaml:"color"`

	// Strict enables exact reply wording checks.
	Strict bool `yaml:"strict"`

	// ProtocolLog is the path of a CBOR capture file. Empty disables capture.
	ProtocolLog string `yaml:"protocol_log"`

	// Debug mirrors capture events to the operational logger.
	Debug bool `yaml:"debug"`

	// Discover finds the target with mDNS when set.
	Discover bool `yaml:"discover"`

	// DiscoverInstance restricts discovery to one instance name.
	DiscoverInstance string `yaml:"discover_instance"`

	// DiscoverTimeout bounds discovery.
	DiscoverTimeout time.Duration `yaml:"discover_timeout"`

	// StopOnFirstFailure stops after the first failing scenario.
	StopOnFirstFailure bool `yaml:"stop_on_first_failure"`

	// Logger receives operational logs. Nil means slog.Default().
	Logger *slog.Logger `yaml:"-"`

	// Browser overrides the mDNS browser used for discovery.
	Browser discovery.Browser `yaml:"-"`
}

// DefaultConfig returns a config with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		ExpectTimeout:   engine.DefaultExpectTimeout,
		PollInterval:    engine.DefaultPollInterval,
		ConnectTimeout:  DefaultConnectTimeout,
		Timeout:         engine.DefaultScenarioTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		OutputFormat:    FormatText,
		DiscoverTimeout: discovery.BrowseTimeout,
		Output:          os.Stdout,
	}
}

// LoadConfigFile overlays the YAML file at path on the defaults. Keys that
// are absent keep their default.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig overlays YAML data on the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case "", FormatText, FormatJSON, FormatJUnit:
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrInvalidConfig, c.OutputFormat)
	}
	for name, d := range map[string]time.Duration{
		"expect_timeout": c.ExpectTimeout,
		"poll_interval":  c.PollInterval,
		"timeout":        c.Timeout,
		"write_timeout":  c.WriteTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, name)
		}
	}
	if c.Insecure && c.CAFile != "" {
		return fmt.Errorf("%w: insecure and ca_file are mutually exclusive", ErrInvalidConfig)
	}
	return nil
}
