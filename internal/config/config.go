package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seqrelay/seqrelay/internal/assets"
	"github.com/seqrelay/seqrelay/internal/errors"
	"github.com/seqrelay/seqrelay/internal/paths"
)

// BioinfoStages is the fixed set of pipeline stages the bioinformatics
// metadata bundle reports software defaults for.
var BioinfoStages = []string{
	"preprocessing",
	"mapping",
	"dehosting",
	"variant_calling",
	"consensus",
	"lineage",
}

// Config represents the seqrelay configuration
type Config struct {
	LogLevel      string                    `yaml:"log_level"`
	Workers       int                       `yaml:"workers"` // 0 = min(GOMAXPROCS, 8)
	SampleIDField string                    `yaml:"sample_id_field"`
	Checksum      ChecksumConfig            `yaml:"checksum"`
	LongTable     LongTableConfig           `yaml:"long_table"`
	Fixed         map[string]string         `yaml:"fixed"`
	Bioinfo       map[string]StageConfig    `yaml:"bioinfo"`
	Platforms     map[string]PlatformConfig `yaml:"platforms"`
	Database      DatabaseConfig            `yaml:"database"`
}

// ChecksumConfig controls the Integrity Verifier
type ChecksumConfig struct {
	Policy            string   `yaml:"policy"`  // strict or lenient
	Workers           int      `yaml:"workers"` // bounded hashing pool size
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// LongTableConfig holds the fixed column heading of the variant long table
type LongTableConfig struct {
	Heading []string `yaml:"heading"`
}

// StageConfig carries the software defaults for one pipeline stage
type StageConfig struct {
	SoftwareName    string `yaml:"software_name"`
	SoftwareVersion string `yaml:"software_version"`
	SoftwareParams  string `yaml:"software_params"`
}

// PlatformConfig describes one outbound platform endpoint. Credentials
// are optional; when set they are sent as HTTP basic auth.
type PlatformConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DatabaseConfig contains submission log settings
type DatabaseConfig struct {
	Path string `yaml:"path"` // empty selects the XDG data directory
}

// DefaultConfig returns the embedded default configuration.
func DefaultConfig() *Config {
	config := &Config{}
	if err := yaml.Unmarshal(assets.DefaultConfig(), config); err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return config
}

// Load loads configuration from a file, merged over the embedded
// defaults. A missing file is not an error; a malformed or invalid one
// is fatal.
func Load(path string) (*Config, error) {
	const op = errors.Op("config.Load")

	// Start with defaults
	config := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, config.Validate()
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err, "failed to read config file")
	}

	// Parse YAML over the defaults
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.E(op, errors.KindConfig, err, "failed to parse config file")
	}

	config.Database.Path = expandPath(config.Database.Path)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate fails fast on configuration the engine cannot run with.
func (c *Config) Validate() error {
	const op = errors.Op("config.Validate")

	switch c.Checksum.Policy {
	case "strict", "lenient":
	default:
		return errors.E(op, errors.KindConfig,
			fmt.Sprintf("checksum policy must be strict or lenient, got %q", c.Checksum.Policy))
	}

	if c.Workers < 0 {
		return errors.E(op, errors.KindConfig, "workers must not be negative")
	}
	if c.Checksum.Workers < 0 {
		return errors.E(op, errors.KindConfig, "checksum workers must not be negative")
	}

	if len(c.Checksum.AllowedExtensions) == 0 {
		return errors.E(op, errors.KindConfig, "checksum allowed_extensions must not be empty")
	}
	for _, ext := range c.Checksum.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return errors.E(op, errors.KindConfig,
				fmt.Sprintf("allowed extension %q must start with a dot", ext))
		}
	}

	if c.SampleIDField == "" {
		return errors.E(op, errors.KindConfig, "sample_id_field must not be empty")
	}

	if len(c.LongTable.Heading) == 0 {
		return errors.E(op, errors.KindConfig, "long_table heading must not be empty")
	}
	for _, required := range []string{"SAMPLE", "CHROM", "POS", "REF", "CALLER"} {
		if !containsString(c.LongTable.Heading, required) {
			return errors.E(op, errors.KindConfig,
				fmt.Sprintf("long_table heading must include %s", required))
		}
	}

	// The stage set is closed: every stage must be configured and no
	// unknown stages are accepted.
	for _, stage := range BioinfoStages {
		st, ok := c.Bioinfo[stage]
		if !ok {
			return errors.E(op, errors.KindConfig,
				fmt.Sprintf("bioinfo stage %q is not configured", stage))
		}
		if st.SoftwareName == "" {
			return errors.E(op, errors.KindConfig,
				fmt.Sprintf("bioinfo stage %q has no software_name", stage))
		}
	}
	for stage := range c.Bioinfo {
		if !containsString(BioinfoStages, stage) {
			return errors.E(op, errors.KindConfig,
				fmt.Sprintf("unknown bioinfo stage %q", stage))
		}
	}

	for name, platform := range c.Platforms {
		if platform.URL == "" {
			return errors.E(op, errors.KindConfig,
				fmt.Sprintf("platform %q has no url", name))
		}
		if _, err := url.Parse(platform.URL); err != nil {
			return errors.E(op, errors.KindConfig, err,
				fmt.Sprintf("platform %q url is invalid", name))
		}
	}

	return nil
}

// EffectiveWorkers resolves the pipeline worker count.
func (c *Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	n := runtime.GOMAXPROCS(0)
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

// EffectiveWorkers resolves the checksum pool size.
func (c *ChecksumConfig) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return 4
}

// LookupDefault resolves a schema default source key of the form
// "fixed.<key>" or "bioinfo.<stage>.<attr>".
func (c *Config) LookupDefault(key string) (string, bool) {
	parts := strings.Split(key, ".")
	switch parts[0] {
	case "fixed":
		if len(parts) != 2 {
			return "", false
		}
		v, ok := c.Fixed[parts[1]]
		return v, ok
	case "bioinfo":
		if len(parts) != 3 {
			return "", false
		}
		stage, ok := c.Bioinfo[parts[1]]
		if !ok {
			return "", false
		}
		switch parts[2] {
		case "software_name":
			return stage.SoftwareName, true
		case "software_version":
			return stage.SoftwareVersion, true
		case "software_params":
			return stage.SoftwareParams, true
		}
	}
	return "", false
}

// DatabasePath returns the submission log location.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return paths.GetDatabasePath()
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to YAML
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	// Check environment variable first
	if path := os.Getenv("SEQRELAY_CONFIG_PATH"); path != "" {
		return path
	}

	// Check current directory
	if _, err := os.Stat("seqrelay.yaml"); err == nil {
		return "seqrelay.yaml"
	}

	// Use default location
	p := paths.GetPaths()
	return filepath.Join(p.ConfigDir, "config.yaml")
}

// EnsureDirectories creates necessary directories
func (c *Config) EnsureDirectories() error {
	// First ensure base directories using paths package
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.DatabasePath()), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}

	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}

	return path
}

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
