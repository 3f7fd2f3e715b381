package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the name of the config file inside the config dir.
const FileName = "config.toml"

var homedir string

func init() {
	homedir = os.Getenv("HOME")
	if homedir == "" {
		hd, err := os.UserHomeDir()
		if err != nil {
			hd = os.TempDir()
		}
		homedir = hd
	}

	DefaultConfig.ProfilesDir = filepath.Join(homedir, ".dbt")
	DefaultConfig.ProjectDir = filepath.Join(DefaultConfigDir(), "dbt_project")
}

var DefaultConfig = Config{
	DbtBinary:   "dbt",
	PackageName: "datametry",
	DaysBack:    7,
}

// DefaultConfigDir returns the directory holding config.toml when --config-dir is not set.
func DefaultConfigDir() string {
	return filepath.Join(homedir, ".edr")
}

type Config struct {
	ProfilesDir string `toml:"profiles-dir" comment:"Directory holding the dbt profiles.yml used to reach the warehouse."`
	ProjectDir  string `toml:"project-dir" comment:"Directory of the internal dbt project that hosts the monitoring package."`
	DbtBinary   string `toml:"dbt-binary" comment:"Name or path of the dbt executable."`
	Target      string `toml:"target" comment:"Optional dbt target to run against."`
	PackageName string `toml:"package-name" comment:"Name of the monitoring dbt package."`

	SlackWebhook  string `toml:"slack-webhook" comment:"Slack incoming webhook that receives alerts.  Overridden by --slack-webhook."`
	SlackWorkflow bool   `toml:"slack-workflow" comment:"Send flat workflow variables instead of a message payload."`

	DaysBack        int    `toml:"days-back" comment:"How far back to look for new alerts."`
	IntervalSeconds int    `toml:"interval-seconds" comment:"Run the monitor every interval.  0 runs once and exits."`
	MetricsAddr     string `toml:"metrics-addr" comment:"Optional address to serve /metrics and /healthz on."`
}

func (c *Config) Validate() error {
	if c.ProjectDir == "" {
		return errors.New("project-dir must be set")
	}
	if c.DbtBinary == "" {
		return errors.New("dbt-binary must be set")
	}
	if c.DaysBack <= 0 {
		return fmt.Errorf("days-back must be positive, got %d", c.DaysBack)
	}
	if c.IntervalSeconds < 0 {
		return fmt.Errorf("interval-seconds must not be negative, got %d", c.IntervalSeconds)
	}
	if c.SlackWebhook != "" {
		if err := ValidateWebhook(c.SlackWebhook); err != nil {
			return fmt.Errorf("slack-webhook %w", err)
		}
	}
	return nil
}

// ValidateWebhook checks that u is an absolute http(s) url.
func ValidateWebhook(u string) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("is not a valid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("must be an http(s) url")
	}
	if parsed.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Load decodes the file at path on top of DefaultConfig.  Unknown keys are rejected.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("decode %s at row %d column %d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDir loads config.toml from dir, falling back to DefaultConfig when the file does not exist.
func LoadDir(dir string) (*Config, string, error) {
	path := filepath.Join(dir, FileName)
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		def := DefaultConfig
		return &def, path, nil
	}
	return cfg, path, err
}

// Encode renders c as TOML with field comments.
func Encode(c Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
