package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aguxez/adbx/internal/remotepath"
	"github.com/aguxez/adbx/internal/transport"
)

// EnvPrefix prefixes environment overrides, e.g. ADBX_SERVER_ENDPOINT.
const EnvPrefix = "ADBX"

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config represents the adbx configuration
type Config struct {
	Server  Server  `mapstructure:"server"`
	Device  Device  `mapstructure:"device"`
	Output  Output  `mapstructure:"output"`
	Sync    Sync    `mapstructure:"sync"`
	Journal Journal `mapstructure:"journal"`
	Log     Log     `mapstructure:"log"`
	Metrics Metrics `mapstructure:"metrics"`
}

// Server locates the adb server
type Server struct {
	Endpoint    string        `mapstructure:"endpoint"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Device selects the target device
type Device struct {
	Serial string `mapstructure:"serial"`
}

// Output controls how results are printed
type Output struct {
	Format string `mapstructure:"format"`
}

// Sync contains file transfer settings
type Sync struct {
	SandboxRoot string `mapstructure:"sandbox_root"`
	FileMode    string `mapstructure:"file_mode"`
	AtomicPull  bool   `mapstructure:"atomic_pull"`
	Checksum    bool   `mapstructure:"checksum"`
}

// Mode parses FileMode as octal permission bits.
func (s Sync) Mode() (os.FileMode, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s.FileMode), "0o")
	v, err := strconv.ParseUint(raw, 8, 32)
	if err != nil || v > 0o777 {
		return 0, fmt.Errorf("invalid sync.file_mode %q: want octal permission bits like 0644", s.FileMode)
	}
	return os.FileMode(v), nil
}

// Journal controls the transfer journal
type Journal struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// Log controls the console logger
type Log struct {
	Level string `mapstructure:"level"`
}

// Metrics controls the metrics textfile export
type Metrics struct {
	Textfile string `mapstructure:"textfile"`
}

// Load reads path, or ~/.adbx/config.yaml when path is empty, and returns
// the merged configuration. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("failed to expand config path: %w", err)
		}
		v.SetConfigFile(expanded)
	} else {
		configDir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
	}

	// Try to read config file, but don't fail if the default one doesn't exist
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Journal.Dir != "" {
		if dir, err := homedir.Expand(cfg.Journal.Dir); err == nil {
			cfg.Journal.Dir = dir
		}
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.endpoint", "unix:/var/run/adb.sock")
	v.SetDefault("server.dial_timeout", "5s")
	v.SetDefault("device.serial", "")
	v.SetDefault("output.format", FormatText)
	v.SetDefault("sync.sandbox_root", remotepath.DefaultSandboxRoot)
	v.SetDefault("sync.file_mode", "0644")
	v.SetDefault("sync.atomic_pull", true)
	v.SetDefault("sync.checksum", false)
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.textfile", "")
}

// Validate checks values that cannot be checked by type alone.
func (c *Config) Validate() error {
	if _, err := transport.ParseEndpoint(c.Server.Endpoint); err != nil {
		return fmt.Errorf("invalid server.endpoint: %w", err)
	}
	switch c.Output.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("invalid output.format %q: want text, json or yaml", c.Output.Format)
	}
	if _, err := c.Sync.Mode(); err != nil {
		return err
	}
	if _, err := remotepath.NewValidator(c.Sync.SandboxRoot); err != nil {
		return fmt.Errorf("invalid sync.sandbox_root: %w", err)
	}
	return nil
}

// ApplyFlags overrides values with the command-line flags that were set.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	changed := func(name string) bool {
		f := fs.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("socket") {
		if c.Server.Endpoint, err = fs.GetString("socket"); err != nil {
			return err
		}
	}
	if changed("serial") {
		if c.Device.Serial, err = fs.GetString("serial"); err != nil {
			return err
		}
	}
	if changed("output") {
		if c.Output.Format, err = fs.GetString("output"); err != nil {
			return err
		}
	}
	if changed("json") {
		asJSON, err := fs.GetBool("json")
		if err != nil {
			return err
		}
		if asJSON {
			c.Output.Format = FormatJSON
		}
	}
	if changed("debug") {
		debug, err := fs.GetBool("debug")
		if err != nil {
			return err
		}
		if debug {
			c.Log.Level = "debug"
		}
	}
	if changed("metrics-file") {
		if c.Metrics.Textfile, err = fs.GetString("metrics-file"); err != nil {
			return err
		}
	}
	return nil
}

// ConfigDir returns the adbx configuration directory path
func ConfigDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".adbx"), nil
}
