package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/firefly-engineering/basebox/internal/errors"
)

const (
	// EnvConfig overrides the configuration file location.
	EnvConfig = "BASEBOX_CONFIG"

	DefaultVagrant        = "vagrant"
	DefaultVBoxManage     = "VBoxManage"
	DefaultBase           = "https://files.vagrantup.com/precise64.box"
	DefaultProvider       = "virtualbox"
	DefaultVagrantLog     = "error"
	DefaultConnectTimeout = 10 * time.Second
)

var (
	providerRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

	vagrantLogLevels = map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
)

// Config is the user configuration read from config.toml.
type Config struct {
	Vagrant     string `toml:"vagrant"`
	VBoxManage  string `toml:"vboxmanage"`
	DefaultBase string `toml:"default_base"`
	Provider    string `toml:"provider"`
	// WorkRoot holds the per-build working directories. Empty means the
	// system temp directory.
	WorkRoot string `toml:"work_root"`
	// StateDir holds the build journal.
	StateDir   string `toml:"state_dir"`
	VagrantLog string `toml:"vagrant_log"`
	// VagrantHome is exported as VAGRANT_HOME when set.
	VagrantHome string    `toml:"vagrant_home"`
	SSH         SSHConfig `toml:"ssh"`

	// Path is the file the configuration was read from, if any.
	Path string `toml:"-"`
}

// SSHConfig controls how builds connect to running machines.
type SSHConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	User           string `toml:"user"`
	PrivateKeyPath string `toml:"private_key_path"`
	Port           int    `toml:"port"`
}

// Timeout returns the parsed connect timeout, or the default when unset.
func (s SSHConfig) Timeout() time.Duration {
	if s.ConnectTimeout == "" {
		return DefaultConnectTimeout
	}
	d, err := time.ParseDuration(s.ConnectTimeout)
	if err != nil || d <= 0 {
		return DefaultConnectTimeout
	}
	return d
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Vagrant:     DefaultVagrant,
		VBoxManage:  DefaultVBoxManage,
		DefaultBase: DefaultBase,
		Provider:    DefaultProvider,
		StateDir:    defaultStateDir(),
		VagrantLog:  DefaultVagrantLog,
	}
}

func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "basebox")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "basebox")
	}
	return filepath.Join(os.TempDir(), "basebox-state")
}

// DefaultPath returns $BASEBOX_CONFIG, or config.toml under the user
// configuration directory.
func DefaultPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "basebox", "config.toml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "basebox", "config.toml")
	}
	return ""
}

// Load reads the configuration at path on top of the defaults. An empty
// path means DefaultPath. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.ConfigError("failed to read config "+path, err)
	}

	if err := cfg.decode(data); err != nil {
		return nil, errors.ConfigError("failed to parse config "+path, err)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigError("invalid config "+path, err)
	}
	return cfg, nil
}

// Parse decodes data on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, errors.ConfigError("failed to parse config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigError("invalid config", err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// Validate checks that the Config is usable.
func (c *Config) Validate() error {
	if c.Vagrant == "" {
		return fmt.Errorf("vagrant is required")
	}
	if c.VBoxManage == "" {
		return fmt.Errorf("vboxmanage is required")
	}
	if c.Provider != "" && !providerRegex.MatchString(c.Provider) {
		return fmt.Errorf("invalid provider %q", c.Provider)
	}
	if c.VagrantLog != "" && !vagrantLogLevels[c.VagrantLog] {
		return fmt.Errorf("invalid vagrant_log %q (must be debug, info, warn, or error)", c.VagrantLog)
	}
	if c.WorkRoot != "" && !filepath.IsAbs(c.WorkRoot) {
		return fmt.Errorf("work_root must be an absolute path (got %q)", c.WorkRoot)
	}
	if c.VagrantHome != "" && !filepath.IsAbs(expandHome(c.VagrantHome)) {
		return fmt.Errorf("vagrant_home must be an absolute path (got %q)", c.VagrantHome)
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}

	if c.SSH.ConnectTimeout != "" {
		d, err := time.ParseDuration(c.SSH.ConnectTimeout)
		if err != nil {
			return fmt.Errorf("invalid ssh.connect_timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("ssh.connect_timeout must be positive")
		}
	}
	if c.SSH.Port < 0 || c.SSH.Port > 65535 {
		return fmt.Errorf("ssh.port must be between 0 and 65535 (got %d)", c.SSH.Port)
	}
	if c.SSH.PrivateKeyPath != "" && !filepath.IsAbs(expandHome(c.SSH.PrivateKeyPath)) {
		return fmt.Errorf("ssh.private_key_path must be an absolute path (got %q)", c.SSH.PrivateKeyPath)
	}
	return nil
}

// PrivateKey returns the configured key path with a leading ~ expanded.
func (s SSHConfig) PrivateKey() string {
	return expandHome(s.PrivateKeyPath)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
