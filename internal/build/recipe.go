package build

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/syntax"

	"github.com/firefly-engineering/basebox/internal/errors"
	"github.com/firefly-engineering/basebox/internal/vagrant"
)

// Recipe is a declarative build read from YAML.
type Recipe struct {
	Name    string         `yaml:"name"`
	Base    string         `yaml:"base"`
	Vagrant VagrantSection `yaml:"vagrant"`
	// Modify holds key=value VBoxManage modifyvm settings.
	Modify  []string       `yaml:"modify"`
	Package PackageSection `yaml:"package"`
	Steps   []Step         `yaml:"steps"`
}

// VagrantSection configures the generated Vagrantfile.
type VagrantSection struct {
	Provider string           `yaml:"provider"`
	BoxURL   string           `yaml:"box_url"`
	Networks []NetworkSection `yaml:"networks"`
	SSH      SSHSection       `yaml:"ssh"`
}

// NetworkSection is one config.vm.network entry.
type NetworkSection struct {
	Type    string            `yaml:"type"`
	Options map[string]string `yaml:"options"`
}

// SSHSection is rendered into config.ssh.*.
type SSHSection struct {
	Username       string `yaml:"username"`
	PrivateKeyPath string `yaml:"private_key_path"`
	Port           int    `yaml:"port"`
}

// PackageSection configures `vagrant package`.
type PackageSection struct {
	Output      string   `yaml:"output"`
	Overwrite   bool     `yaml:"overwrite"`
	Vagrantfile string   `yaml:"vagrantfile"`
	Include     []string `yaml:"include"`
}

// LoadRecipe reads and validates the recipe at path.
func LoadRecipe(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigError("failed to read recipe "+path, err)
	}
	return ParseRecipe(data)
}

// ParseRecipe decodes and validates a recipe. Unknown keys are rejected.
func ParseRecipe(data []byte) (*Recipe, error) {
	var r Recipe
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && err != io.EOF {
		return nil, errors.ConfigError("failed to parse recipe", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks the recipe, including the shell syntax of every step,
// so that mistakes surface before a machine is booted.
func (r *Recipe) Validate() error {
	if _, err := r.Config(); err != nil {
		return err
	}

	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	for i, step := range r.Steps {
		if len(step.kinds()) != 1 {
			return errors.ValidationError(fmt.Sprintf("step %d: exactly one of run, sudo, packages, reload or modify must be set", i+1))
		}

		switch step.kind() {
		case "run", "sudo":
			script := step.Run + step.Sudo
			if _, err := parser.Parse(strings.NewReader(script), fmt.Sprintf("step-%d", i+1)); err != nil {
				return errors.ValidationError(fmt.Sprintf("step %d: script syntax error: %v", i+1, err))
			}
		case "packages":
			for _, p := range step.Packages {
				if !packageNameRegex.MatchString(p) {
					return errors.ValidationError(fmt.Sprintf("step %d: invalid package name %q", i+1, p))
				}
			}
		case "modify":
			if _, err := parseModify(step.Modify); err != nil {
				return errors.ValidationError(fmt.Sprintf("step %d: %v", i+1, err))
			}
		}
	}
	return nil
}

// Config converts the recipe into a build configuration.
func (r *Recipe) Config() (Config, error) {
	cfg := Config{
		Name: r.Name,
		Base: r.Base,
		Overrides: vagrant.Overrides{
			Provider: r.Vagrant.Provider,
			BoxURL:   r.Vagrant.BoxURL,
			SSH: vagrant.SSHSettings{
				Username:       r.Vagrant.SSH.Username,
				PrivateKeyPath: r.Vagrant.SSH.PrivateKeyPath,
				Port:           r.Vagrant.SSH.Port,
			},
		},
		Output:      r.Package.Output,
		Overwrite:   r.Package.Overwrite,
		Vagrantfile: r.Package.Vagrantfile,
		Include:     r.Package.Include,
	}
	for _, n := range r.Vagrant.Networks {
		cfg.Overrides.Networks = append(cfg.Overrides.Networks, vagrant.Network{Type: n.Type, Options: n.Options})
	}
	modify, err := parseModify(r.Modify)
	if err != nil {
		return Config{}, errors.ValidationError(err.Error())
	}
	cfg.Modify = modify

	if cfg.Name == "" && cfg.Output == "" {
		return Config{}, errors.ValidationError("recipe needs a name or a package output")
	}
	if err := cfg.Overrides.Validate(); err != nil {
		return Config{}, errors.ValidationError(err.Error())
	}
	return cfg, nil
}

// Routine returns the recipe's steps as a routine.
func (r *Recipe) Routine() Routine {
	return Steps(r.Steps...)
}
