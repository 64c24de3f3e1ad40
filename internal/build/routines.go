package build

import (
	"context"
	"fmt"
	"regexp"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/basebox/internal/box"
	"github.com/firefly-engineering/basebox/internal/vagrant"
)

var packageNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9+._:=~-]*$`)

// InstallPackages returns a routine that installs Debian packages: pkgs
// followed by the routine's arguments.
func InstallPackages(pkgs ...string) Routine {
	return func(ctx context.Context, t Target, args ...string) error {
		all := append(append([]string{}, pkgs...), args...)
		if len(all) == 0 {
			return nil
		}
		for _, p := range all {
			if !packageNameRegex.MatchString(p) {
				return fmt.Errorf("invalid package name %q", p)
			}
		}
		_, err := t.Sudo(ctx, "DEBIAN_FRONTEND=noninteractive apt-get install -y "+shellquote.Join(all...))
		return err
	}
}

// Step is one provisioning step. Exactly one field is set.
type Step struct {
	Run      string   `yaml:"run,omitempty"`
	Sudo     string   `yaml:"sudo,omitempty"`
	Packages []string `yaml:"packages,omitempty"`
	// Reload restarts the machine.
	Reload bool `yaml:"reload,omitempty"`
	// Modify holds key=value modifyvm settings applied to the halted
	// machine before it boots again.
	Modify []string `yaml:"modify,omitempty"`
}

func (s Step) kinds() []string {
	var kinds []string
	if s.Run != "" {
		kinds = append(kinds, "run")
	}
	if s.Sudo != "" {
		kinds = append(kinds, "sudo")
	}
	if len(s.Packages) > 0 {
		kinds = append(kinds, "packages")
	}
	if s.Reload {
		kinds = append(kinds, "reload")
	}
	if len(s.Modify) > 0 {
		kinds = append(kinds, "modify")
	}
	return kinds
}

func (s Step) kind() string {
	if kinds := s.kinds(); len(kinds) > 0 {
		return kinds[0]
	}
	return ""
}

func parseModify(settings []string) (box.ModifySpec, error) {
	var spec box.ModifySpec
	for _, m := range settings {
		s, err := vagrant.ParseSetting(m)
		if err != nil {
			return nil, err
		}
		spec = append(spec, s)
	}
	return spec, nil
}

// Steps returns a routine that runs steps in order and stops at the first
// failure. Routine arguments become the positional parameters ($1, $2...)
// of run and sudo steps.
func Steps(steps ...Step) Routine {
	return func(ctx context.Context, t Target, args ...string) error {
		for i, step := range steps {
			var err error
			switch step.kind() {
			case "run":
				_, err = t.Run(ctx, withArgs(step.Run, args))
			case "sudo":
				_, err = t.Sudo(ctx, withArgs(step.Sudo, args))
			case "packages":
				err = InstallPackages(step.Packages...)(ctx, t)
			case "reload":
				err = t.Reload(ctx)
			case "modify":
				var spec box.ModifySpec
				if spec, err = parseModify(step.Modify); err == nil {
					err = t.Modify(ctx, spec)
				}
			default:
				err = fmt.Errorf("empty step")
			}
			if err != nil {
				return fmt.Errorf("step %d (%s): %w", i+1, step.kind(), err)
			}
		}
		return nil
	}
}

func withArgs(command string, args []string) string {
	if len(args) == 0 {
		return command
	}
	return "set -- " + shellquote.Join(args...) + "; " + command
}
