package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/basebox/internal/build"
	"github.com/firefly-engineering/basebox/internal/errors"
	"github.com/firefly-engineering/basebox/internal/logging"
)

var (
	buildRecipe      string
	buildBase        string
	buildInstallAs   string
	buildPackageAs   string
	buildVagrantfile string
	buildInclude     []string
	buildForce       bool
	buildModify      []string
	buildUser        string
	buildKey         string
	buildPort        int
	buildSteps       []build.Step
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] [-- ARGS...]",
	Short: "Build a box from a base box and provisioning steps",
	Long: `Builds a box in a temporary environment and packages the result.

Steps come from a recipe (-f) and from --package, --sudo and --run, which
run in the order given after the recipe's own steps. ARGS after -- become
the positional parameters ($1, $2, ...) of every shell step.

The result is installed with --install-as, written with --package-as, or
both. An existing box is only replaced with --force or after confirming
at the prompt.`,
	Example: `  basebox build --install-as web --package nginx --sudo 'systemctl enable nginx'
  basebox build -f web.yaml --base ~/boxes/precise64.box --package-as web.box
  basebox build --install-as dev --run 'echo "$1" > ~/.who' -- alice`,
	RunE: runBuild,
}

// stepFlag appends a step of one kind to buildSteps, keeping the order in
// which --run, --sudo and --package were given.
type stepFlag struct {
	kind string
}

func (f stepFlag) String() string { return "" }

func (f stepFlag) Type() string {
	if f.kind == "packages" {
		return "pkg"
	}
	return "cmd"
}

func (f stepFlag) Set(v string) error {
	switch f.kind {
	case "run":
		buildSteps = append(buildSteps, build.Step{Run: v})
	case "sudo":
		buildSteps = append(buildSteps, build.Step{Sudo: v})
	case "packages":
		var pkgs []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				pkgs = append(pkgs, p)
			}
		}
		buildSteps = append(buildSteps, build.Step{Packages: pkgs})
	}
	return nil
}

func init() {
	f := buildCmd.Flags()
	f.StringVarP(&buildRecipe, "file", "f", "", "Recipe file (YAML)")
	f.StringVar(&buildBase, "base", "", "Base box: installed name, .box file or URL (default from config)")
	f.StringVar(&buildInstallAs, "install-as", "", "Install the built box to vagrant as `BOXNAME`")
	f.StringVar(&buildInstallAs, "name", "", "Same as --install-as")
	f.StringVar(&buildPackageAs, "package-as", "", "Package file to write the build result to")
	f.StringVar(&buildVagrantfile, "package-vagrantfile", "", "Vagrantfile path or contents to embed in the package")
	f.StringSliceVar(&buildInclude, "include", nil, "Extra files to include in the package")
	f.BoolVar(&buildForce, "force", false, "Replace an existing box or package file")
	f.StringArrayVar(&buildModify, "modify", nil, "VBoxManage modifyvm setting `key=value` applied before boot (repeatable)")
	f.StringVarP(&buildUser, "user", "u", "", "SSH username, written to config.ssh.username")
	f.StringVarP(&buildKey, "identity", "i", "", "SSH private key, written to config.ssh.private_key_path")
	f.IntVar(&buildPort, "port", 0, "SSH port, written to config.ssh.port")
	f.Var(stepFlag{kind: "run"}, "run", "Run a shell command on the machine (repeatable)")
	f.Var(stepFlag{kind: "sudo"}, "sudo", "Run a shell command as root on the machine (repeatable)")
	f.Var(stepFlag{kind: "packages"}, "package", "Install packages with apt-get, comma separated (repeatable)")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	recipe, err := buildRecipeFromFlags()
	if err != nil {
		return err
	}

	a := current()
	cfg, err := recipe.Config()
	if err != nil {
		return err
	}
	if cfg.Base == "" {
		cfg.Base = a.Config.DefaultBase
	}

	ctx, stop := signalContext()
	defer stop()

	if err := resolveConflicts(ctx, &cfg); err != nil {
		return err
	}

	res, err := a.Builder.Build(ctx, cfg, recipe.Routine(), args...)
	if err != nil {
		return err
	}

	if res.Box != "" {
		logSuccess("Installed box %s (built from %s in %s)", res.Box, res.Base, res.Duration)
	}
	if res.Output != "" {
		logSuccess("Wrote package %s", res.Output)
	}
	return nil
}

// buildRecipeFromFlags loads the recipe named by -f, if any, and applies
// the command line on top of it.
func buildRecipeFromFlags() (*build.Recipe, error) {
	recipe := &build.Recipe{}
	if buildRecipe != "" {
		r, err := build.LoadRecipe(buildRecipe)
		if err != nil {
			return nil, err
		}
		recipe = r
	}

	if buildBase != "" {
		recipe.Base = buildBase
	}
	if buildInstallAs != "" {
		recipe.Name = buildInstallAs
	}
	if buildPackageAs != "" {
		recipe.Package.Output = buildPackageAs
	}
	if recipe.Package.Output != "" {
		out, err := filepath.Abs(recipe.Package.Output)
		if err != nil {
			return nil, errors.ValidationError("invalid package path: " + err.Error())
		}
		recipe.Package.Output = out
	}
	if buildVagrantfile != "" {
		recipe.Package.Vagrantfile = buildVagrantfile
	}
	if len(buildInclude) > 0 {
		recipe.Package.Include = buildInclude
	}
	if buildForce {
		recipe.Package.Overwrite = true
	}
	recipe.Modify = append(recipe.Modify, buildModify...)
	if buildUser != "" {
		recipe.Vagrant.SSH.Username = buildUser
	}
	if buildKey != "" {
		key, err := filepath.Abs(buildKey)
		if err != nil {
			return nil, errors.ValidationError("invalid identity path: " + err.Error())
		}
		recipe.Vagrant.SSH.PrivateKeyPath = key
	}
	if buildPort != 0 {
		recipe.Vagrant.SSH.Port = buildPort
	}
	recipe.Steps = append(recipe.Steps, buildSteps...)

	if recipe.Name == "" && recipe.Package.Output == "" {
		return nil, errors.ValidationError("nothing to do: give --install-as, --package-as or a recipe with a name")
	}
	if err := recipe.Validate(); err != nil {
		return nil, err
	}
	return recipe, nil
}

// resolveConflicts checks the install target before anything is booted.
// An interactive terminal is asked whether to replace an existing box;
// otherwise the build fails with a package conflict.
func resolveConflicts(ctx context.Context, cfg *build.Config) error {
	if cfg.Overwrite || cfg.Name == "" {
		return nil
	}

	exists, err := current().Catalog.Contains(ctx, cfg.Name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	if !interactive() {
		return errors.PackageConflict(cfg.Name)
	}
	ok, err := confirm(fmt.Sprintf("Box %s already exists. Replace it?", strconv.Quote(cfg.Name)))
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if !ok {
		return errors.PackageConflict(cfg.Name)
	}

	logging.Debug("replacing existing box", "box", cfg.Name)
	cfg.Overwrite = true
	return nil
}
