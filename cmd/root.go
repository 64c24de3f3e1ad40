package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/basebox/internal/app"
	"github.com/firefly-engineering/basebox/internal/config"
	"github.com/firefly-engineering/basebox/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
	configPath string
)

// setupApp installs the application built from the loaded configuration.
// Tests replace it to keep their own app.
var setupApp = func(cfg *config.Config) {
	app.SetDefault(app.New(app.WithConfig(cfg)))
}

var rootCmd = &cobra.Command{
	Use:   "basebox",
	Short: "Build Vagrant base boxes in ephemeral environments",
	Long: `basebox builds Vagrant boxes by provisioning a throwaway machine.

Each build:
  - Creates a temporary working directory with a generated Vagrantfile
  - Boots a machine from a base box (installed name, .box file or URL)
  - Runs provisioning steps over SSH
  - Halts, packages and installs the result
  - Destroys the machine and removes the working directory`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(verbose, jsonOutput, os.Stderr)

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Path != "" {
			logging.Debug("loaded config", "path", cfg.Path)
		}
		setupApp(cfg)
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $BASEBOX_CONFIG or $XDG_CONFIG_HOME/basebox/config.toml)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
	logError   = logging.UserError
)
