package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/basebox/internal/app"
	"github.com/firefly-engineering/basebox/internal/box"
	"github.com/firefly-engineering/basebox/internal/logging"
	"github.com/firefly-engineering/basebox/internal/workdir"
)

var (
	gcForce     bool
	gcOlderThan time.Duration
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Garbage collect working directories left by interrupted builds",
	Long: `Finds working directories under the work root that outlived their build
and removes them, destroying any machine they still hold.

Without --force, prints what would be cleaned (dry run).
With --force, destroys the orphaned machines and removes the directories.

Directories modified within --older-than are skipped, so builds that are
still running are left alone.`,
	RunE: runGC,
}

func init() {
	gcCmd.Flags().BoolVar(&gcForce, "force", false, "Actually remove orphaned resources (default is dry run)")
	gcCmd.Flags().DurationVar(&gcOlderThan, "older-than", time.Hour, "Only collect directories not modified for this long")
	rootCmd.AddCommand(gcCmd)
}

// staleDir is a working directory with no live build.
type staleDir struct {
	id       string
	dir      string
	modTime  time.Time
	booted   bool // a machine id file exists
	provider string
}

func runGC(cmd *cobra.Command, args []string) error {
	a := current()

	stale, err := findStaleDirs(a, time.Now().Add(-gcOlderThan))
	if err != nil {
		return fmt.Errorf("failed to scan work root: %w", err)
	}

	if len(stale) == 0 {
		logInfo("No orphaned working directories found")
		return nil
	}

	if !gcForce {
		printGCDryRun(cmd, stale)
		return nil
	}

	ctx, stop := signalContext()
	defer stop()
	return executeGC(ctx, a, stale)
}

func findStaleDirs(a *app.App, cutoff time.Time) ([]staleDir, error) {
	dirs, err := a.Workdirs.List()
	if err != nil {
		return nil, err
	}

	var stale []staleDir
	for _, dir := range dirs {
		info, err := a.FS.Stat(dir)
		if err != nil {
			logging.Debug("skipping unreadable working directory", "dir", dir, "error", err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		provider, idErr := a.Vagrant.Provider(dir)
		stale = append(stale, staleDir{
			id:       strings.TrimPrefix(filepath.Base(dir), workdir.Prefix),
			dir:      dir,
			modTime:  info.ModTime(),
			booted:   idErr == nil,
			provider: provider,
		})
	}
	return stale, nil
}

func printGCDryRun(cmd *cobra.Command, stale []staleDir) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Dry run (use --force to actually clean up):")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Orphaned working directories:")
	for _, s := range stale {
		note := ""
		if s.booted {
			note = " (machine registered)"
		}
		fmt.Fprintf(out, "  %s  %s%s\n", s.dir, s.modTime.Local().Format("2006-01-02 15:04"), note)
	}
	fmt.Fprintln(out)
}

func executeGC(ctx context.Context, a *app.App, stale []staleDir) error {
	failed := 0
	for _, s := range stale {
		h, err := a.Workdirs.Open(s.id)
		if err != nil {
			logWarning("Skipping %s: %v", s.dir, err)
			failed++
			continue
		}

		if s.booted {
			logInfo("Destroying orphaned machine in %s", s.dir)
			box.Recover(h, a.Vagrant, box.WithProvider(s.provider)).Teardown(ctx)
		}

		if err := a.Workdirs.Release(h); err != nil {
			logWarning("Failed to remove %s: %v", s.dir, err)
			failed++
			continue
		}
		logging.Debug("removed orphaned working directory", "dir", s.dir)
	}

	if failed > 0 {
		return fmt.Errorf("failed to clean up %d of %d working directories", failed, len(stale))
	}
	logSuccess("Garbage collection complete")
	return nil
}
