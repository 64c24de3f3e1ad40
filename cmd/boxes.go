package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/basebox/internal/tui"
)

var (
	boxesInteractive bool
	boxesJSON        bool
)

var boxesCmd = &cobra.Command{
	Use:   "boxes",
	Short: "List installed boxes and their last build",
	Long: `Lists the boxes installed in vagrant's box store, with the outcome of the
last basebox build of each.

With --interactive, opens a picker from which a box can be removed.`,
	Args: cobra.NoArgs,
	RunE: runBoxes,
}

func init() {
	boxesCmd.Flags().BoolVarP(&boxesInteractive, "interactive", "i", false, "Pick a box to remove")
	boxesCmd.Flags().BoolVar(&boxesJSON, "json-lines", false, "Output one JSON object per box")
	rootCmd.AddCommand(boxesCmd)
}

type boxLine struct {
	Name      string `json:"name"`
	LastBuild string `json:"lastBuild,omitempty"`
	Base      string `json:"base,omitempty"`
}

func runBoxes(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a := current()
	names, err := a.Catalog.Names(ctx)
	if err != nil {
		return err
	}

	infos := make([]tui.BoxInfo, 0, len(names))
	for _, name := range names {
		info := tui.BoxInfo{Name: name}
		if events, err := a.Journal.Events(name); err == nil && len(events) > 0 {
			info.Last = &events[len(events)-1]
		}
		infos = append(infos, info)
	}

	out := cmd.OutOrStdout()
	switch {
	case boxesJSON:
		for _, info := range infos {
			line := boxLine{Name: info.Name}
			if info.Last != nil {
				line.LastBuild = string(info.Last.Type)
				line.Base = info.Last.Base
			}
			data, err := json.Marshal(line)
			if err != nil {
				return fmt.Errorf("failed to marshal box: %w", err)
			}
			fmt.Fprintln(out, string(data))
		}
		return nil

	case boxesInteractive && interactive():
		res, err := tui.RunPicker(infos)
		if err != nil {
			return err
		}
		if res.Action != tui.ActionRemove {
			return nil
		}
		if err := a.Vagrant.BoxRemove(ctx, res.Box); err != nil {
			return err
		}
		a.Catalog.Remove(res.Box)
		if err := a.Journal.Remove(res.Box); err != nil {
			logWarning("Failed to remove build journal for %s: %v", res.Box, err)
		}
		logSuccess("Removed box %s", res.Box)
		return nil
	}

	fmt.Fprint(out, tui.SimpleList(infos))
	return nil
}
