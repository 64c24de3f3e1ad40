package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [box]",
	Short: "Display the build journal for a box",
	Long: `Displays the recorded build events for a box. Without an argument, lists
the boxes that have a build journal.`,
	Args: cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var historyJSON bool

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json-lines", false, "Output events as JSON lines")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	journal := current().Journal
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		boxes, err := journal.Boxes()
		if err != nil {
			return fmt.Errorf("failed to read build journal: %w", err)
		}
		if len(boxes) == 0 {
			logInfo("No builds recorded")
			return nil
		}
		for _, b := range boxes {
			fmt.Fprintln(out, b)
		}
		return nil
	}

	name := args[0]
	events, err := journal.Events(name)
	if err != nil {
		return fmt.Errorf("failed to read build journal: %w", err)
	}

	if len(events) == 0 {
		logInfo("No builds recorded for box %s", name)
		return nil
	}

	for _, e := range events {
		if historyJSON {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			fmt.Fprintln(out, string(data))
			continue
		}

		ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
		line := fmt.Sprintf("[%s] %-8s %s", ts, e.Type, e.Box)
		if e.Base != "" {
			line += " from " + e.Base
		}
		if e.Duration != "" {
			line += " in " + e.Duration
		}
		if e.Details != "" {
			line += " (" + e.Details + ")"
		}
		fmt.Fprintln(out, line)
	}

	return nil
}
