package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "psyche",
	Short: "Affective-state engine for story characters",
	Long: "Psyche keeps a Pleasure-Arousal-Dominance mood per character, spreads emotion " +
		"across the relationship graph, and biases mood by the objects a character owns.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(moodCmd)
	rootCmd.AddCommand(propagateCmd)
	rootCmd.AddCommand(influenceCmd)
	rootCmd.AddCommand(intervalCmd)
}
