package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/bidx/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the on-disk index cache",
}

var cacheResetCmd = &cobra.Command{
	Use:   "reset DIR",
	Short: "Delete a cache directory's index database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cache.Reset(args[0]); err != nil {
			return classify(fmt.Errorf("reset cache: %w", err))
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheResetCmd)
}
