package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexFlags sharedFlags

var indexCmd = &cobra.Command{
	Use:   "index ROOT [ROOT...]",
	Short: "Index one or more BIDS dataset roots, optionally caching the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		indexFlags.roots = args
		l, err := loadLayout(&indexFlags)
		if err != nil {
			return classify(err)
		}
		fmt.Println(l.Repr())
		return nil
	},
}

func init() {
	f := indexCmd.Flags()
	f.StringSliceVar(&indexFlags.derivatives, "derivatives", nil, `"auto" to discover derivatives/*, or explicit paths`)
	f.BoolVar(&indexFlags.validate, "validate", false, "flag files that don't conform to layout rules")
	f.BoolVar(&indexFlags.indexMetadata, "index-metadata", false, "pre-parse and merge all JSON sidecars")
	f.StringVar(&indexFlags.cacheDir, "cache-dir", "", "persist (or reuse) the index at this directory")
	f.BoolVar(&indexFlags.resetCache, "reset-cache", false, "discard any existing cache before indexing")
}
