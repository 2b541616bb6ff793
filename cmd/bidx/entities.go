package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var entitiesFlags sharedFlags

var entitiesCmd = &cobra.Command{
	Use:   "entities ROOT [ROOT...]",
	Short: "List every entity name and its observed values",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entitiesFlags.roots = args
		l, err := loadLayout(&entitiesFlags)
		if err != nil {
			return classify(err)
		}
		out, _ := json.MarshalIndent(l.Entities(), "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	f := entitiesCmd.Flags()
	f.StringSliceVar(&entitiesFlags.derivatives, "derivatives", nil, `"auto" to discover derivatives/*, or explicit paths`)
	f.StringVar(&entitiesFlags.cacheDir, "cache-dir", "", "reuse the index at this directory if present")
	f.BoolVar(&entitiesFlags.resetCache, "reset-cache", false, "discard any existing cache before indexing")
}
