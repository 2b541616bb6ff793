package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	metadataFlags sharedFlags
	metadataFile  string
)

var metadataCmd = &cobra.Command{
	Use:   "metadata ROOT [ROOT...]",
	Short: "Show resolved sidecar metadata for one file, or every known metadata key if --file is omitted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		metadataFlags.roots = args
		metadataFlags.indexMetadata = true
		l, err := loadLayout(&metadataFlags)
		if err != nil {
			return classify(err)
		}

		if metadataFile == "" {
			out, _ := json.MarshalIndent(l.Metadata(), "", "  ")
			fmt.Println(string(out))
			return nil
		}

		for _, vf := range l.Materialize() {
			if vf.Path == metadataFile {
				out, _ := json.MarshalIndent(vf.Metadata(), "", "  ")
				fmt.Println(string(out))
				return nil
			}
		}
		return classify(fmt.Errorf("metadata: no file matching %q", metadataFile))
	},
}

func init() {
	f := metadataCmd.Flags()
	f.StringSliceVar(&metadataFlags.derivatives, "derivatives", nil, `"auto" to discover derivatives/*, or explicit paths`)
	f.StringVar(&metadataFlags.cacheDir, "cache-dir", "", "reuse the index at this directory if present")
	f.BoolVar(&metadataFlags.resetCache, "reset-cache", false, "discard any existing cache before indexing")
	f.StringVar(&metadataFile, "file", "", "show resolved metadata for this single file path")
}
