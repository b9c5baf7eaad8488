package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/raniellyferreira/inmemdb"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of inmemdb",
	Run: func(cmd *cobra.Command, _ []string) {
		info := inmemdb.VersionInfo()
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := cmd.OutOrStdout()
		for _, k := range keys {
			fmt.Fprintf(out, "%s: %s\n", k, info[k])
		}
	},
}
