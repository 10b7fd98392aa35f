package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of jotter",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "jotter version %s\n", jotter.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
