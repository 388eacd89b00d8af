package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "inferd",
	Short: "Inference client daemon for document entity extraction",
	Long: "inferd mediates access to a GPU-resident LLM inference engine: token budget\n" +
		"enforcement, GPU capacity monitoring, deterministic sampling, and a direct/remote\n" +
		"client fallback for the extraction pipeline.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("inferd %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
