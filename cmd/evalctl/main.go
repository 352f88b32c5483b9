// Package main implements evalctl, a command line client for evaluating
// interview transcripts and managing interview history.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "evalctl",
	Short:        "Interview evaluation CLI",
	Long:         "evalctl evaluates interview transcripts on the six capability dimensions, runs batches over transcript files and manages the interview history store.",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
