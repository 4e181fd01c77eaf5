package main

import (
	"fmt"
	"os"

	"clipflow/internal/cli"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "clipflow",
	Short:         "Validate and run clipflow workflows locally",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
