// Package main provides the entry point for the RAIoT club portal backend
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "raiot-portal",
	Short:         "RAIoT club portal backend",
	Long:          "Member profile API and sequential member ID allocation for the RAIoT club portal.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(counterCmd)
	rootCmd.AddCommand(reconcileCmd)
}
