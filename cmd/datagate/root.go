package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "datagate",
	Short: "Declarative data engine with rule-based authorization and index-planned queries",
	Long: `DataGate serves records defined by declarative schemas.

Models, authorization rules, secondary indexes, and custom operations
are declared in YAML. Every data operation is gated by the model's rule
set, and every query is planned through a declared index.

Quick start:
  datagate validate  # Check schemas and configuration
  datagate serve     # Start the engine`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "datagate.yaml", "config file path")
}
