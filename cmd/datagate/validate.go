package main

import (
	"fmt"
	"os"

	"github.com/artpar/datagate/config"
	"github.com/artpar/datagate/core/registry"
	"github.com/artpar/datagate/core/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and schemas before deployment",
	Long: `Validate the DataGate configuration and declarative definitions.

Checks:
  - Config YAML syntax and required fields
  - Every model, type, and operation definition
  - Cross-definition references (duplicate names, unresolved types)

The same checks run at startup; validate lets CI catch schema problems
before a deploy.

Examples:
  datagate validate
  datagate validate --config /etc/datagate/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	// Check file exists
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	// Load and validate config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)

	// Parse definitions
	defs, err := schema.ParseDir(cfg.Schema.Dir)
	if err != nil {
		fmt.Printf("  %s Definitions parse\n", crossMark)
		return fmt.Errorf("schema error: %w", err)
	}
	fmt.Printf("  %s Definitions parse\n", checkMark)

	// Build registry (duplicate names, unresolved references)
	reg, err := registry.Build(defs)
	if err != nil {
		fmt.Printf("  %s Registry builds\n", crossMark)
		return fmt.Errorf("schema error: %w", err)
	}
	fmt.Printf("  %s Registry builds\n", checkMark)

	// Show summary
	fmt.Printf("  %s Store driver: %s\n", checkMark, cfg.Store.Driver)
	fmt.Printf("  %s Models: %d\n", checkMark, len(reg.Models()))
	fmt.Printf("  %s Operations: %d\n", checkMark, len(reg.Operations()))
	fmt.Printf("  %s Guard routes: %d\n", checkMark, len(cfg.Routes))

	fmt.Println()
	fmt.Println("Configuration is valid.")
	return nil
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
