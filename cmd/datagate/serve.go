package main

import (
	"fmt"

	"github.com/artpar/datagate/bootstrap"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the engine",
	Long: `Start the DataGate server.

The server will:
  - Load configuration from datagate.yaml (or --config)
  - Load declarative definitions from the schema directory
  - Refuse to start on any schema problem
  - Serve data endpoints gated by each model's rule set

Environment variables override file configuration:
  DATAGATE_SERVER_PORT     - Server port (default: 8080)
  DATAGATE_SCHEMA_DIR      - Definitions directory (default: schemas)
  DATAGATE_STORE_DRIVER    - Record store: memory, sqlite, dynamo
  DATAGATE_STORE_DSN       - SQLite path (default: datagate.db)
  DATAGATE_SESSION_SECRET  - Session cookie signing secret
  DATAGATE_LOG_LEVEL       - Log level: debug, info, warn, error

Examples:
  datagate serve
  datagate serve --config /etc/datagate/config.yaml
  datagate serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "reload routes and API keys on config change")
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		HotReload:  hotReload,
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
