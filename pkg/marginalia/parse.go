package marginalia

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

const usage = `Usage: marginalia [flags] <command>

Commands:
  run       Start the marginalia server
  migrate   Create or update the store schema

Examples:
  marginalia run                                  # in-memory store on :8080
  marginalia --store postgres migrate
  marginalia --store postgres --port 8090 run
  marginalia --config /etc/marginalia.yaml run
`

// Parse parses command line arguments and returns the command to execute
// together with the layered configuration.
func Parse(args []string) (Command, *Config, error) {
	flagSet := pflag.NewFlagSet("marginalia", pflag.ContinueOnError)
	flagSet.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flagSet.PrintDefaults()
	}

	var (
		configPath  = flagSet.String("config", os.Getenv("MARGINALIA_CONFIG"), "Path to a YAML config file")
		port        = flagSet.String("port", "", "Server port")
		baseURL     = flagSet.String("base-url", "", "Public base URL used in activity URIs")
		readOnly    = flagSet.Bool("read-only", false, "Reject every write")
		backend     = flagSet.String("store", "", "Store backend: memory, postgres or surrealdb")
		postgresDSN = flagSet.String("postgres-dsn", "", "PostgreSQL connection string")
		surrealURL  = flagSet.String("surrealdb-url", "", "SurrealDB WebSocket URL")
		logLevel    = flagSet.String("log-level", "", "Log level: debug, info, warn or error")
		logPath     = flagSet.String("log-file", "", "Append logs to this file instead of stdout")
		otlp        = flagSet.String("otlp-endpoint", "", "OTLP/HTTP trace collector endpoint")
	)

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	remaining := flagSet.Args()
	if len(remaining) == 0 {
		return nil, nil, fmt.Errorf("subcommand required\n\n%s", usage)
	}

	var cmd Command
	switch remaining[0] {
	case "run":
		cmd = &RunCommand{}
	case "migrate":
		cmd = &MigrateCommand{}
	default:
		return nil, nil, fmt.Errorf("unknown command: %s\n\nValid commands: run, migrate", remaining[0])
	}

	config := DefaultConfig()
	if *configPath != "" {
		if err := loadFile(config, *configPath); err != nil {
			return nil, nil, err
		}
	}
	if err := loadEnv(config); err != nil {
		return nil, nil, err
	}

	// flags win, but only when given
	override := func(name string, apply func()) {
		if flagSet.Changed(name) {
			apply()
		}
	}
	override("port", func() { config.Port = *port })
	override("base-url", func() { config.BaseURL = *baseURL })
	override("read-only", func() { config.ReadOnly = *readOnly })
	override("store", func() { config.Store.Backend = Backend(*backend) })
	override("postgres-dsn", func() { config.Store.Postgres.DSN = *postgresDSN })
	override("surrealdb-url", func() { config.Store.SurrealDB.URL = *surrealURL })
	override("log-level", func() { config.Log.Level = *logLevel })
	override("log-file", func() { config.Log.Path = *logPath })
	override("otlp-endpoint", func() { config.Telemetry.Endpoint = *otlp })

	if err := config.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cmd, config, nil
}
