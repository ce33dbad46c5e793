package relicarium

import (
	"flag"
	"fmt"
)

// Parse parses command line arguments and returns the command to execute
// together with the application configuration. Configuration is loaded from
// the environment (and a .env file when present); flags override it.
func Parse(args []string) (Command, *Config, error) {
	flagSet := flag.NewFlagSet("relicarium", flag.ContinueOnError)

	var (
		storeBackend = flagSet.String("store", "", "Store backend: surrealdb, postgres or memory (overrides RELICARIUM_STORE)")
		port         = flagSet.String("port", "", "Server port (overrides PORT)")
		logLevel     = flagSet.String("log-level", "", "Log level: trace, debug, info, warn, error (overrides LOG_LEVEL)")
	)

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	remainingArgs := flagSet.Args()
	if len(remainingArgs) == 0 {
		return nil, nil, fmt.Errorf(`subcommand required

Usage: relicarium [flags] <command>

Commands:
  run       Start the relicarium server
  migrate   Run database migrations

Examples:
  relicarium run                        # Serve with the configured backend
  relicarium -store postgres run        # Serve against PostgreSQL
  relicarium -store memory run          # Serve without external dependencies
  relicarium migrate                    # Initialize the backend schema
  relicarium -port 8090 run`)
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if *storeBackend != "" {
		config.StoreBackend = *storeBackend
	}
	if *port != "" {
		config.ServerPort = *port
	}
	if *logLevel != "" {
		config.LogLevel = *logLevel
	}

	var cmd Command
	switch remainingArgs[0] {
	case "run":
		cmd = &RunCommand{}
	case "migrate":
		cmd = &MigrateCommand{}
	default:
		return nil, nil, fmt.Errorf("unknown command: %s\n\nValid commands: run, migrate", remainingArgs[0])
	}

	return cmd, config, nil
}
