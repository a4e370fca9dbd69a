package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/imagevault/core/config"
)

var (
	errorColor = color.New(color.FgHiRed)
	noteColor  = color.New(color.FgHiCyan)
)

func main() {
	app := kingpin.New("imagevaultd", "Collection discovery, caching and derivative generation for image libraries.")

	dbPath := app.Flag("db", "Path to the bolt metadata database.").Default("imagevault.db").String()
	configPath := app.Flag("config", "Path to a YAML config file overriding the defaults.").String()
	amqpURL := app.Flag("amqp-url", "AMQP broker URL for the work queue (omitted: jobs run without a broker).").String()

	ctx := context.Background()

	registerDiscoverCommand(app, dbPath, configPath, amqpURL)
	registerJobsCommands(app, dbPath, configPath, amqpURL)
	registerCacheFolderCommands(app, dbPath, configPath, amqpURL)
	registerCollectionCommands(app, dbPath, configPath, amqpURL)
	registerServeCommand(app, dbPath, configPath, amqpURL)

	cmd, err := app.Parse(os.Args[1:])
	if err != nil {
		errorColor.Fprintf(os.Stderr, "error: %v\n", err) //nolint:errcheck
		os.Exit(1)
	}

	if err := dispatch(ctx, cmd); err != nil {
		errorColor.Fprintf(os.Stderr, "error: %v\n", err) //nolint:errcheck
		os.Exit(1)
	}
}

// actions is populated by each registerXCommands call with the handler
// for the command string kingpin matched, mirroring cli/app.go's
// pattern of binding each subcommand to a closure over CoreServices
// without a package-level App singleton.
var actions = map[string]func(ctx context.Context) error{}

func dispatch(ctx context.Context, cmd string) error {
	action, ok := actions[cmd]
	if !ok {
		return fmt.Errorf("unrecognized command %q", cmd)
	}

	return action(ctx)
}

func loadCoreServices(dbPath, configPath, amqpURL *string) (*CoreServices, error) {
	cfg := config.Default()

	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	return NewCoreServices(*dbPath, cfg, brokerOrNil(*amqpURL))
}
