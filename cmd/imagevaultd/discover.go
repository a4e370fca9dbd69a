package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/imagevault/core/collection"
)

func registerDiscoverCommand(app *kingpin.Application, dbPath, configPath, amqpURL *string) {
	cmd := app.Command("discover", "Scan a parent directory for candidate image collections and ingest them.")

	root := cmd.Arg("root", "Parent directory to scan.").Required().String()
	includeSubfolders := cmd.Flag("subfolders", "Treat every subfolder as its own collection, not just the top level.").Bool()
	prefix := cmd.Flag("prefix", "Display-name prefix for discovered collections.").String()
	dryRun := cmd.Flag("dry-run", "List candidates without ingesting them.").Bool()

	actions[cmd.FullCommand()] = func(ctx context.Context) error {
		svc, err := loadCoreServices(dbPath, configPath, amqpURL)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		candidates, err := collection.FindCollections(ctx, *root, collection.Options{
			IncludeSubfolders: *includeSubfolders,
			Prefix:            *prefix,
			DenyPrefixes:      svc.Config.DangerousPathPrefixes,
		})
		if err != nil {
			return err
		}

		for _, c := range candidates {
			if *dryRun {
				fmt.Printf("%s\t%s\n", c.DisplayName, c.Path)
				continue
			}

			id, err := collection.Ingest(ctx, svc.Store.Collections(), nil, c)
			if err != nil {
				return err
			}

			fmt.Printf("%s\t%s\n", id, c.DisplayName)
		}

		return nil
	}
}
