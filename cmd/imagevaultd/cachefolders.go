package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"

	"github.com/imagevault/core/cachefolder"
	"github.com/imagevault/core/store"
)

func registerCacheFolderCommands(app *kingpin.Application, dbPath, configPath, amqpURL *string) {
	folderCmd := app.Command("cache-folders", "Manage physical cache folder roots.")

	addCmd := folderCmd.Command("add", "Register a new cache folder root.")
	addName := addCmd.Arg("name", "Display name.").Required().String()
	addPath := addCmd.Arg("path", "Root path on disk.").Required().String()
	addPriority := addCmd.Flag("priority", "Placement priority, higher wins ties.").Default("0").Int()
	addMaxSize := addCmd.Flag("max-size-bytes", "Capacity cap in bytes; unset means unbounded.").Int64()

	actions[addCmd.FullCommand()] = func(ctx context.Context) error {
		svc, err := loadCoreServices(dbPath, configPath, amqpURL)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		if err := cachefolder.WriteProbe(*addPath); err != nil {
			return fmt.Errorf("path %q failed the write probe: %w", *addPath, err)
		}

		f := store.CacheFolder{Name: *addName, RootPath: *addPath, Priority: *addPriority, Active: true}
		if *addMaxSize > 0 {
			f.MaxSizeBytes = addMaxSize
		}

		id, err := svc.Store.CacheFolders().Create(ctx, f)
		if err != nil {
			return err
		}

		fmt.Println(id)

		return nil
	}

	listCmd := folderCmd.Command("list", "List cache folders and their usage.")

	actions[listCmd.FullCommand()] = func(ctx context.Context) error {
		svc, err := loadCoreServices(dbPath, configPath, amqpURL)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		folders, err := svc.Store.CacheFolders().List(ctx)
		if err != nil {
			return err
		}

		for _, f := range folders {
			limit := "unbounded"
			if f.MaxSizeBytes != nil {
				limit = humanize.Bytes(uint64(*f.MaxSizeBytes))
			}

			fmt.Printf("%s\t%s\t%s\tpriority=%d\tused=%s/%s\tactive=%v\n",
				f.ID, f.Name, f.RootPath, f.Priority, humanize.Bytes(uint64(f.CurrentSizeBytes)), limit, f.Active)
		}

		return nil
	}

	removeCmd := folderCmd.Command("remove", "Remove a cache folder (fails while any collection is bound to it).")
	removeID := removeCmd.Arg("id", "Cache folder id.").Required().String()

	actions[removeCmd.FullCommand()] = func(ctx context.Context) error {
		svc, err := loadCoreServices(dbPath, configPath, amqpURL)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		return svc.Store.CacheFolders().Delete(ctx, store.ID(*removeID))
	}
}
