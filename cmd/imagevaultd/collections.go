package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/imagevault/core/collection"
	"github.com/imagevault/core/derivative"
	"github.com/imagevault/core/internal/imageproc"
	"github.com/imagevault/core/job"
	"github.com/imagevault/core/store"
)

func registerCollectionCommands(app *kingpin.Application, dbPath, configPath, amqpURL *string) {
	colCmd := app.Command("collections", "Manage ingested collections.")

	listCmd := colCmd.Command("list", "List collections.")
	page := listCmd.Flag("page", "Page number, 1-based.").Default("1").Int()
	pageSize := listCmd.Flag("page-size", "Page size (0 = all).").Default("50").Int()

	actions[listCmd.FullCommand()] = func(ctx context.Context) error {
		svc, err := loadCoreServices(dbPath, configPath, amqpURL)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		cols, err := svc.Store.Collections().List(ctx, store.Page{Number: *page, PageSize: *pageSize})
		if err != nil {
			return err
		}

		for _, c := range cols {
			fmt.Printf("%s\t%s\t%s\t%s\timages=%d\n", c.ID, c.Name, c.SourceKind, c.SourcePath, c.Settings.TotalImages)
		}

		return nil
	}

	deleteCmd := colCmd.Command("delete", "Delete a collection's metadata record.")
	deleteID := deleteCmd.Arg("id", "Collection id.").Required().String()

	actions[deleteCmd.FullCommand()] = func(ctx context.Context) error {
		svc, err := loadCoreServices(dbPath, configPath, amqpURL)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		return svc.Store.Collections().Delete(ctx, store.ID(*deleteID))
	}

	rescanCmd := colCmd.Command("rescan", "Re-run scan → thumbnail → cache for a collection.")
	rescanID := rescanCmd.Arg("id", "Collection id.").Required().String()
	forceRescan := rescanCmd.Flag("force", "Re-probe every image, not just new ones.").Bool()

	actions[rescanCmd.FullCommand()] = func(ctx context.Context) error {
		svc, err := loadCoreServices(dbPath, configPath, amqpURL)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		col, ok, err := svc.Store.Collections().GetByID(ctx, store.ID(*rescanID))
		if err != nil {
			return err
		}

		if !ok {
			return fmt.Errorf("collection %q not found", *rescanID)
		}

		j, err := svc.Jobs.Manager.Submit(ctx, job.NewJob(store.JobCollectionScan, &col.ID))
		if err != nil {
			return err
		}

		if err := svc.Jobs.Manager.Start(ctx, j); err != nil {
			return err
		}

		result, err := collection.Scan(ctx, svc.Store.Images(), svc.Store.Collections(), col, *forceRescan)
		if err != nil {
			_ = svc.Jobs.Manager.Fail(ctx, j, err)
			return err
		}

		if err := svc.Jobs.Manager.AdvanceStage(ctx, j, "scan", store.StageCompleted, result.ImagesFound, result.ImagesFound, ""); err != nil {
			return err
		}

		fmt.Printf("job %s: scanned %d images (%d new)\n", j, result.ImagesFound, result.ImagesCreated)

		return nil
	}

	regenCmd := colCmd.Command("regen-cache", "Clear and regenerate every cache derivative for a collection.")
	regenID := regenCmd.Arg("id", "Collection id.").Required().String()

	actions[regenCmd.FullCommand()] = func(ctx context.Context) error {
		svc, err := loadCoreServices(dbPath, configPath, amqpURL)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		col, ok, err := svc.Store.Collections().GetByID(ctx, store.ID(*regenID))
		if err != nil {
			return err
		}

		if !ok {
			return fmt.Errorf("collection %q not found", *regenID)
		}

		derivativeDir, folderID, err := svc.Placement.ResolveDestination(ctx, col.ID, 0)
		if err != nil {
			return err
		}

		if err := derivative.ClearCollectionCache(ctx, svc.Store.Images(), col.ID, derivativeDir, svc.Placement, folderID); err != nil {
			return err
		}

		images, err := svc.Store.Images().ListByCollection(ctx, col.ID, store.Page{}, store.SortSpec{})
		if err != nil {
			return err
		}

		j, err := svc.Jobs.Manager.Submit(ctx, job.NewJob(store.JobCacheGeneration, &col.ID))
		if err != nil {
			return err
		}

		if err := svc.Jobs.Manager.Start(ctx, j); err != nil {
			return err
		}

		completed := 0

		params := derivative.Params{
			TargetFormat:  imageproc.ParseFormat(svc.Config.CacheFormatDefault),
			TargetQuality: svc.Config.CacheQualityDefault,
			Overwrite:     true,
		}

		for _, img := range images {
			if err := svc.Generator.GenerateOne(ctx, col, img, params); err != nil {
				_ = svc.Jobs.Manager.RecordError(ctx, j, img.RelativePath, err)
				continue
			}

			completed++

			if err := svc.Jobs.Manager.AdvanceStage(ctx, j, "cache", store.StageInProgress, completed, len(images), ""); err != nil {
				return err
			}
		}

		return svc.Jobs.Manager.AdvanceStage(ctx, j, "cache", store.StageCompleted, completed, len(images), "")
	}
}
