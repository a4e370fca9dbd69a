package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/imagevault/core/store"
)

func registerJobsCommands(app *kingpin.Application, dbPath, configPath, amqpURL *string) {
	jobsCmd := app.Command("jobs", "Inspect and manage background jobs.")

	listCmd := jobsCmd.Command("list", "List jobs.")
	status := listCmd.Flag("status", "Filter by status (Pending, InProgress, Completed, Failed, Cancelled).").String()

	actions[listCmd.FullCommand()] = func(ctx context.Context) error {
		svc, err := loadCoreServices(dbPath, configPath, amqpURL)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		filter := store.JobFilter{}
		if *status != "" {
			s := store.JobStatus(*status)
			filter.Status = &s
		}

		jobs, err := svc.Store.Jobs().List(ctx, filter)
		if err != nil {
			return err
		}

		for _, j := range jobs {
			completed, total, pct := j.Progress()
			fmt.Printf("%s\t%s\t%s\t%d/%d\t%.0f%%\n", j.ID, j.Kind, j.Status, completed, total, pct)
		}

		return nil
	}

	inspectCmd := jobsCmd.Command("inspect", "Show one job's full stage breakdown.")
	inspectID := inspectCmd.Arg("id", "Job id.").Required().String()

	actions[inspectCmd.FullCommand()] = func(ctx context.Context) error {
		svc, err := loadCoreServices(dbPath, configPath, amqpURL)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		j, ok, err := svc.Store.Jobs().Get(ctx, store.ID(*inspectID))
		if err != nil {
			return err
		}

		if !ok {
			return fmt.Errorf("job %q not found", *inspectID)
		}

		fmt.Printf("%s %s %s cancelled=%v\n", j.ID, j.Kind, j.Status, j.Cancelled)

		for name, s := range j.Stages {
			fmt.Printf("  %s: %s %d/%d %s\n", name, s.Status, s.CompletedItems, s.TotalItems, s.Message)
		}

		for _, e := range j.ErrorLog {
			fmt.Printf("  error: %s: %s\n", e.Item, e.Message)
		}

		return nil
	}

	cancelCmd := jobsCmd.Command("cancel", "Request cancellation of an in-progress job.")
	cancelID := cancelCmd.Arg("id", "Job id.").Required().String()

	actions[cancelCmd.FullCommand()] = func(ctx context.Context) error {
		svc, err := loadCoreServices(dbPath, configPath, amqpURL)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		return svc.Jobs.Manager.Cancel(ctx, store.ID(*cancelID))
	}
}
