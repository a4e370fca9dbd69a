package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/imagevault/core/queue"
)

// registerServeCommand wires the long-running daemon mode: it starts the
// retention sweep and startup dead-letter recovery, then blocks until
// interrupted, mirroring cli/app.go's "serverAction" split between
// one-shot commands and the always-on server process. It does not
// consume from the work queue.
func registerServeCommand(app *kingpin.Application, dbPath, configPath, amqpURL *string) {
	cmd := app.Command("serve", "Run the background job manager: retention sweep and startup dead-letter recovery, until interrupted.")
	dlqName := cmd.Flag("dlq-queue", "Name of the dead-letter queue to drain at startup.").Default("imagevault.dlq").String()

	actions[cmd.FullCommand()] = func(ctx context.Context) error {
		svc, err := loadCoreServices(dbPath, configPath, amqpURL)
		if err != nil {
			return err
		}
		defer svc.Close() //nolint:errcheck

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		var drainer queue.Drainer
		if amqpBroker, ok := svc.Broker.(*queue.AMQPBroker); ok {
			if d := amqpBroker.Drainer(*dlqName); d != nil {
				drainer = d
			}
		}

		if err := svc.Jobs.StartBackground(ctx, svc.Config, drainer, svc.Broker); err != nil {
			return err
		}

		noteColor.Println("imagevaultd serving; press Ctrl+C to stop") //nolint:errcheck

		<-ctx.Done()

		return nil
	}
}
