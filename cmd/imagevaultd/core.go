// Command imagevaultd exposes the control surface of spec §6 as a
// kingpin CLI: discovery/ingest, job inspection and cancellation,
// cache-folder CRUD, and collection management. Routing and auth are
// explicitly out of scope (spec §1); this binary is the thing an HTTP
// handler or another process embeds CoreServices to drive.
package main

import (
	"context"

	"github.com/imagevault/core/cachefolder"
	"github.com/imagevault/core/config"
	"github.com/imagevault/core/derivative"
	"github.com/imagevault/core/internal/imageproc"
	"github.com/imagevault/core/job"
	"github.com/imagevault/core/queue"
	"github.com/imagevault/core/store"
	"github.com/imagevault/core/store/boltstore"
)

// CoreServices bundles every wired component a command handler needs, in
// place of kopia's package-level singleton App (spec §9's redesign note:
// "explicit CoreServices value, passed down, never a global"). Built once
// in main and threaded through every kingpin action closure.
type CoreServices struct {
	Config    config.Config
	Store     store.Store
	Placement *cachefolder.Engine
	Generator *derivative.Generator
	Jobs      *job.Service
	Broker    queue.Broker
}

// NewCoreServices opens the bolt-backed store at dbPath and wires every
// component against it and cfg.
func NewCoreServices(dbPath string, cfg config.Config, broker queue.Broker) (*CoreServices, error) {
	st, err := boltstore.Open(dbPath)
	if err != nil {
		return nil, err
	}

	placement := cachefolder.New(st.CacheFolders(), nil)

	processor := imageproc.NewVipsProcessor()

	gen := derivative.NewWithRetryPolicy(st.Images(), st.Collections(), placement, processor, cfg.ProbeTimeout(), cfg.MaxInputPixels, cfg.RetrySchedule(), cfg.NetworkDriveErrorThreshold)

	folders, err := st.CacheFolders().List(context.Background())
	folderCount := 0
	if err == nil {
		folderCount = len(folders)
	}

	svc := job.NewService(st.Jobs(), cfg, folderCount)

	gen.OnNetworkDriveErrorBudgetExceeded(svc.ClampToSingleWorker)

	return &CoreServices{
		Config:    cfg,
		Store:     st,
		Placement: placement,
		Generator: gen,
		Jobs:      svc,
		Broker:    broker,
	}, nil
}

// Close releases resources CoreServices owns (currently just the bolt
// database handle).
func (c *CoreServices) Close() error {
	if closer, ok := c.Store.(interface{ Close() error }); ok {
		return closer.Close()
	}

	return nil
}
