// Package pipeline runs a full acquisition pass: select manifest entries,
// download and validate the rasters, sample every site, then report and
// export the assembled dataset.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"chelsa_sampler/config"
	"chelsa_sampler/extract"
	"chelsa_sampler/fetch"
	"chelsa_sampler/httputil"
	"chelsa_sampler/manifest"
	"chelsa_sampler/models"
	"chelsa_sampler/report"
	"chelsa_sampler/services"
	"chelsa_sampler/storage"
)

type Pipeline struct {
	cfg      *config.Config
	clients  *httputil.Clients
	store    *storage.SQLiteStore
	exporter *services.ExportService
}

func New(cfg *config.Config, clients *httputil.Clients, store *storage.SQLiteStore, exporter *services.ExportService) *Pipeline {
	return &Pipeline{cfg: cfg, clients: clients, store: store, exporter: exporter}
}

// Run executes one manifest -> fetch -> extract -> report pass. The run is
// recorded in SQLite up front and its final status is written on the way out,
// whatever happens in between.
func (p *Pipeline) Run(ctx context.Context) error {
	selected, err := manifest.Load(p.cfg.Manifest, p.clients.API)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	log.Printf("manifest: %d %s files in %d-%d", len(selected),
		p.cfg.Manifest.Variable, p.cfg.Manifest.YearFrom, p.cfg.Manifest.YearTo)

	run := &models.FetchRun{
		StartedAt:     time.Now(),
		Status:        models.RunStatusRunning,
		FilesSelected: len(selected),
	}
	runID, err := p.store.CreateRun(run)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	run.ID = runID

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		if err := p.store.UpdateRun(run); err != nil {
			log.Printf("warning: could not finalize run %d: %v", runID, err)
		}
	}()

	fetcher := fetch.New(p.cfg.Fetch, p.clients)
	fetcher.OnEvent = func(ev models.ArtifactEvent) {
		ev.RunID = runID
		if err := p.store.LogArtifact(&ev); err != nil {
			log.Printf("warning: artifact log: %v", err)
		}
	}

	res, err := fetcher.FetchAll(ctx, selected)
	if res != nil {
		run.FilesResumed = res.Resumed
		run.FilesFetched = res.Downloaded
		run.FilesFailed = len(res.Failed)
	}
	if err != nil {
		var abort *fetch.AbortError
		if errors.As(err, &abort) {
			run.Status = models.RunStatusAborted
			if names, ferr := p.store.RecentFailures(runID, 10); ferr == nil && len(names) > 0 {
				log.Printf("recent failures on record: %s", strings.Join(names, ", "))
			}
		} else {
			run.Status = models.RunStatusFailed
		}
		return err
	}
	log.Printf("fetch phase: %d validated (%d resumed, %d downloaded), %d failed",
		len(res.Validated), res.Resumed, res.Downloaded, len(res.Failed))

	ex := extract.New(p.cfg.Sites)
	var records []models.Measurement
	for _, artifact := range res.Validated {
		rows, err := ex.ExtractFile(artifact)
		if err != nil {
			log.Printf("warning: skipping %s: %v", filepath.Base(artifact), err)
			continue
		}
		records = append(records, rows...)
	}

	ds := report.New(records)
	ds.LogSummary()

	comp := ds.Completeness()
	run.Records = comp.Total
	run.MissingValues = comp.Missing

	if err := p.store.InsertMeasurements(runID, ds.Records); err != nil {
		run.Status = models.RunStatusFailed
		return fmt.Errorf("store measurements: %w", err)
	}

	if _, err := p.exporter.Export(ctx, ds, run.StartedAt); err != nil {
		run.Status = models.RunStatusFailed
		return err
	}

	run.Status = models.RunStatusCompleted
	return nil
}
