package services

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"chelsa_sampler/config"
	"chelsa_sampler/models"
	"chelsa_sampler/report"
	"chelsa_sampler/storage"
)

// ExportService persists the final dataset: always a dated CSV plus the two
// plots on local disk, optionally mirrored to Postgres and S3.
type ExportService struct {
	outDir   string
	variable string
	s3Prefix string
	pg       *storage.PostgresStore
	s3       *storage.S3Uploader
}

func NewExportService(cfg *config.Config, pg *storage.PostgresStore, s3 *storage.S3Uploader) *ExportService {
	return &ExportService{
		outDir:   cfg.Output.Dir,
		variable: cfg.Manifest.Variable,
		s3Prefix: cfg.S3.Prefix,
		pg:       pg,
		s3:       s3,
	}
}

func (s *ExportService) Export(ctx context.Context, d *report.Dataset, runDate time.Time) (*models.ExportBatch, error) {
	csvPath, err := report.WriteCSV(s.outDir, s.variable, d, runDate)
	if err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	log.Printf("wrote %s (%d rows)", csvPath, len(d.Records))

	plotPaths, err := report.SavePlots(s.outDir, s.variable, d, runDate)
	if err != nil {
		return nil, fmt.Errorf("render plots: %w", err)
	}
	for _, p := range plotPaths {
		log.Printf("wrote %s", p)
	}

	batch := &models.ExportBatch{
		ID:      uuid.New(),
		RunDate: runDate,
		Rows:    len(d.Records),
		CSVPath: csvPath,
	}

	if s.pg != nil {
		if err := s.pg.UpsertMeasurements(ctx, batch, d.Records); err != nil {
			return nil, fmt.Errorf("postgres export: %w", err)
		}
		if err := s.pg.CreateExportBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("record export batch: %w", err)
		}
		log.Printf("pushed %d rows to Postgres (batch %s)", len(d.Records), batch.ID)
	}

	if s.s3 != nil {
		for _, p := range append([]string{csvPath}, plotPaths...) {
			key := path.Join(s.s3Prefix, filepath.Base(p))
			if err := s.s3.UploadFile(ctx, key, p); err != nil {
				return nil, fmt.Errorf("upload %s: %w", key, err)
			}
			log.Printf("uploaded %s", key)
		}
	}

	return batch, nil
}
