package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chelsa_sampler/models"
)

// PostgresStore is the optional shared sink for measurement rows, so other
// analyses can query the series without touching this tool's local state.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS site_temperatures (
		stream TEXT,
		code TEXT NOT NULL,
		site_name TEXT,
		lon DOUBLE PRECISION,
		lat DOUBLE PRECISION,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		celsius DOUBLE PRECISION,
		batch_id UUID,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (code, year, month)
	);

	CREATE TABLE IF NOT EXISTS export_batches (
		id UUID PRIMARY KEY,
		run_date DATE NOT NULL,
		rows INTEGER NOT NULL,
		csv_path TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_site_temperatures_code ON site_temperatures(code, year);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) CreateExportBatch(ctx context.Context, batch *models.ExportBatch) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO export_batches (id, run_date, rows, csv_path)
		VALUES ($1, $2, $3, $4)`,
		batch.ID, batch.RunDate, batch.Rows, batch.CSVPath)
	return err
}

// UpsertMeasurements pushes the record set, replacing values for months that
// were re-sampled. A missing value overwrites an earlier value on purpose:
// the latest run is the authoritative view of the source files.
func (s *PostgresStore) UpsertMeasurements(ctx context.Context, batch *models.ExportBatch, records []models.Measurement) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range records {
		rec := &records[i]
		var celsius *float64
		if !rec.Missing() {
			celsius = rec.Celsius
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO site_temperatures (stream, code, site_name, lon, lat, year, month, celsius, batch_id, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			ON CONFLICT (code, year, month) DO UPDATE SET
				stream = EXCLUDED.stream,
				site_name = EXCLUDED.site_name,
				lon = EXCLUDED.lon,
				lat = EXCLUDED.lat,
				celsius = EXCLUDED.celsius,
				batch_id = EXCLUDED.batch_id,
				updated_at = NOW()`,
			rec.Site.Stream, rec.Site.Code, rec.Site.Name, rec.Site.Lon, rec.Site.Lat,
			rec.Year, rec.Month, celsius, batch.ID)
		if err != nil {
			return fmt.Errorf("upsert %s %d-%02d: %w", rec.Site.Code, rec.Year, rec.Month, err)
		}
	}

	return tx.Commit(ctx)
}
