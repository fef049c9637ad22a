package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"chelsa_sampler/models"
)

// SQLiteStore keeps the operational record of pipeline runs: what was
// fetched, what failed and the measurements each run produced.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fetch_runs (
		id INTEGER PRIMARY KEY,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		files_selected INTEGER DEFAULT 0,
		files_resumed INTEGER DEFAULT 0,
		files_fetched INTEGER DEFAULT 0,
		files_failed INTEGER DEFAULT 0,
		records INTEGER DEFAULT 0,
		missing_values INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS artifact_log (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		name TEXT NOT NULL,
		url TEXT,
		action TEXT,
		bytes INTEGER,
		error TEXT,
		created_at DATETIME,
		FOREIGN KEY (run_id) REFERENCES fetch_runs(id)
	);

	CREATE TABLE IF NOT EXISTS measurements (
		run_id INTEGER NOT NULL,
		stream TEXT,
		code TEXT NOT NULL,
		site_name TEXT,
		lon REAL,
		lat REAL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		celsius REAL,
		PRIMARY KEY (run_id, code, year, month)
	);

	CREATE INDEX IF NOT EXISTS idx_artifact_log_run ON artifact_log(run_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_artifact_log_action ON artifact_log(action);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON fetch_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.FetchRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO fetch_runs (started_at, status, files_selected)
		VALUES (?, ?, ?)`,
		run.StartedAt, run.Status, run.FilesSelected)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.FetchRun) error {
	_, err := s.db.Exec(`
		UPDATE fetch_runs SET finished_at = ?, status = ?, files_selected = ?,
			files_resumed = ?, files_fetched = ?, files_failed = ?, records = ?, missing_values = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.FilesSelected,
		run.FilesResumed, run.FilesFetched, run.FilesFailed, run.Records, run.MissingValues, run.ID)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.FetchRun, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, status, files_selected, files_resumed,
			files_fetched, files_failed, records, missing_values
		FROM fetch_runs WHERE id = ?`, id)

	var run models.FetchRun
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.StartedAt, &finished, &run.Status, &run.FilesSelected,
		&run.FilesResumed, &run.FilesFetched, &run.FilesFailed, &run.Records, &run.MissingValues)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

func (s *SQLiteStore) LogArtifact(ev *models.ArtifactEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO artifact_log (run_id, name, url, action, bytes, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, ev.Name, ev.URL, ev.Action, ev.Bytes, ev.Error, ev.CreatedAt)
	return err
}

// RecentFailures returns the newest failed artifact names for a run, newest
// first, for the abort diagnostic.
func (s *SQLiteStore) RecentFailures(runID int64, limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT name FROM artifact_log
		WHERE run_id = ? AND action = ?
		ORDER BY created_at DESC LIMIT ?`, runID, models.ArtifactFailed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// InsertMeasurements stores a run's full record set in one transaction.
func (s *SQLiteStore) InsertMeasurements(runID int64, records []models.Measurement) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO measurements (run_id, stream, code, site_name, lon, lat, year, month, celsius)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]
		var celsius interface{}
		if !rec.Missing() {
			celsius = *rec.Celsius
		}
		if _, err := stmt.Exec(runID, rec.Site.Stream, rec.Site.Code, rec.Site.Name,
			rec.Site.Lon, rec.Site.Lat, rec.Year, rec.Month, celsius); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// MeasurementCount is used by tests and the run summary.
func (s *SQLiteStore) MeasurementCount(runID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM measurements WHERE run_id = ?`, runID).Scan(&count)
	return count, err
}

func (s *SQLiteStore) LastCompletedRun() (*models.FetchRun, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, status, files_selected, files_resumed,
			files_fetched, files_failed, records, missing_values
		FROM fetch_runs WHERE status = ? ORDER BY started_at DESC LIMIT 1`,
		models.RunStatusCompleted)

	var run models.FetchRun
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.StartedAt, &finished, &run.Status, &run.FilesSelected,
		&run.FilesResumed, &run.FilesFetched, &run.FilesFailed, &run.Records, &run.MissingValues)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

// PruneArtifactLog drops log rows older than the retention window.
func (s *SQLiteStore) PruneArtifactLog(olderThan time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM artifact_log WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
