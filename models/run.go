package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusAborted   RunStatus = "aborted"
)

// FetchRun is one end-to-end pipeline execution, recorded in SQLite.
type FetchRun struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    *time.Time
	Status        RunStatus
	FilesSelected int
	FilesResumed  int
	FilesFetched  int
	FilesFailed   int
	Records       int
	MissingValues int
}

// Per-artifact actions logged by the fetcher.
const (
	ArtifactResumed    = "resumed"
	ArtifactDownloaded = "downloaded"
	ArtifactFailed     = "failed"
)

// ArtifactEvent is one fetcher decision about one remote file.
type ArtifactEvent struct {
	ID        int64
	RunID     int64
	Name      string
	URL       string
	Action    string
	Bytes     int64
	Error     string
	CreatedAt time.Time
}

// ExportBatch groups the measurement rows pushed to Postgres by one run.
type ExportBatch struct {
	ID      uuid.UUID
	RunDate time.Time
	Rows    int
	CSVPath string
}
