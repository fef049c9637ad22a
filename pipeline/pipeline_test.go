package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chelsa_sampler/config"
	"chelsa_sampler/httputil"
	"chelsa_sampler/models"
	"chelsa_sampler/raster/rastertest"
	"chelsa_sampler/services"
	"chelsa_sampler/storage"
)

// Two sites inside the 3x3 test grid anchored at (-106, 41) with 0.1 degree
// cells, one site far outside it.
var testSites = []models.Site{
	{Stream: "boulder", Code: "BC1", Name: "Boulder Creek upper", Lon: -105.95, Lat: 40.95},
	{Stream: "boulder", Code: "BC2", Name: "Boulder Creek lower", Lon: -105.75, Lat: 40.75},
	{Stream: "farwater", Code: "FW1", Name: "Far Water", Lon: 10.0, Lat: 10.0},
}

func gridValues() []uint16 {
	vals := make([]uint16, 9)
	for i := range vals {
		vals[i] = 2860 // 12.85 C
	}
	return vals
}

func testServer(t *testing.T, names []string) *httptest.Server {
	t.Helper()
	body := rastertest.Build(3, 3, gridValues(), -106, 41, 0.1)
	mux := http.NewServeMux()
	for _, name := range names {
		mux.HandleFunc("/"+name, func(w http.ResponseWriter, r *http.Request) {
			w.Write(body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testPipeline(t *testing.T, manifestLines []string) (*Pipeline, *storage.SQLiteStore, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	manifestPath := filepath.Join(dir, "manifest.txt")
	var data []byte
	for _, line := range manifestLines {
		data = append(data, []byte(line+"\n")...)
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	cfg := &config.Config{
		Manifest: config.ManifestConfig{
			Path:     manifestPath,
			Variable: "tas",
			YearFrom: 2000,
			YearTo:   2019,
		},
		Fetch: config.FetchConfig{
			DataDir:          filepath.Join(dir, "data"),
			MinBytes:         64,
			SizeTolerance:    0.01,
			FailureThreshold: 1,
			Timeout:          30 * time.Second,
		},
		Output: config.OutputConfig{Dir: filepath.Join(dir, "output")},
		DBPath: filepath.Join(dir, "test.db"),
		Sites:  testSites,
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clients := httputil.NewClients(cfg.Fetch.Timeout)
	exporter := services.NewExportService(cfg, nil, nil)
	return New(cfg, clients, store, exporter), store, cfg
}

func TestRun_EndToEnd(t *testing.T) {
	names := []string{
		"CHELSA_tas_01_2000_V.2.1.tif",
		"CHELSA_tas_02_2000_V.2.1.tif",
	}
	srv := testServer(t, names)

	lines := []string{
		srv.URL + "/" + names[0],
		srv.URL + "/" + names[1],
		srv.URL + "/CHELSA_pr_01_2000_V.2.1.tif",  // wrong variable
		srv.URL + "/CHELSA_tas_01_1999_V.2.1.tif", // out of range
	}
	pipe, store, cfg := testPipeline(t, lines)

	if err := pipe.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	run, err := store.LastCompletedRun()
	if err != nil {
		t.Fatalf("LastCompletedRun: %v", err)
	}
	if run == nil {
		t.Fatal("no completed run recorded")
	}
	if run.FilesSelected != 2 {
		t.Errorf("FilesSelected = %d, want 2", run.FilesSelected)
	}
	if run.FilesFetched != 2 {
		t.Errorf("FilesFetched = %d, want 2", run.FilesFetched)
	}

	// 2 validated files x 3 sites, with the out-of-coverage site missing.
	if run.Records != 6 {
		t.Errorf("Records = %d, want 6", run.Records)
	}
	if run.MissingValues != 2 {
		t.Errorf("MissingValues = %d, want 2", run.MissingValues)
	}

	n, err := store.MeasurementCount(run.ID)
	if err != nil {
		t.Fatalf("MeasurementCount: %v", err)
	}
	if n != 6 {
		t.Errorf("stored measurements = %d, want 6", n)
	}

	csvName := fmt.Sprintf("tas_site_temperatures_%s.csv", run.StartedAt.Format("2006-01-02"))
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, csvName)); err != nil {
		t.Errorf("expected CSV %s: %v", csvName, err)
	}
}

func TestRun_SecondPassResumesEverything(t *testing.T) {
	names := []string{"CHELSA_tas_07_2015_V.2.1.tif"}
	srv := testServer(t, names)

	pipe, store, _ := testPipeline(t, []string{srv.URL + "/" + names[0]})

	if err := pipe.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := pipe.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	run, err := store.LastCompletedRun()
	if err != nil {
		t.Fatalf("LastCompletedRun: %v", err)
	}
	if run.FilesResumed != 1 {
		t.Errorf("FilesResumed = %d, want 1", run.FilesResumed)
	}
	if run.FilesFetched != 0 {
		t.Errorf("FilesFetched = %d, want 0", run.FilesFetched)
	}
}

func TestRun_AbortsOnUnreachableServer(t *testing.T) {
	srv := testServer(t, nil)
	url := srv.URL + "/CHELSA_tas_01_2000_V.2.1.tif"
	srv.Close()

	pipe, store, _ := testPipeline(t, []string{url})

	err := pipe.Run(context.Background())
	if err == nil {
		t.Fatal("expected abort error, got nil")
	}

	run, gerr := store.GetRun(1)
	if gerr != nil {
		t.Fatalf("GetRun: %v", gerr)
	}
	if run.Status != models.RunStatusAborted {
		t.Errorf("run status = %q, want %q", run.Status, models.RunStatusAborted)
	}
	if run.FinishedAt == nil {
		t.Error("aborted run has no finish time")
	}
}
