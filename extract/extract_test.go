package extract

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"chelsa_sampler/models"
	"chelsa_sampler/raster/rastertest"
)

var testSites = []models.Site{
	{Stream: "boulder", Code: "BC1", Name: "upper", Lon: -105.95, Lat: 40.95},
	{Stream: "boulder", Code: "BC2", Name: "lower", Lon: -105.75, Lat: 40.75},
	{Stream: "faraway", Code: "FW1", Name: "off the grid", Lon: 10.0, Lat: 10.0},
}

// writeGrid covers lon [-106, -105.7], lat [40.7, 41] at 0.1 degrees with
// 2860 (12.85 C) in every cell.
func writeGrid(t *testing.T, name string) string {
	t.Helper()
	values := make([]uint16, 9)
	for i := range values {
		values[i] = 2860
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, rastertest.Build(3, 3, values, -106.0, 41.0, 0.1), 0644); err != nil {
		t.Fatalf("write grid: %v", err)
	}
	return path
}

func TestParseDate(t *testing.T) {
	year, month, err := ParseDate("CHELSA_tas_07_2015_V.2.1.tif")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if year != 2015 || month != 7 {
		t.Fatalf("expected 2015-07, got %d-%02d", year, month)
	}
}

func TestParseDate_NoMonthToken(t *testing.T) {
	if _, _, err := ParseDate("CHELSA_tas_2015.tif"); !errors.Is(err, ErrNoDate) {
		t.Fatalf("expected ErrNoDate, got %v", err)
	}
}

func TestParseDate_ImplausibleMonth(t *testing.T) {
	if _, _, err := ParseDate("CHELSA_tas_13_2015_V.2.1.tif"); !errors.Is(err, ErrNoDate) {
		t.Fatalf("expected ErrNoDate for month 13, got %v", err)
	}
}

func TestCelsiusFromRaw(t *testing.T) {
	got := CelsiusFromRaw(2860)
	if math.Abs(got-12.85) > 1e-9 {
		t.Fatalf("expected 12.85, got %g", got)
	}
}

func TestExtractFile_SamplesAllSites(t *testing.T) {
	path := writeGrid(t, "CHELSA_tas_07_2015_V.2.1.tif")
	ex := New(testSites)

	records, err := ex.ExtractFile(path)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(records) != len(testSites) {
		t.Fatalf("expected %d rows, got %d", len(testSites), len(records))
	}

	for _, rec := range records {
		if rec.Year != 2015 || rec.Month != 7 {
			t.Fatalf("bad date on %s: %d-%02d", rec.Site.Code, rec.Year, rec.Month)
		}
	}

	// In-coverage sites carry the converted value.
	for _, rec := range records[:2] {
		if rec.Missing() {
			t.Fatalf("expected value for %s", rec.Site.Code)
		}
		if math.Abs(*rec.Celsius-12.85) > 1e-9 {
			t.Fatalf("expected 12.85 for %s, got %g", rec.Site.Code, *rec.Celsius)
		}
	}

	// The out-of-coverage site still gets its row, as a missing value.
	if !records[2].Missing() {
		t.Fatalf("expected missing value for site outside coverage")
	}
}

func TestExtractFile_CorruptRasterFailsSoft(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CHELSA_tas_03_2002_V.2.1.tif")
	if err := os.WriteFile(path, []byte("II*\x00 garbage after a fine signature"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	ex := New(testSites)
	records, err := ex.ExtractFile(path)
	if err != nil {
		t.Fatalf("soft failure must not return an error, got %v", err)
	}
	if len(records) != len(testSites) {
		t.Fatalf("expected %d missing rows, got %d", len(testSites), len(records))
	}
	for _, rec := range records {
		if !rec.Missing() {
			t.Fatalf("expected missing value for %s", rec.Site.Code)
		}
		if rec.Year != 2002 || rec.Month != 3 {
			t.Fatalf("bad date on missing row: %d-%02d", rec.Year, rec.Month)
		}
	}
}

func TestExtractFile_UndatedNameSkipped(t *testing.T) {
	path := writeGrid(t, "CHELSA_tas_2015.tif")
	ex := New(testSites)

	records, err := ex.ExtractFile(path)
	if !errors.Is(err, ErrNoDate) {
		t.Fatalf("expected ErrNoDate, got %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected zero rows for undated file, got %d", len(records))
	}
}
