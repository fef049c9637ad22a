package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// WriteCSV persists the dataset as a comma-delimited table named
// <variable>_site_temperatures_<YYYY-MM-DD>.csv and returns its path.
// Missing values are written as NA so the row count stays exact.
func WriteCSV(dir, variable string, d *Dataset, runDate time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	name := fmt.Sprintf("%s_site_temperatures_%s.csv", variable, runDate.Format("2006-01-02"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"stream", "code", "name", "lon", "lat", "year", "month", "temp_c"}); err != nil {
		return "", err
	}

	for i := range d.Records {
		rec := &d.Records[i]
		value := "NA"
		if !rec.Missing() {
			value = strconv.FormatFloat(*rec.Celsius, 'f', 2, 64)
		}
		row := []string{
			rec.Site.Stream,
			rec.Site.Code,
			rec.Site.Name,
			strconv.FormatFloat(rec.Site.Lon, 'f', 4, 64),
			strconv.FormatFloat(rec.Site.Lat, 'f', 4, 64),
			strconv.Itoa(rec.Year),
			strconv.Itoa(rec.Month),
			value,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
