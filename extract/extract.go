package extract

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"strconv"

	"chelsa_sampler/models"
	"chelsa_sampler/raster"
)

// dateToken matches the _MM_YYYY_ fragment of CHELSA file names,
// e.g. CHELSA_tas_07_2015_V.2.1.tif.
var dateToken = regexp.MustCompile(`_(\d{2})_(\d{4})_`)

// ErrNoDate marks an artifact whose name lacks the month/year token. Such
// files contribute zero rows and the caller skips them with a warning.
var ErrNoDate = errors.New("no month/year token in file name")

// Raw CHELSA temperature values are tenths of a degree Kelvin.
const (
	kelvinScale  = 0.1
	kelvinOffset = 273.15
)

// CelsiusFromRaw converts a raw grid value to degrees Celsius.
func CelsiusFromRaw(raw int) float64 {
	return float64(raw)*kelvinScale - kelvinOffset
}

// ParseDate extracts year and month from an artifact file name.
func ParseDate(name string) (year, month int, err error) {
	m := dateToken.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrNoDate, name)
	}
	month, _ = strconv.Atoi(m[1])
	year, _ = strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("%w: month %d in %s", ErrNoDate, month, name)
	}
	return year, month, nil
}

// Extractor samples a fixed site set from validated artifacts.
type Extractor struct {
	sites []models.Site
}

func New(sites []models.Site) *Extractor {
	return &Extractor{sites: sites}
}

// ExtractFile produces exactly one measurement per site for one artifact.
// An unreadable raster fails soft: every site still gets a row, with a
// missing value, so one bad file never shrinks the dataset. Only a name
// without a date token returns an error (ErrNoDate), because no rows can be
// attributed to a month at all.
func (e *Extractor) ExtractFile(path string) ([]models.Measurement, error) {
	name := filepath.Base(path)
	year, month, err := ParseDate(name)
	if err != nil {
		return nil, err
	}

	grid, err := raster.Open(path)
	if err != nil {
		log.Printf("  unreadable raster %s: %v; recording missing values", name, err)
		return e.missingRows(year, month), nil
	}

	records := make([]models.Measurement, 0, len(e.sites))
	for _, site := range e.sites {
		rec := models.Measurement{Site: site, Year: year, Month: month}
		raw, err := grid.Sample(site.Coord())
		if err != nil {
			log.Printf("  site %s: %v", site.Code, err)
		} else {
			v := CelsiusFromRaw(raw)
			rec.Celsius = &v
		}
		records = append(records, rec)
	}
	return records, nil
}

func (e *Extractor) missingRows(year, month int) []models.Measurement {
	records := make([]models.Measurement, 0, len(e.sites))
	for _, site := range e.sites {
		records = append(records, models.Measurement{Site: site, Year: year, Month: month})
	}
	return records
}
