package report

import (
	"log"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"chelsa_sampler/models"
)

// Dataset is the assembled measurement table, sorted by (code, year, month).
type Dataset struct {
	Records []models.Measurement
}

func New(records []models.Measurement) *Dataset {
	sorted := make([]models.Measurement, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Site.Code != b.Site.Code {
			return a.Site.Code < b.Site.Code
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})
	return &Dataset{Records: sorted}
}

type Completeness struct {
	Total   int
	Missing int
}

func (c Completeness) Percent() float64 {
	if c.Total == 0 {
		return 0
	}
	return 100 * float64(c.Missing) / float64(c.Total)
}

func (d *Dataset) Completeness() Completeness {
	c := Completeness{Total: len(d.Records)}
	for i := range d.Records {
		if d.Records[i].Missing() {
			c.Missing++
		}
	}
	return c
}

// SiteSummary describes one site's record count, completeness, value range
// and the span of years covered. Mean/Min/Max are over non-missing values.
type SiteSummary struct {
	Site     models.Site
	Count    int
	Missing  int
	Mean     float64
	Min      float64
	Max      float64
	YearFrom int
	YearTo   int
}

func (d *Dataset) SiteSummaries() []SiteSummary {
	byCode := make(map[string]*SiteSummary)
	values := make(map[string][]float64)
	var codes []string

	for i := range d.Records {
		rec := &d.Records[i]
		s, ok := byCode[rec.Site.Code]
		if !ok {
			s = &SiteSummary{Site: rec.Site, YearFrom: rec.Year, YearTo: rec.Year}
			byCode[rec.Site.Code] = s
			codes = append(codes, rec.Site.Code)
		}
		s.Count++
		if rec.Year < s.YearFrom {
			s.YearFrom = rec.Year
		}
		if rec.Year > s.YearTo {
			s.YearTo = rec.Year
		}
		if rec.Missing() {
			s.Missing++
			continue
		}
		values[rec.Site.Code] = append(values[rec.Site.Code], *rec.Celsius)
	}

	sort.Strings(codes)
	summaries := make([]SiteSummary, 0, len(codes))
	for _, code := range codes {
		s := byCode[code]
		if vals := values[code]; len(vals) > 0 {
			s.Mean = stat.Mean(vals, nil)
			s.Min = floats.Min(vals)
			s.Max = floats.Max(vals)
		}
		summaries = append(summaries, *s)
	}
	return summaries
}

// GroupMean is a grouped average keyed by year or by month.
type GroupMean struct {
	Key   int
	Count int
	Mean  float64
}

func (d *Dataset) YearlyMeans() []GroupMean {
	return d.groupMeans(func(m *models.Measurement) int { return m.Year })
}

func (d *Dataset) MonthlyMeans() []GroupMean {
	return d.groupMeans(func(m *models.Measurement) int { return m.Month })
}

func (d *Dataset) groupMeans(key func(*models.Measurement) int) []GroupMean {
	values := make(map[int][]float64)
	for i := range d.Records {
		rec := &d.Records[i]
		if rec.Missing() {
			continue
		}
		k := key(rec)
		values[k] = append(values[k], *rec.Celsius)
	}

	keys := make([]int, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	means := make([]GroupMean, 0, len(keys))
	for _, k := range keys {
		means = append(means, GroupMean{Key: k, Count: len(values[k]), Mean: stat.Mean(values[k], nil)})
	}
	return means
}

// LogSummary prints the human-readable phase summary.
func (d *Dataset) LogSummary() {
	c := d.Completeness()
	log.Printf("dataset: %d rows, %d missing (%.1f%%)", c.Total, c.Missing, c.Percent())

	for _, s := range d.SiteSummaries() {
		log.Printf("  %s (%s): n=%d missing=%d mean=%.2f min=%.2f max=%.2f years=%d-%d",
			s.Site.Code, s.Site.Name, s.Count, s.Missing, s.Mean, s.Min, s.Max, s.YearFrom, s.YearTo)
	}
	for _, g := range d.YearlyMeans() {
		log.Printf("  year %d: mean %.2f C over %d values", g.Key, g.Mean, g.Count)
	}
	for _, g := range d.MonthlyMeans() {
		log.Printf("  month %02d: mean %.2f C over %d values", g.Key, g.Mean, g.Count)
	}
}
