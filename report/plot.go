package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// SavePlots renders the two run figures into dir and returns their paths:
// a per-site box plot of monthly values and a per-site annual mean trend
// with an ordinary least squares fit.
func SavePlots(dir, variable string, d *Dataset, runDate time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	stamp := runDate.Format("2006-01-02")

	dist, err := distributionPlot(d)
	if err != nil {
		return nil, err
	}
	distPath := filepath.Join(dir, fmt.Sprintf("%s_monthly_distribution_%s.png", variable, stamp))
	if err := dist.Save(9*vg.Inch, 6*vg.Inch, distPath); err != nil {
		return nil, fmt.Errorf("save %s: %w", distPath, err)
	}

	trend, err := trendPlot(d)
	if err != nil {
		return nil, err
	}
	trendPath := filepath.Join(dir, fmt.Sprintf("%s_annual_trend_%s.png", variable, stamp))
	if err := trend.Save(9*vg.Inch, 6*vg.Inch, trendPath); err != nil {
		return nil, fmt.Errorf("save %s: %w", trendPath, err)
	}

	return []string{distPath, trendPath}, nil
}

func distributionPlot(d *Dataset) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Monthly temperature distribution by site"
	p.Y.Label.Text = "Temperature (C)"

	var codes []string
	for i, s := range d.SiteSummaries() {
		vals := siteValues(d, s.Site.Code)
		codes = append(codes, s.Site.Code)
		if len(vals) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(24), float64(i), plotter.Values(vals))
		if err != nil {
			return nil, fmt.Errorf("box plot %s: %w", s.Site.Code, err)
		}
		p.Add(box)
	}
	p.NominalX(codes...)
	return p, nil
}

func trendPlot(d *Dataset) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Annual mean temperature by site"
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Temperature (C)"
	p.Legend.Top = true

	for i, s := range d.SiteSummaries() {
		years, means := annualMeans(d, s.Site.Code)
		if len(years) == 0 {
			continue
		}

		pts := make(plotter.XYs, len(years))
		for j := range years {
			pts[j].X = years[j]
			pts[j].Y = means[j]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("trend line %s: %w", s.Site.Code, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(s.Site.Code, line)

		if len(years) < 2 {
			continue
		}
		alpha, beta := stat.LinearRegression(years, means, nil, false)
		x0, x1 := years[0], years[len(years)-1]
		fit, err := plotter.NewLine(plotter.XYs{
			{X: x0, Y: alpha + beta*x0},
			{X: x1, Y: alpha + beta*x1},
		})
		if err != nil {
			return nil, fmt.Errorf("fit line %s: %w", s.Site.Code, err)
		}
		fit.Color = plotutil.Color(i)
		fit.Dashes = plotutil.Dashes(2)
		p.Add(fit)
	}
	return p, nil
}

func siteValues(d *Dataset, code string) []float64 {
	var vals []float64
	for i := range d.Records {
		rec := &d.Records[i]
		if rec.Site.Code != code || rec.Missing() {
			continue
		}
		vals = append(vals, *rec.Celsius)
	}
	return vals
}

// annualMeans returns the site's per-year mean values in year order.
func annualMeans(d *Dataset, code string) (years, means []float64) {
	byYear := make(map[int][]float64)
	for i := range d.Records {
		rec := &d.Records[i]
		if rec.Site.Code != code || rec.Missing() {
			continue
		}
		byYear[rec.Year] = append(byYear[rec.Year], *rec.Celsius)
	}

	var keys []int
	for y := range byYear {
		keys = append(keys, y)
	}
	sort.Ints(keys)

	for _, y := range keys {
		years = append(years, float64(y))
		means = append(means, stat.Mean(byYear[y], nil))
	}
	return years, means
}
