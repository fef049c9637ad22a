package manifest

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"chelsa_sampler/config"
)

// yearToken matches the four-digit year embedded between underscores in
// CHELSA file names, e.g. CHELSA_tas_07_2015_V.2.1.tif.
var yearToken = regexp.MustCompile(`_(\d{4})_`)

// ParseLines reads a plain-text manifest, one locator per line. Leading and
// trailing whitespace is tolerated; empty lines are dropped.
func ParseLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return lines, nil
}

// ParseHTMLIndex scrapes an HTML directory listing for .tif links, resolving
// relative hrefs against baseURL. Mirrors publish such indexes alongside the
// plain-text path list.
func ParseHTMLIndex(r io.Reader, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}

	var lines []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.HasSuffix(strings.ToLower(href), ".tif") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		lines = append(lines, base.ResolveReference(ref).String())
	})
	return lines, nil
}

// Filter keeps the locators that carry the content tag and whose embedded
// year token lies in [yearFrom, yearTo]. Order is preserved; a line with the
// tag but a malformed or out-of-range year is silently excluded.
func Filter(lines []string, variable string, yearFrom, yearTo int) []string {
	var selected []string
	for _, line := range lines {
		if !strings.Contains(line, variable) {
			continue
		}
		year, ok := embeddedYear(line)
		if !ok || year < yearFrom || year > yearTo {
			continue
		}
		selected = append(selected, line)
	}
	return selected
}

func embeddedYear(line string) (int, bool) {
	m := yearToken.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return year, true
}

// Load reads the manifest from MANIFEST_URL when set, otherwise from the
// local manifest file, and applies the variable/year filter.
func Load(cfg config.ManifestConfig, client *http.Client) ([]string, error) {
	var lines []string

	if cfg.URL != "" {
		resp, err := client.Get(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch manifest %s: %w", cfg.URL, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch manifest %s: status %d", cfg.URL, resp.StatusCode)
		}

		if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
			lines, err = ParseHTMLIndex(resp.Body, cfg.URL)
		} else {
			lines, err = ParseLines(resp.Body)
		}
		if err != nil {
			return nil, err
		}
	} else {
		f, err := os.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open manifest: %w", err)
		}
		defer f.Close()
		lines, err = ParseLines(f)
		if err != nil {
			return nil, err
		}
	}

	return Filter(lines, cfg.Variable, cfg.YearFrom, cfg.YearTo), nil
}
