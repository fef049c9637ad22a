package manifest

import (
	"os"
	"strings"
	"testing"

	"chelsa_sampler/config"
)

func TestParseLines_TrimsAndDropsEmpty(t *testing.T) {
	in := "  https://example.org/CHELSA_tas_01_2000_V.2.1.tif  \n\n\thttps://example.org/CHELSA_tas_02_2000_V.2.1.tif\n   \n"
	lines, err := ParseLines(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "https://example.org/CHELSA_tas_01_2000_V.2.1.tif" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
}

func TestFilter_TagAndYearRange(t *testing.T) {
	lines := []string{
		"https://example.org/monthly/tas_01_2000_x.tif",
		"https://example.org/monthly/tas_01_1999_x.tif",
		"https://example.org/monthly/precip_01_2005_x.tif",
	}

	selected := Filter(lines, "tas", 2000, 2019)
	if len(selected) != 1 {
		t.Fatalf("expected 1 selected line, got %d", len(selected))
	}
	if selected[0] != lines[0] {
		t.Fatalf("unexpected selection %q", selected[0])
	}
}

func TestFilter_MalformedYearExcluded(t *testing.T) {
	lines := []string{
		"https://example.org/CHELSA_tas_01_20xx_V.2.1.tif",
		"https://example.org/CHELSA_tas_2015.tif", // no underscore-delimited year token
		"https://example.org/CHELSA_tas_07_2015_V.2.1.tif",
	}

	selected := Filter(lines, "tas", 2000, 2019)
	if len(selected) != 1 {
		t.Fatalf("expected 1 selected line, got %d", len(selected))
	}
	if !strings.Contains(selected[0], "_07_2015_") {
		t.Fatalf("unexpected selection %q", selected[0])
	}
}

func TestFilter_PreservesManifestOrder(t *testing.T) {
	lines := []string{
		"https://example.org/CHELSA_tas_12_2019_V.2.1.tif",
		"https://example.org/CHELSA_tas_01_2000_V.2.1.tif",
		"https://example.org/CHELSA_tas_06_2010_V.2.1.tif",
	}

	selected := Filter(lines, "tas", 2000, 2019)
	if len(selected) != 3 {
		t.Fatalf("expected 3 selected lines, got %d", len(selected))
	}
	for i := range lines {
		if selected[i] != lines[i] {
			t.Fatalf("order not preserved at %d: %q", i, selected[i])
		}
	}
}

func TestFilter_InclusiveBounds(t *testing.T) {
	lines := []string{
		"https://example.org/CHELSA_tas_01_2000_V.2.1.tif",
		"https://example.org/CHELSA_tas_12_2019_V.2.1.tif",
		"https://example.org/CHELSA_tas_12_2020_V.2.1.tif",
	}

	selected := Filter(lines, "tas", 2000, 2019)
	if len(selected) != 2 {
		t.Fatalf("expected 2 selected lines, got %d", len(selected))
	}
}

func TestParseHTMLIndex(t *testing.T) {
	html := `<html><body>
		<a href="CHELSA_tas_01_2000_V.2.1.tif">tas 01 2000</a>
		<a href="/abs/CHELSA_tas_02_2000_V.2.1.tif">tas 02 2000</a>
		<a href="readme.txt">readme</a>
		<a href="subdir/">subdir</a>
	</body></html>`

	lines, err := ParseHTMLIndex(strings.NewReader(html), "https://mirror.example.org/chelsa/monthly/")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 links, got %d", len(lines))
	}
	if lines[0] != "https://mirror.example.org/chelsa/monthly/CHELSA_tas_01_2000_V.2.1.tif" {
		t.Fatalf("unexpected relative resolution %q", lines[0])
	}
	if lines[1] != "https://mirror.example.org/abs/CHELSA_tas_02_2000_V.2.1.tif" {
		t.Fatalf("unexpected absolute resolution %q", lines[1])
	}
}

func TestLoad_FromFileAppliesFilter(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/paths.txt"
	content := "https://example.org/CHELSA_tas_01_2000_V.2.1.tif\nhttps://example.org/CHELSA_pr_01_2000_V.2.1.tif\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	cfg := config.ManifestConfig{Path: path, Variable: "tas", YearFrom: 2000, YearTo: 2019}
	lines, err := Load(cfg, nil)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
}
