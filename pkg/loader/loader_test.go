package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/datefacet/pkg/model"
)

const samplePayload = `{"baseline": [["2020", 100]], "facets": [{"term": "x", "date": [{"key": "2020", "count": 5}]}]}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFindDataPath_Preference(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "other.json", samplePayload)
	writeFile(t, dir, "facets.json", "")
	writeFile(t, dir, "facet-data.json", samplePayload)
	writeFile(t, dir, "facets.json.backup.json", samplePayload)

	got, err := FindDataPath(dir)
	if err != nil {
		t.Fatalf("FindDataPath: %v", err)
	}
	if filepath.Base(got) != "facet-data.json" {
		t.Errorf("picked %s, want facet-data.json (facets.json is empty)", got)
	}
}

func TestFindDataPath_FallbackAndMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "hi")
	if _, err := FindDataPath(dir); err == nil {
		t.Error("expected error when no json file exists")
	}
	writeFile(t, dir, "export.json", samplePayload)
	got, err := FindDataPath(dir)
	if err != nil || filepath.Base(got) != "export.json" {
		t.Errorf("FindDataPath = %s, %v", got, err)
	}
}

func TestResolveDataPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "facets.json", samplePayload)

	if got, _ := ResolveDataPath("/explicit.json", dir); got != "/explicit.json" {
		t.Errorf("explicit path ignored: %s", got)
	}
	t.Setenv(DataFileEnvVar, "/from/env.json")
	if got, _ := ResolveDataPath("", dir); got != "/from/env.json" {
		t.Errorf("env path ignored: %s", got)
	}
	t.Setenv(DataFileEnvVar, "")
	if got, _ := ResolveDataPath("", dir); filepath.Base(got) != "facets.json" {
		t.Errorf("directory lookup = %s", got)
	}
}

func TestLoadPayload_BOM(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "facets.json", "\xEF\xBB\xBF"+samplePayload)
	p, err := LoadPayload(path)
	if err != nil {
		t.Fatalf("LoadPayload: %v", err)
	}
	if len(p.Facets) != 1 || p.Facets[0].Term != "x" {
		t.Errorf("payload = %+v", p)
	}
}

func TestLoadPayload_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "facets.json", `{"baseline": [`)
	_, err := LoadPayload(path)
	if err == nil || !strings.Contains(err.Error(), "facets.json") {
		t.Errorf("expected error naming the file, got %v", err)
	}
	if _, err := LoadPayload(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWritePayload_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "facets.json")
	p := model.Payload{
		Baseline: model.Baseline{{Key: "2020", Count: 10}},
		Facets:   []model.Facet{{Term: "x", Date: []model.DataPoint{{Key: "2020", Count: 2}}}},
	}
	if err := WritePayload(path, p); err != nil {
		t.Fatalf("WritePayload: %v", err)
	}
	back, err := LoadPayload(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(back.Facets) != 1 || back.Facets[0].Date[0].Count != 2 || back.Baseline[0].Count != 10 {
		t.Errorf("round trip = %+v", back)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}
