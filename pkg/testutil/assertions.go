package testutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/datefacet/pkg/chart"
	"github.com/vanderheijden86/datefacet/pkg/model"
)

// AssertNoSharedColors fails when two series in scene use the same colour.
func AssertNoSharedColors(t *testing.T, scene chart.Scene) {
	t.Helper()
	seen := make(map[string]string, len(scene.Series))
	for _, s := range scene.Series {
		if other, ok := seen[s.Color]; ok {
			t.Errorf("terms %q and %q share colour %s", other, s.Term, s.Color)
		}
		seen[s.Color] = s.Term
	}
}

// AssertPercent checks the marker for term at year.
func AssertPercent(t *testing.T, scene chart.Scene, term string, year int, want float64) {
	t.Helper()
	s, ok := scene.Lookup(term)
	if !ok {
		t.Errorf("no series for %q", term)
		return
	}
	for _, m := range s.Markers {
		if m.Year == year {
			if math.Abs(m.Percent-want) > 1e-9 {
				t.Errorf("%s %d: percent = %v, want %v", term, year, m.Percent, want)
			}
			return
		}
	}
	t.Errorf("%s: no marker for %d", term, year)
}

// AssertJSONEqual compares two values after JSON encoding.
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}
	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// WritePayloadFile writes p to dir/name and returns the path.
func WritePayloadFile(t *testing.T, dir, name string, p model.Payload) string {
	t.Helper()
	data, err := model.EncodePayload(p)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	return path
}
