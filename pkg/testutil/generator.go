// Package testutil provides deterministic fixtures and assertions for
// payloads, documents and chart scenes.
package testutil

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/datefacet/pkg/model"
)

// GeneratorConfig controls fixture generation.
type GeneratorConfig struct {
	Seed      int64    // Random seed for determinism
	FirstYear int      // First baseline year
	Years     int      // Number of consecutive baseline years
	MaxCount  int      // Upper bound for a year's baseline count
	Terms     []string // Term pool; generated names when short
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:      42,
		FirstYear: 2010,
		Years:     10,
		MaxCount:  500,
		Terms:     []string{"tax", "climate", "pension", "border", "energy", "health", "housing", "rail", "school", "water"},
	}
}

// Generator creates fixtures from a seeded source.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a generator.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Years <= 0 {
		cfg.Years = 1
	}
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = 100
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a generator with DefaultConfig.
func NewDefault() *Generator { return New(DefaultConfig()) }

// Term returns the i-th term name.
func (g *Generator) Term(i int) string {
	if i < len(g.cfg.Terms) {
		return g.cfg.Terms[i]
	}
	return fmt.Sprintf("term-%d", i)
}

// Baseline returns one entry per configured year, each count at least 1.
func (g *Generator) Baseline() model.Baseline {
	b := make(model.Baseline, g.cfg.Years)
	for i := range b {
		b[i] = model.BaselineEntry{
			Key:   strconv.Itoa(g.cfg.FirstYear + i),
			Count: 1 + g.rng.Intn(g.cfg.MaxCount),
		}
	}
	return b
}

// Facet returns a facet whose counts never exceed the baseline's.
func (g *Generator) Facet(term string, baseline model.Baseline) model.Facet {
	f := model.Facet{Term: term, Date: make([]model.DataPoint, len(baseline))}
	for i, b := range baseline {
		f.Date[i] = model.DataPoint{Key: b.Key, Count: g.rng.Intn(b.Count + 1)}
	}
	return f
}

// Payload returns a baseline with nTerms facets.
func (g *Generator) Payload(nTerms int) model.Payload {
	p := model.Payload{Baseline: g.Baseline()}
	for i := 0; i < nTerms; i++ {
		p.Facets = append(p.Facets, g.Facet(g.Term(i), p.Baseline))
	}
	return p
}

// DocumentsJSONL returns n press-conference documents, one JSON object per
// line, spread over the configured years. Each document mentions one or two
// pool terms.
func (g *Generator) DocumentsJSONL(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		year := g.cfg.FirstYear + g.rng.Intn(g.cfg.Years)
		date := time.Date(year, time.Month(1+g.rng.Intn(12)), 1+g.rng.Intn(28), 10, 0, 0, 0, time.UTC)
		first := g.Term(g.rng.Intn(max(len(g.cfg.Terms), 1)))
		second := g.Term(g.rng.Intn(max(len(g.cfg.Terms), 1)))
		doc := map[string]any{
			"id":          strconv.Itoa(i + 1),
			"title":       fmt.Sprintf("Press conference %d", i+1),
			"slug":        fmt.Sprintf("press-conference-%d", i+1),
			"date":        date.Format(time.RFC3339),
			"description": "Questions on " + first,
			"content":     "The minister spoke about " + second + ".",
		}
		line, _ := json.Marshal(doc)
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// SamplePayload is the two-year example used throughout the docs:
// baseline 2020=100, 2021=200 and facet "x" with 2020=50.
func SamplePayload() model.Payload {
	return model.Payload{
		Baseline: model.Baseline{{Key: "2020", Count: 100}, {Key: "2021", Count: 200}},
		Facets:   []model.Facet{{Term: "x", Date: []model.DataPoint{{Key: "2020", Count: 50}}}},
	}
}
