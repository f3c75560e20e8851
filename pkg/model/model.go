// Package model defines the date facet payload: a per-year baseline and the
// facets (term series) charted against it.
package model

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// BaselineEntry is one (year-key, total-count) pair. On the wire it is a
// two element array: ["2020", 100] or [2020, 100].
type BaselineEntry struct {
	Key   string
	Count int
}

// MarshalJSON encodes the entry as [key, count].
func (e BaselineEntry) MarshalJSON() ([]byte, error) {
	key, err := json.Marshal(e.Key)
	if err != nil {
		return nil, err
	}
	return []byte("[" + string(key) + "," + strconv.Itoa(e.Count) + "]"), nil
}

// UnmarshalJSON decodes [key, count] where key may be a string or a number.
func (e *BaselineEntry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("baseline entry: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("baseline entry: want [key, count], got %d elements", len(pair))
	}
	key, err := decodeKey(pair[0])
	if err != nil {
		return fmt.Errorf("baseline entry key: %w", err)
	}
	count, err := decodeCount(pair[1])
	if err != nil {
		return fmt.Errorf("baseline entry count: %w", err)
	}
	e.Key = key
	e.Count = count
	return nil
}

// Baseline is the ordered reference total per year.
type Baseline []BaselineEntry

// Lookup returns the baseline count for key.
func (b Baseline) Lookup(key string) (int, bool) {
	key = NormalizeKey(key)
	for _, e := range b {
		if e.Key == key {
			return e.Count, true
		}
	}
	return 0, false
}

// Keys returns the baseline keys in order.
func (b Baseline) Keys() []string {
	keys := make([]string, len(b))
	for i, e := range b {
		keys[i] = e.Key
	}
	return keys
}

// Map returns the baseline as a key -> count map.
func (b Baseline) Map() map[string]int {
	m := make(map[string]int, len(b))
	for _, e := range b {
		m[e.Key] = e.Count
	}
	return m
}

// Total sums all baseline counts.
func (b Baseline) Total() int {
	total := 0
	for _, e := range b {
		total += e.Count
	}
	return total
}

// DataPoint is one facet observation.
type DataPoint struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// UnmarshalJSON accepts the key as a string or a number.
func (d *DataPoint) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key   json.RawMessage `json:"key"`
		Count json.RawMessage `json:"count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("data point: %w", err)
	}
	key, err := decodeKey(raw.Key)
	if err != nil {
		return fmt.Errorf("data point key: %w", err)
	}
	count := 0
	if len(raw.Count) > 0 {
		if count, err = decodeCount(raw.Count); err != nil {
			return fmt.Errorf("data point count: %w", err)
		}
	}
	d.Key = key
	d.Count = count
	return nil
}

// Facet is a named series of per-year counts.
type Facet struct {
	Term string      `json:"term"`
	Date []DataPoint `json:"date"`
}

// Point is a facet observation normalised against the baseline.
type Point struct {
	Key     string
	Year    int
	Count   int
	Percent float64
	// OK is false when the key has no usable baseline count or is not a year.
	OK bool
}

// Points normalises every data point of f against baseline.
func (f Facet) Points(baseline Baseline) []Point {
	counts := baseline.Map()
	points := make([]Point, 0, len(f.Date))
	for _, d := range f.Date {
		p := Point{Key: d.Key, Count: d.Count}
		year, yerr := ParseYear(d.Key)
		p.Year = year
		if total, ok := counts[NormalizeKey(d.Key)]; ok && total > 0 && yerr == nil {
			p.Percent = Percent(d.Count, total)
			p.OK = true
		}
		points = append(points, p)
	}
	return points
}

// Clone returns a deep copy of f.
func (f Facet) Clone() Facet {
	out := Facet{Term: f.Term}
	if f.Date != nil {
		out.Date = make([]DataPoint, len(f.Date))
		copy(out.Date, f.Date)
	}
	return out
}

// Payload is the chart input: `{baseline: [...], facets: [...]}`.
type Payload struct {
	Baseline Baseline `json:"baseline"`
	Facets   []Facet  `json:"facets"`
}

// Terms lists the facet terms in order.
func (p Payload) Terms() []string {
	terms := make([]string, len(p.Facets))
	for i, f := range p.Facets {
		terms[i] = f.Term
	}
	return terms
}

// Clone returns a deep copy of p.
func (p Payload) Clone() Payload {
	out := Payload{}
	if p.Baseline != nil {
		out.Baseline = make(Baseline, len(p.Baseline))
		copy(out.Baseline, p.Baseline)
	}
	if p.Facets != nil {
		out.Facets = make([]Facet, len(p.Facets))
		for i, f := range p.Facets {
			out.Facets[i] = f.Clone()
		}
	}
	return out
}

// FacetResponse is the body returned by a remote facet lookup.
type FacetResponse struct {
	Facets []Facet `json:"facets"`
}

// DecodePayload parses a payload document.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(bytes.TrimSpace(data), &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

// EncodePayload serialises p.
func EncodePayload(p Payload) ([]byte, error) {
	if p.Baseline == nil {
		p.Baseline = Baseline{}
	}
	if p.Facets == nil {
		p.Facets = []Facet{}
	}
	return json.Marshal(p)
}

// Percent returns 100 * count / baseline.
func Percent(count, baseline int) float64 {
	if baseline == 0 {
		return math.NaN()
	}
	return 100 * float64(count) / float64(baseline)
}

// NormalizeKey trims a key so "2020", " 2020" and 2020 compare equal.
func NormalizeKey(key string) string {
	return strings.TrimSpace(key)
}

// ParseYear extracts the year from a key such as "2020" or "2020-01-01".
func ParseYear(key string) (int, error) {
	key = NormalizeKey(key)
	if len(key) > 4 && key[4] == '-' {
		key = key[:4]
	}
	year, err := strconv.Atoi(key)
	if err != nil {
		return 0, fmt.Errorf("key %q is not a year", key)
	}
	return year, nil
}

// YearTime returns January 1st of year in UTC, the time a year key is
// plotted at.
func YearTime(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func decodeKey(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", fmt.Errorf("missing key")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return NormalizeKey(s), nil
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return "", fmt.Errorf("key %s is neither string nor number", raw)
	}
	if f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func decodeCount(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if string(raw) == "null" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("count %s is not a number", raw)
	}
	return int(f), nil
}
