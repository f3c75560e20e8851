// Package datasource stores press-conference documents in SQLite and answers
// the per-year count queries that feed a date facet chart.
package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SourceType identifies what kind of file a data path points at.
type SourceType string

const (
	// SourceTypeSQLite is a document store created by Open.
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeJSONL is a documents file, one JSON object per line.
	SourceTypeJSONL SourceType = "jsonl"
	// SourceTypePayload is a ready-made {baseline, facets} JSON file.
	SourceTypePayload SourceType = "payload"
)

// DataSource describes a file the CLI was pointed at.
type DataSource struct {
	Type    SourceType `json:"type"`
	Path    string     `json:"path"`
	ModTime time.Time  `json:"mod_time"`
	Size    int64      `json:"size"`
}

func (s DataSource) String() string {
	return fmt.Sprintf("%s (%s, mod=%s, %d bytes)", s.Path, s.Type, s.ModTime.Format(time.RFC3339), s.Size)
}

var sqliteMagic = []byte("SQLite format 3\x00")

// DetectSource stats path and classifies it by extension, falling back to
// the SQLite file header for unknown extensions.
func DetectSource(path string) (DataSource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return DataSource{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return DataSource{}, err
	}
	if info.IsDir() {
		return DataSource{}, fmt.Errorf("%s is a directory", abs)
	}
	src := DataSource{Path: abs, ModTime: info.ModTime(), Size: info.Size()}

	switch strings.ToLower(filepath.Ext(abs)) {
	case ".db", ".sqlite", ".sqlite3":
		src.Type = SourceTypeSQLite
	case ".jsonl", ".ndjson":
		src.Type = SourceTypeJSONL
	case ".json":
		src.Type = SourceTypePayload
	default:
		if hasSQLiteHeader(abs) {
			src.Type = SourceTypeSQLite
		} else {
			src.Type = SourceTypePayload
		}
	}
	return src, nil
}

func hasSQLiteHeader(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, len(sqliteMagic))
	if _, err := f.Read(buf); err != nil {
		return false
	}
	return string(buf) == string(sqliteMagic)
}
