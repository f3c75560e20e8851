package datasource

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Document is one press conference.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	SourceURL   string    `json:"source_url,omitempty"`
}

// Year is the calendar year the document counts towards.
func (d Document) Year() int { return d.Date.UTC().Year() }

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts RFC 3339 timestamps, bare datetimes and plain dates.
// Values without a zone are taken as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          json.RawMessage `json:"id"`
		Title       string          `json:"title"`
		Slug        string          `json:"slug"`
		Date        string          `json:"date"`
		Description string          `json:"description"`
		Content     string          `json:"content"`
		SourceURL   string          `json:"source_url"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	date, err := ParseDate(raw.Date)
	if err != nil {
		return err
	}
	*d = Document{
		ID:          rawID(raw.ID),
		Title:       raw.Title,
		Slug:        raw.Slug,
		Date:        date,
		Description: raw.Description,
		Content:     raw.Content,
		SourceURL:   raw.SourceURL,
	}
	return nil
}

// rawID accepts string and numeric ids.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

const maxLineSize = 16 * 1024 * 1024

// ReadDocuments decodes a JSONL stream. Blank lines are skipped; a bad line
// is an error naming its line number.
func ReadDocuments(r io.Reader, fn func(Document) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var doc Document
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(doc); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read documents: %w", err)
	}
	return nil
}
