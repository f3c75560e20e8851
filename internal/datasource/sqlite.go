package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/datefacet/pkg/debug"
	"github.com/vanderheijden86/datefacet/pkg/metrics"
	"github.com/vanderheijden86/datefacet/pkg/model"
)

// importBatchSize is the number of documents written per transaction.
const importBatchSize = 500

// ErrInvalidRange is returned when a year range ends before it starts.
var ErrInvalidRange = errors.New("invalid year range")

// Store is a SQLite-backed document store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			debug.Log("datasource: %s: %v", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path is the database file.
func (s *Store) Path() string { return s.path }

// Insert writes docs in one transaction, replacing documents with the same
// id. Documents without an id get a random one.
func (s *Store) Insert(ctx context.Context, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO documents
			(id, title, slug, date, year, description, content, source_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		if d.Date.IsZero() {
			return fmt.Errorf("document %q: missing date", d.ID)
		}
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		_, err := stmt.ExecContext(ctx,
			d.ID, d.Title, d.Slug, d.Date.UTC().Format(time.RFC3339), d.Year(),
			d.Description, d.Content, d.SourceURL,
		)
		if err != nil {
			return fmt.Errorf("insert document %q: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// ImportJSONL reads documents from r and inserts them in batches. It returns
// the number of documents written.
func (s *Store) ImportJSONL(ctx context.Context, r io.Reader) (int, error) {
	total := 0
	batch := make([]Document, 0, importBatchSize)
	flush := func() error {
		if err := s.Insert(ctx, batch...); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	err := ReadDocuments(r, func(d Document) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch = append(batch, d)
		if len(batch) == importBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}
	debug.Log("datasource: imported %d documents into %s", total, s.path)
	return total, nil
}

// Count returns the number of documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Document looks a document up by slug.
func (s *Store) Document(ctx context.Context, slug string) (Document, bool, error) {
	var d Document
	var date string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, slug, date, description, content, source_url
		FROM documents WHERE slug = ?
	`, slug).Scan(&d.ID, &d.Title, &d.Slug, &date, &d.Description, &d.Content, &d.SourceURL)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("get document %q: %w", slug, err)
	}
	if d.Date, err = ParseDate(date); err != nil {
		return Document{}, false, err
	}
	return d, true, nil
}

// YearRange restricts queries to documents dated From..To inclusive. A zero
// bound is open.
type YearRange struct {
	From int
	To   int
}

// ParseYearRange reads optional from/to year strings.
func ParseYearRange(from, to string) (YearRange, error) {
	var r YearRange
	var err error
	if from = strings.TrimSpace(from); from != "" {
		if r.From, err = strconv.Atoi(from); err != nil {
			return YearRange{}, fmt.Errorf("%w: from %q", ErrInvalidRange, from)
		}
	}
	if to = strings.TrimSpace(to); to != "" {
		if r.To, err = strconv.Atoi(to); err != nil {
			return YearRange{}, fmt.Errorf("%w: to %q", ErrInvalidRange, to)
		}
	}
	if r.From != 0 && r.To != 0 && r.To < r.From {
		return YearRange{}, fmt.Errorf("%w: %d > %d", ErrInvalidRange, r.From, r.To)
	}
	return r, nil
}

// Contains reports whether year lies in the range.
func (r YearRange) Contains(year int) bool {
	return (r.From == 0 || year >= r.From) && (r.To == 0 || year <= r.To)
}

func (r YearRange) where() (string, []any) {
	var conds []string
	var args []any
	if r.From != 0 {
		conds = append(conds, "year >= ?")
		args = append(args, r.From)
	}
	if r.To != 0 {
		conds = append(conds, "year <= ?")
		args = append(args, r.To)
	}
	return strings.Join(conds, " AND "), args
}

// Baseline counts documents per year, ordered by year.
func (s *Store) Baseline(ctx context.Context, rng YearRange) (model.Baseline, error) {
	defer metrics.Timer(metrics.StoreQuery)()

	query := `SELECT year, COUNT(*) FROM documents`
	cond, args := rng.where()
	if cond != "" {
		query += " WHERE " + cond
	}
	query += " GROUP BY year ORDER BY year"

	counts, err := s.yearCounts(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	baseline := make(model.Baseline, 0, len(counts))
	for _, yc := range counts {
		baseline = append(baseline, model.BaselineEntry{Key: strconv.Itoa(yc.year), Count: yc.count})
	}
	return baseline, nil
}

// Facet counts, for every baseline year, the documents whose description or
// content contains term, ignoring case. Years without a hit get a zero
// point. The empty term matches every document.
func (s *Store) Facet(ctx context.Context, term string, rng YearRange) (model.Facet, error) {
	baseline, err := s.Baseline(ctx, rng)
	if err != nil {
		return model.Facet{}, err
	}
	return s.facet(ctx, model.NormalizeKey(term), rng, baseline)
}

func (s *Store) facet(ctx context.Context, term string, rng YearRange, baseline model.Baseline) (model.Facet, error) {
	facet := model.Facet{Term: term, Date: make([]model.DataPoint, 0, len(baseline))}
	if term == "" {
		for _, b := range baseline {
			facet.Date = append(facet.Date, model.DataPoint{Key: b.Key, Count: b.Count})
		}
		return facet, nil
	}

	defer metrics.Timer(metrics.StoreQuery)()
	query := `
		SELECT year, COUNT(*) FROM documents
		WHERE instr(lower(description || ' ' || content), lower(?)) > 0`
	args := []any{term}
	if cond, condArgs := rng.where(); cond != "" {
		query += " AND " + cond
		args = append(args, condArgs...)
	}
	query += " GROUP BY year"

	counts, err := s.yearCounts(ctx, query, args...)
	if err != nil {
		return model.Facet{}, fmt.Errorf("facet %q: %w", term, err)
	}
	byYear := make(map[string]int, len(counts))
	for _, yc := range counts {
		byYear[strconv.Itoa(yc.year)] = yc.count
	}
	for _, b := range baseline {
		facet.Date = append(facet.Date, model.DataPoint{Key: b.Key, Count: byYear[b.Key]})
	}
	return facet, nil
}

// Payload builds the chart payload for terms. Duplicate terms are queried
// once; facets come back in first-seen term order. With no terms the
// payload holds the empty-term facet, every document at 100%.
func (s *Store) Payload(ctx context.Context, terms []string, rng YearRange) (model.Payload, error) {
	baseline, err := s.Baseline(ctx, rng)
	if err != nil {
		return model.Payload{}, err
	}

	var unique []string
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = model.NormalizeKey(t)
		if seen[t] {
			continue
		}
		seen[t] = true
		unique = append(unique, t)
	}
	if len(unique) == 0 {
		unique = []string{""}
	}

	facets := make([]model.Facet, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, term := range unique {
		g.Go(func() error {
			f, err := s.facet(gctx, term, rng, baseline)
			if err != nil {
				return err
			}
			facets[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Payload{}, err
	}
	return model.Payload{Baseline: baseline, Facets: facets}, nil
}

// SchemaVersion reads the version stored in the meta table.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&v); err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return strconv.Atoi(v)
}

// LastModified returns the newest document date, or the zero time for an
// empty store.
func (s *Store) LastModified(ctx context.Context) (time.Time, error) {
	var date sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(date) FROM documents`).Scan(&date); err != nil {
		return time.Time{}, fmt.Errorf("last modified: %w", err)
	}
	if !date.Valid {
		return time.Time{}, nil
	}
	return ParseDate(date.String)
}

type yearCount struct {
	year  int
	count int
}

func (s *Store) yearCounts(ctx context.Context, query string, args ...any) ([]yearCount, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []yearCount
	for rows.Next() {
		var yc yearCount
		if err := rows.Scan(&yc.year, &yc.count); err != nil {
			return nil, err
		}
		out = append(out, yc)
	}
	return out, rows.Err()
}
