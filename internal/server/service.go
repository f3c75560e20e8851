package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/vanderheijden86/datefacet/internal/datasource"
	"github.com/vanderheijden86/datefacet/pkg/loader"
	"github.com/vanderheijden86/datefacet/pkg/model"
	"github.com/vanderheijden86/datefacet/pkg/watcher"
)

// ErrNoData is returned by a file service before a payload was loaded.
var ErrNoData = errors.New("no payload loaded")

// Service answers chart data queries for the HTTP handlers.
type Service interface {
	// Payload returns the baseline and one facet per term. With no terms
	// it returns the source's default facets.
	Payload(ctx context.Context, terms []string, rng datasource.YearRange) (model.Payload, error)
}

// StoreService serves payloads computed from a document store.
type StoreService struct {
	Store *datasource.Store
}

func (s StoreService) Payload(ctx context.Context, terms []string, rng datasource.YearRange) (model.Payload, error) {
	return s.Store.Payload(ctx, terms, rng)
}

// FileService serves a payload read from a JSON file. Terms not in the file
// are left out of the answer.
type FileService struct {
	path string

	mu      sync.RWMutex
	payload model.Payload
	loaded  bool
}

// NewFileService loads path.
func NewFileService(path string) (*FileService, error) {
	s := &FileService{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path is the payload file.
func (s *FileService) Path() string { return s.path }

// Reload re-reads the payload file. On error the previous payload stays.
func (s *FileService) Reload() error {
	p, err := loader.LoadPayload(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.payload = p
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *FileService) Payload(_ context.Context, terms []string, rng datasource.YearRange) (model.Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return model.Payload{}, ErrNoData
	}

	out := model.Payload{Baseline: filterBaseline(s.payload.Baseline, rng)}
	if len(terms) == 0 {
		for _, f := range s.payload.Facets {
			out.Facets = append(out.Facets, filterFacet(f, rng))
		}
		return out, nil
	}

	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		term = model.NormalizeKey(term)
		if seen[term] {
			continue
		}
		seen[term] = true
		for _, f := range s.payload.Facets {
			if f.Term == term {
				out.Facets = append(out.Facets, filterFacet(f, rng))
				break
			}
		}
	}
	return out, nil
}

func filterBaseline(b model.Baseline, rng datasource.YearRange) model.Baseline {
	out := make(model.Baseline, 0, len(b))
	for _, e := range b {
		if inRange(e.Key, rng) {
			out = append(out, e)
		}
	}
	return out
}

func filterFacet(f model.Facet, rng datasource.YearRange) model.Facet {
	out := model.Facet{Term: f.Term, Date: make([]model.DataPoint, 0, len(f.Date))}
	for _, p := range f.Date {
		if inRange(p.Key, rng) {
			out.Date = append(out.Date, p)
		}
	}
	return out
}

func inRange(key string, rng datasource.YearRange) bool {
	if rng == (datasource.YearRange{}) {
		return true
	}
	year, err := model.ParseYear(key)
	if err != nil {
		return false
	}
	return rng.Contains(year)
}

// WatchFile reloads svc whenever its file changes and tells broker
// subscribers to redraw. The watcher stops when ctx is done.
func WatchFile(ctx context.Context, svc *FileService, broker *Broker, opts ...watcher.Option) (*watcher.Watcher, error) {
	opts = append(opts,
		watcher.WithOnChange(func() {
			if err := svc.Reload(); err != nil {
				slog.Warn("payload reload failed", "path", svc.Path(), "error", err)
				broker.Publish(Event{Type: EventError, Payload: err.Error()})
				return
			}
			slog.Info("payload reloaded", "path", svc.Path())
			broker.Publish(Event{Type: EventRedraw})
		}),
		watcher.WithOnError(func(err error) {
			slog.Warn("payload watcher error", "path", svc.Path(), "error", err)
		}),
	)
	w, err := watcher.New(svc.Path(), opts...)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}
