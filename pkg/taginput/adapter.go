package taginput

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vanderheijden86/datefacet/pkg/chart"
	"github.com/vanderheijden86/datefacet/pkg/model"
	"github.com/vanderheijden86/datefacet/pkg/palette"
)

// Fetcher looks up facet data for a term. *search.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, term string) ([]model.Facet, error)
}

// Adapter binds a TagInput to a chart: removing a value removes its series
// and frees its colour, and added values can be fetched and merged.
type Adapter struct {
	input   *TagInput
	state   *chart.State
	fetcher Fetcher
	logger  *slog.Logger
	cancel  func()
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the logger fetch failures are reported to.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter wires input to state. fetcher may be nil when no fetch URL is
// configured; added values then only become chips.
func NewAdapter(input *TagInput, state *chart.State, fetcher Fetcher, opts ...AdapterOption) *Adapter {
	a := &Adapter{input: input, state: state, fetcher: fetcher, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	a.cancel = input.OnEvent(func(e Event) {
		if e.Kind == EventRemove {
			state.RemoveTerm(e.Value)
		}
	})
	return a
}

// Input returns the bound tag control.
func (a *Adapter) Input() *TagInput { return a.input }

// State returns the bound chart state.
func (a *Adapter) State() *chart.State { return a.state }

// CanFetch reports whether added values are looked up remotely.
func (a *Adapter) CanFetch() bool { return a.fetcher != nil }

// Accept adds raw to the input and keeps only the values the chart still
// has a colour for. Chips still waiting on their facets hold a colour too,
// as do chart terms that never became chips. Without a fetcher no chip is
// ever charted, so only the input's own limits apply.
func (a *Adapter) Accept(raw string) ([]string, error) {
	if a.fetcher == nil {
		return a.input.Add(raw)
	}
	waiting := 0
	for _, v := range a.input.Items() {
		if !a.state.HasTerm(v) {
			waiting++
		}
	}
	free := len(a.state.Available()) - waiting

	added, err := a.input.Add(raw)
	errs := []error{err}
	kept := added[:0]
	for _, term := range added {
		switch {
		case a.state.HasTerm(term):
		case free > 0:
			free--
		default:
			a.input.Remove(term)
			errs = append(errs, fmt.Errorf("%q: %w", term, palette.ErrPaletteExhausted))
			continue
		}
		kept = append(kept, term)
	}
	return kept, errors.Join(errs...)
}

// Add accepts raw, then fetches and merges facets for every value that was
// kept. Rejections and fetch failures come back joined.
func (a *Adapter) Add(ctx context.Context, raw string) ([]string, error) {
	added, err := a.Accept(raw)
	errs := []error{err}
	for _, term := range added {
		facets, ferr := a.Fetch(ctx, term)
		if ferr != nil {
			errs = append(errs, ferr)
			continue
		}
		if _, merr := a.Merge(term, facets); merr != nil {
			errs = append(errs, merr)
		}
	}
	return added, errors.Join(errs...)
}

// Remove removes value from the input; the chart follows through the
// remove event.
func (a *Adapter) Remove(value string) bool {
	return a.input.Remove(value)
}

// Fetch looks up facets for term. Without a fetcher it returns nothing.
func (a *Adapter) Fetch(ctx context.Context, term string) ([]model.Facet, error) {
	if a.fetcher == nil {
		return nil, nil
	}
	facets, err := a.fetcher.Fetch(ctx, term)
	if err != nil {
		a.logger.Warn("facet fetch failed", "term", term, "error", err)
		return nil, fmt.Errorf("fetch %q: %w", term, err)
	}
	return facets, nil
}

// Merge adds fetched facets to the chart. Results for a term that was
// removed while the fetch was in flight are dropped and Merge reports false.
// A term whose facets find no free colour loses its chip.
func (a *Adapter) Merge(term string, facets []model.Facet) (bool, error) {
	if !a.input.Has(term) {
		a.logger.Debug("dropping facets for removed term", "term", term)
		return false, nil
	}
	if len(facets) == 0 {
		return true, nil
	}
	if _, err := a.state.AddFacets(facets...); err != nil {
		a.logger.Warn("facet merge failed", "term", term, "error", err)
		if errors.Is(err, palette.ErrPaletteExhausted) {
			a.input.Remove(term)
		}
		return false, err
	}
	return true, nil
}

// Close detaches the adapter from the input.
func (a *Adapter) Close() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}
