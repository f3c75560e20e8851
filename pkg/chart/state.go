package chart

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vanderheijden86/datefacet/pkg/debug"
	"github.com/vanderheijden86/datefacet/pkg/metrics"
	"github.com/vanderheijden86/datefacet/pkg/model"
	"github.com/vanderheijden86/datefacet/pkg/palette"
)

// Options configure a State.
type Options struct {
	Dims   Dimensions
	Curve  Curve
	Colors []string
}

// Join describes how the drawn terms changed on an update, keyed by term.
type Join struct {
	Enter  []string
	Update []string
	Exit   []string
}

// Changed reports whether any term entered or left.
func (j Join) Changed() bool { return len(j.Enter) > 0 || len(j.Exit) > 0 }

// Snapshot is what listeners receive after every mutation.
type Snapshot struct {
	Scene Scene
	Join  Join
}

// State holds one chart's baseline, facet list and colour assignments.
// Every mutation rebuilds the scene and notifies subscribers. State is safe
// for concurrent use; listeners run outside the lock.
type State struct {
	mu        sync.Mutex
	baseline  model.Baseline
	facets    []model.Facet
	colors    *palette.Assigner
	opts      Options
	scene     Scene
	drawn     []string
	listeners map[int]func(Snapshot)
	nextID    int
}

// NewState builds the initial scene from p. A payload with more facets than
// the palette holds still yields a State; the error names the undrawn terms.
func NewState(p model.Payload, opts Options) (*State, error) {
	if opts.Curve == nil {
		opts.Curve = CatmullRom{Alpha: 0.5}
	}
	opts.Dims = opts.Dims.WithDefaults()
	s := &State{
		colors:    palette.NewAssigner(opts.Colors),
		opts:      opts,
		listeners: make(map[int]func(Snapshot)),
	}
	p = p.Clone()
	s.baseline = p.Baseline
	s.facets = mergeFacets(nil, p.Facets)
	_, err := s.update()
	return s, err
}

// Update re-binds the whole facet list: releases colours of terms that are
// gone, assigns colours to new terms in facet order and rebuilds the scene.
func (s *State) Update() (Join, error) {
	s.mu.Lock()
	join, err := s.update()
	snap := Snapshot{Scene: s.scene, Join: join}
	s.mu.Unlock()
	s.notify(snap)
	return join, err
}

// AddFacets merges facets into the chart. A facet whose term is already
// present replaces the earlier data in place. Adding new terms beyond the
// free colours fails with palette.ErrPaletteExhausted and leaves the state
// unchanged.
func (s *State) AddFacets(facets ...model.Facet) (Join, error) {
	s.mu.Lock()
	fresh := map[string]bool{}
	for _, f := range facets {
		if !s.hasTerm(f.Term) {
			fresh[f.Term] = true
		}
	}
	if free := len(s.colors.Available()); len(fresh) > free {
		s.mu.Unlock()
		return Join{}, fmt.Errorf("add %d new terms with %d free colours: %w", len(fresh), free, palette.ErrPaletteExhausted)
	}
	clones := make([]model.Facet, len(facets))
	for i, f := range facets {
		clones[i] = f.Clone()
	}
	s.facets = mergeFacets(s.facets, clones)
	join, err := s.update()
	snap := Snapshot{Scene: s.scene, Join: join}
	s.mu.Unlock()

	debug.Log("chart: added %d facets, enter=%v update=%v", len(facets), join.Enter, join.Update)
	s.notify(snap)
	return join, err
}

// RemoveTerm drops every facet for term and returns its colour to the front
// of the pool. It reports whether anything was removed.
func (s *State) RemoveTerm(term string) (Join, bool) {
	s.mu.Lock()
	kept := s.facets[:0:0]
	for _, f := range s.facets {
		if f.Term != term {
			kept = append(kept, f)
		}
	}
	removed := len(kept) != len(s.facets)
	if !removed {
		s.mu.Unlock()
		return Join{}, false
	}
	s.facets = kept
	s.colors.Release(term)
	join, _ := s.update()
	snap := Snapshot{Scene: s.scene, Join: join}
	s.mu.Unlock()

	debug.Log("chart: removed %q", term)
	s.notify(snap)
	return join, true
}

// SetPayload replaces baseline and facets, keeping colours of terms that
// survive.
func (s *State) SetPayload(p model.Payload) (Join, error) {
	p = p.Clone()
	s.mu.Lock()
	s.baseline = p.Baseline
	s.facets = mergeFacets(nil, p.Facets)
	join, err := s.update()
	snap := Snapshot{Scene: s.scene, Join: join}
	s.mu.Unlock()
	s.notify(snap)
	return join, err
}

// Subscribe registers fn to run after every mutation. The returned func
// unsubscribes.
func (s *State) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Scene returns the current scene.
func (s *State) Scene() Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

// Baseline returns a copy of the baseline.
func (s *State) Baseline() model.Baseline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(model.Baseline(nil), s.baseline...)
}

// Facets returns a copy of the facet list.
func (s *State) Facets() []model.Facet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Facet, len(s.facets))
	for i, f := range s.facets {
		out[i] = f.Clone()
	}
	return out
}

// Payload returns baseline and facets together.
func (s *State) Payload() model.Payload {
	return model.Payload{Baseline: s.Baseline(), Facets: s.Facets()}
}

// Terms lists the facet terms in order.
func (s *State) Terms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	terms := make([]string, len(s.facets))
	for i, f := range s.facets {
		terms[i] = f.Term
	}
	return terms
}

// HasTerm reports whether a facet for term is present.
func (s *State) HasTerm(term string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasTerm(term)
}

// Color returns term's colour.
func (s *State) Color(term string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colors.Color(term)
}

// Available returns the free colours in hand-out order.
func (s *State) Available() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colors.Available()
}

// Capacity is the palette size.
func (s *State) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colors.Cap()
}

func (s *State) hasTerm(term string) bool {
	for _, f := range s.facets {
		if f.Term == term {
			return true
		}
	}
	return false
}

// update must be called with mu held.
func (s *State) update() (Join, error) {
	defer metrics.Timer(metrics.RenderScene)()

	present := make(map[string]bool, len(s.facets))
	for _, f := range s.facets {
		present[f.Term] = true
	}
	for _, term := range s.colors.Terms() {
		if !present[term] {
			s.colors.Release(term)
		}
	}

	var errs []error
	for _, f := range s.facets {
		if _, err := s.colors.Assign(f.Term); err != nil {
			errs = append(errs, err)
		}
	}

	s.scene = BuildScene(s.baseline, s.facets, s.colors.Color, s.opts.Dims, s.opts.Curve)
	join := diffTerms(s.drawn, s.scene.Terms())
	s.drawn = s.scene.Terms()
	return join, errors.Join(errs...)
}

func (s *State) notify(snap Snapshot) {
	s.mu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// mergeFacets appends incoming to existing; a term already present is
// replaced where it stands.
func mergeFacets(existing, incoming []model.Facet) []model.Facet {
	out := append([]model.Facet(nil), existing...)
	index := make(map[string]int, len(out))
	for i, f := range out {
		index[f.Term] = i
	}
	for _, f := range incoming {
		if i, ok := index[f.Term]; ok {
			out[i] = f
			continue
		}
		index[f.Term] = len(out)
		out = append(out, f)
	}
	return out
}

func diffTerms(before, after []string) Join {
	var j Join
	was := make(map[string]bool, len(before))
	for _, t := range before {
		was[t] = true
	}
	is := make(map[string]bool, len(after))
	for _, t := range after {
		is[t] = true
		if was[t] {
			j.Update = append(j.Update, t)
		} else {
			j.Enter = append(j.Enter, t)
		}
	}
	for _, t := range before {
		if !is[t] {
			j.Exit = append(j.Exit, t)
		}
	}
	return j
}
