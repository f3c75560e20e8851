package chart

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/datefacet/pkg/model"
)

// Marker is a point drawn for one facet observation.
type Marker struct {
	Key     string
	Year    int
	Count   int
	Percent float64
	X, Y    float64
}

// Series is everything drawn for one term.
type Series struct {
	Term    string
	Color   string
	Area    Path
	Line    Path
	Markers []Marker
}

// Scene is a fully laid out chart, independent of the output format.
type Scene struct {
	Dims   Dimensions
	X      TimeScale
	Y      LinearScale
	XTicks []Tick
	YTicks []Tick
	Series []Series
	Curve  string
}

// Terms lists the terms drawn, in series order.
func (s Scene) Terms() []string {
	terms := make([]string, len(s.Series))
	for i, se := range s.Series {
		terms[i] = se.Term
	}
	return terms
}

// Lookup returns the series drawn for term.
func (s Scene) Lookup(term string) (Series, bool) {
	for _, se := range s.Series {
		if se.Term == term {
			return se, true
		}
	}
	return Series{}, false
}

// StyleRules returns one CSS rule per series so tag chips pick up the term's
// chart colour.
func (s Scene) StyleRules() []string {
	rules := make([]string, 0, len(s.Series))
	for _, se := range s.Series {
		rules = append(rules, StyleRule(se.Term, se.Color))
	}
	return rules
}

// CSS joins StyleRules into a stylesheet body.
func (s Scene) CSS() string {
	return strings.Join(s.StyleRules(), "\n")
}

// StyleRule is the chip rule for a single term. The term is written as a
// CSS string so it can neither close the attribute selector nor the
// surrounding <style> element.
func StyleRule(term, color string) string {
	return fmt.Sprintf(`.choices__item[data-value="%s"] { background-color: %s; }`,
		cssString(term), color)
}

// cssString escapes s for use inside a double-quoted CSS string. Markup
// characters are hex escaped as well since style text is emitted raw.
func cssString(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '<' || r == '>' || r == '&' || r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, "\\%x ", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BuildScene lays out baseline and facets. colorOf supplies each term's
// colour; series for which it reports false are not drawn.
func BuildScene(baseline model.Baseline, facets []model.Facet, colorOf func(string) (string, bool), dims Dimensions, curve Curve) Scene {
	dims = dims.WithDefaults()
	if curve == nil {
		curve = CatmullRom{Alpha: 0.5}
	}

	years := make([]int, 0, len(baseline))
	for _, e := range baseline {
		if y, err := model.ParseYear(e.Key); err == nil {
			years = append(years, y)
		}
	}

	scene := Scene{
		Dims:  dims,
		X:     NewTimeScale(years, dims.MarginLeft, dims.Width-dims.MarginRight),
		Y:     NewPercentScale(dims.Height-dims.MarginBottom, dims.MarginTop),
		Curve: curve.Name(),
	}
	maxXTicks := int(dims.PlotWidth() / 60)
	scene.XTicks = scene.X.Ticks(max(maxXTicks, 2))
	scene.YTicks = scene.Y.Ticks(10)

	y0 := scene.Y.Map(0)
	for _, f := range facets {
		color, ok := colorOf(f.Term)
		if !ok {
			continue
		}
		se := Series{Term: f.Term, Color: color}
		for _, p := range f.Points(baseline) {
			if !p.OK {
				continue
			}
			se.Markers = append(se.Markers, Marker{
				Key:     p.Key,
				Year:    p.Year,
				Count:   p.Count,
				Percent: p.Percent,
				X:       scene.X.Year(p.Year),
				Y:       scene.Y.Map(p.Percent),
			})
		}
		sort.SliceStable(se.Markers, func(i, j int) bool { return se.Markers[i].Year < se.Markers[j].Year })

		pts := make([]Pt, len(se.Markers))
		for i, m := range se.Markers {
			pts[i] = Pt{m.X, m.Y}
		}
		se.Line = curve.Path(pts)
		se.Area = Area(curve, pts, y0)
		scene.Series = append(scene.Series, se)
	}
	return scene
}
