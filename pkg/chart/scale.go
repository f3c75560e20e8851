package chart

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/vanderheijden86/datefacet/pkg/model"
)

// Dimensions is the chart canvas and its margins, in pixels.
type Dimensions struct {
	Width        float64
	Height       float64
	MarginTop    float64
	MarginRight  float64
	MarginBottom float64
	MarginLeft   float64
}

// DefaultDimensions returns a 640x300 canvas with 20/20/30/40 margins.
func DefaultDimensions() Dimensions {
	return Dimensions{
		Width:        640,
		Height:       300,
		MarginTop:    20,
		MarginRight:  20,
		MarginBottom: 30,
		MarginLeft:   40,
	}
}

// WithDefaults fills zero or negative sizes from DefaultDimensions. Margins
// are only defaulted when all four are zero.
func (d Dimensions) WithDefaults() Dimensions {
	def := DefaultDimensions()
	if d.Width <= 0 {
		d.Width = def.Width
	}
	if d.Height <= 0 {
		d.Height = def.Height
	}
	if d.MarginTop == 0 && d.MarginRight == 0 && d.MarginBottom == 0 && d.MarginLeft == 0 {
		d.MarginTop, d.MarginRight = def.MarginTop, def.MarginRight
		d.MarginBottom, d.MarginLeft = def.MarginBottom, def.MarginLeft
	}
	return d
}

// PlotWidth is the horizontal space between the margins.
func (d Dimensions) PlotWidth() float64 { return d.Width - d.MarginLeft - d.MarginRight }

// PlotHeight is the vertical space between the margins.
func (d Dimensions) PlotHeight() float64 { return d.Height - d.MarginTop - d.MarginBottom }

// Tick is one axis tick: the domain value, its pixel position and label.
type Tick struct {
	Value float64
	Pos   float64
	Label string
}

// TimeScale maps calendar years, plotted at January 1st UTC, onto a pixel
// range.
type TimeScale struct {
	Min, Max           time.Time
	RangeMin, RangeMax float64
}

// NewTimeScale spans the extent of years onto [lo, hi].
func NewTimeScale(years []int, lo, hi float64) TimeScale {
	s := TimeScale{RangeMin: lo, RangeMax: hi}
	if len(years) == 0 {
		return s
	}
	minY, maxY := years[0], years[0]
	for _, y := range years[1:] {
		minY = min(minY, y)
		maxY = max(maxY, y)
	}
	s.Min = model.YearTime(minY)
	s.Max = model.YearTime(maxY)
	return s
}

// Degenerate reports whether the domain has zero width.
func (s TimeScale) Degenerate() bool { return !s.Max.After(s.Min) }

// Map converts t to a pixel position. A degenerate domain maps everything to
// the middle of the range.
func (s TimeScale) Map(t time.Time) float64 {
	if s.Degenerate() {
		return (s.RangeMin + s.RangeMax) / 2
	}
	frac := float64(t.Sub(s.Min)) / float64(s.Max.Sub(s.Min))
	return s.RangeMin + frac*(s.RangeMax-s.RangeMin)
}

// Year converts a year to a pixel position.
func (s TimeScale) Year(year int) float64 { return s.Map(model.YearTime(year)) }

// Ticks returns one tick per year in the domain, skipping years evenly so at
// most maxTicks remain.
func (s TimeScale) Ticks(maxTicks int) []Tick {
	if s.Min.IsZero() && s.Max.IsZero() {
		return nil
	}
	first, last := s.Min.Year(), s.Max.Year()
	n := last - first + 1
	step := 1
	if maxTicks > 0 && n > maxTicks {
		step = int(math.Ceil(float64(n) / float64(maxTicks)))
	}
	ticks := make([]Tick, 0, n/step+1)
	for y := first; y <= last; y += step {
		ticks = append(ticks, Tick{Value: float64(y), Pos: s.Year(y), Label: strconv.Itoa(y)})
	}
	return ticks
}

// LinearScale maps a numeric domain onto a pixel range. Values outside the
// domain are extrapolated, not clamped.
type LinearScale struct {
	D0, D1 float64
	R0, R1 float64
}

// NewPercentScale maps [0, 100] onto [bottom, top].
func NewPercentScale(bottom, top float64) LinearScale {
	return LinearScale{D0: 0, D1: 100, R0: bottom, R1: top}
}

// Map converts v to a pixel position.
func (s LinearScale) Map(v float64) float64 {
	if s.D1 == s.D0 {
		return (s.R0 + s.R1) / 2
	}
	return s.R0 + (v-s.D0)/(s.D1-s.D0)*(s.R1-s.R0)
}

// Ticks returns roughly count evenly spaced ticks at 1, 2 or 5 times a power
// of ten, labelled as percentages.
func (s LinearScale) Ticks(count int) []Tick {
	lo, hi := math.Min(s.D0, s.D1), math.Max(s.D0, s.D1)
	if count <= 0 || hi == lo {
		return nil
	}
	step := tickStep(lo, hi, count)
	start := math.Ceil(lo/step) * step
	stop := math.Floor(hi/step) * step
	n := int(math.Round((stop-start)/step)) + 1
	if n < 1 {
		return nil
	}
	values := make([]float64, n)
	if n == 1 {
		values[0] = start
	} else {
		floats.Span(values, start, stop)
	}
	ticks := make([]Tick, n)
	for i, v := range values {
		ticks[i] = Tick{Value: v, Pos: s.Map(v), Label: percentLabel(v)}
	}
	return ticks
}

func tickStep(lo, hi float64, count int) float64 {
	raw := (hi - lo) / float64(count)
	step := math.Pow(10, math.Floor(math.Log10(raw)))
	switch e := raw / step; {
	case e >= math.Sqrt(50):
		step *= 10
	case e >= math.Sqrt(10):
		step *= 5
	case e >= math.Sqrt(2):
		step *= 2
	}
	return step
}

func percentLabel(v float64) string {
	return fmt.Sprintf("%s%%", strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64))
}
