// Package palette assigns stable colours to chart terms from a fixed palette.
package palette

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Tableau10 is the default categorical palette.
var Tableau10 = []string{
	"#4e79a7",
	"#f28e2c",
	"#e15759",
	"#76b7b2",
	"#59a14f",
	"#edc949",
	"#af7aa1",
	"#ff9da7",
	"#9c755f",
	"#bab0ab",
}

// ErrPaletteExhausted is returned when every colour is held by a live term.
var ErrPaletteExhausted = errors.New("palette exhausted")

// Assigner hands out colours first-seen-first-assigned. Released colours go
// back to the front of the pool so the most recently freed colour is reused
// first.
//
// Assigner is not safe for concurrent use; chart.State serialises access.
type Assigner struct {
	colors    []string
	available []string
	assigned  map[string]string
	order     []string
}

// NewAssigner creates an assigner over colors. An empty list means Tableau10.
func NewAssigner(colors []string) *Assigner {
	if len(colors) == 0 {
		colors = Tableau10
	}
	a := &Assigner{colors: append([]string(nil), colors...)}
	a.Reset()
	return a
}

// Assign returns term's colour, taking the first available one if term has
// none yet.
func (a *Assigner) Assign(term string) (string, error) {
	if c, ok := a.assigned[term]; ok {
		return c, nil
	}
	if len(a.available) == 0 {
		return "", fmt.Errorf("assign %q: %w", term, ErrPaletteExhausted)
	}
	c := a.available[0]
	a.available = a.available[1:]
	a.assigned[term] = c
	a.order = append(a.order, term)
	return c, nil
}

// Release frees term's colour. Unknown terms are ignored.
func (a *Assigner) Release(term string) bool {
	c, ok := a.assigned[term]
	if !ok {
		return false
	}
	delete(a.assigned, term)
	for i, t := range a.order {
		if t == term {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	a.available = append([]string{c}, a.available...)
	return true
}

// Color returns the colour held by term.
func (a *Assigner) Color(term string) (string, bool) {
	c, ok := a.assigned[term]
	return c, ok
}

// Available returns a copy of the pool in the order colours will be handed out.
func (a *Assigner) Available() []string {
	return append([]string(nil), a.available...)
}

// Len is the number of live terms.
func (a *Assigner) Len() int { return len(a.assigned) }

// Cap is the palette size.
func (a *Assigner) Cap() int { return len(a.colors) }

// Terms lists live terms in assignment order.
func (a *Assigner) Terms() []string {
	return append([]string(nil), a.order...)
}

// Assignments returns a copy of the term -> colour map.
func (a *Assigner) Assignments() map[string]string {
	m := make(map[string]string, len(a.assigned))
	for k, v := range a.assigned {
		m[k] = v
	}
	return m
}

// Reset releases every colour and restores the palette order.
func (a *Assigner) Reset() {
	a.available = append([]string(nil), a.colors...)
	a.assigned = make(map[string]string, len(a.colors))
	a.order = nil
}

// ParseHex converts "#rrggbb" or "#rgb" to an opaque RGBA colour.
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// Hex formats c as "#rrggbb".
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
