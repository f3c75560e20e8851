package chart

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/interp"
)

// Pt is a point in pixel space.
type Pt struct {
	X, Y float64
}

// Op is a path command.
type Op byte

const (
	OpMove Op = iota
	OpLine
	OpCubic
	OpClose
)

// Segment is one path command. Cubic segments use all three points (two
// control points, then the end point); move and line use P[0].
type Segment struct {
	Op Op
	P  [3]Pt
}

// Path is a renderer-neutral list of drawing commands.
type Path []Segment

// MoveTo starts a new subpath.
func (p *Path) MoveTo(x, y float64) { *p = append(*p, Segment{Op: OpMove, P: [3]Pt{{x, y}}}) }

// LineTo adds a straight segment.
func (p *Path) LineTo(x, y float64) { *p = append(*p, Segment{Op: OpLine, P: [3]Pt{{x, y}}}) }

// CubicTo adds a cubic Bézier segment.
func (p *Path) CubicTo(x1, y1, x2, y2, x, y float64) {
	*p = append(*p, Segment{Op: OpCubic, P: [3]Pt{{x1, y1}, {x2, y2}, {x, y}}})
}

// Close closes the current subpath.
func (p *Path) Close() { *p = append(*p, Segment{Op: OpClose}) }

// Empty reports whether the path draws nothing.
func (p Path) Empty() bool { return len(p) == 0 }

// SVG formats the path as SVG path data with coordinates rounded to two
// decimals.
func (p Path) SVG() string {
	var b strings.Builder
	for _, s := range p {
		switch s.Op {
		case OpMove:
			b.WriteString("M" + coord(s.P[0]))
		case OpLine:
			b.WriteString("L" + coord(s.P[0]))
		case OpCubic:
			b.WriteString("C" + coord(s.P[0]) + "," + coord(s.P[1]) + "," + coord(s.P[2]))
		case OpClose:
			b.WriteString("Z")
		}
	}
	return b.String()
}

func coord(p Pt) string { return num(p.X) + "," + num(p.Y) }

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// Curve turns an ordered point list into path data.
type Curve interface {
	Name() string
	Path(pts []Pt) Path
}

// CurveByName resolves a configured curve name. An empty name selects the
// centripetal Catmull-Rom default.
func CurveByName(name string) (Curve, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "catmullrom", "catmull-rom":
		return CatmullRom{Alpha: 0.5}, nil
	case "linear":
		return Linear{}, nil
	case "monotone", "monotonex":
		return Monotone{}, nil
	}
	return nil, fmt.Errorf("unknown curve %q (want catmullrom, linear or monotone)", name)
}

// Linear joins points with straight segments.
type Linear struct{}

func (Linear) Name() string { return "linear" }

func (Linear) Path(pts []Pt) Path {
	var p Path
	for i, pt := range pts {
		if i == 0 {
			p.MoveTo(pt.X, pt.Y)
			continue
		}
		p.LineTo(pt.X, pt.Y)
	}
	return p
}

const curveEpsilon = 1e-12

// CatmullRom is a Catmull-Rom spline drawn as cubic Béziers. Alpha 0.5 is
// the centripetal parameterisation, 0 uniform, 1 chordal.
type CatmullRom struct {
	Alpha float64
}

func (CatmullRom) Name() string { return "catmullrom" }

func (c CatmullRom) Path(pts []Pt) Path {
	var p Path
	switch len(pts) {
	case 0:
		return p
	case 1:
		p.MoveTo(pts[0].X, pts[0].Y)
		return p
	case 2:
		p.MoveTo(pts[0].X, pts[0].Y)
		p.LineTo(pts[1].X, pts[1].Y)
		return p
	}

	p.MoveTo(pts[0].X, pts[0].Y)
	for i := 0; i+1 < len(pts); i++ {
		p1, p2 := pts[i], pts[i+1]
		l12, l12sq := c.dist(p1, p2)

		var p0 Pt
		var l01, l01sq float64
		if i > 0 {
			p0 = pts[i-1]
			l01, l01sq = c.dist(p0, p1)
		}

		// The final segment reuses the end point as its outer neighbour
		// and keeps the previous chord length.
		p3, l23, l23sq := p2, l12, l12sq
		if i+2 < len(pts) {
			p3 = pts[i+2]
			l23, l23sq = c.dist(p2, p3)
		}

		c1, c2 := p1, p2
		if l01 > curveEpsilon {
			a := 2*l01sq + 3*l01*l12 + l12sq
			n := 3 * l01 * (l01 + l12)
			c1.X = (p1.X*a - p0.X*l12sq + p2.X*l01sq) / n
			c1.Y = (p1.Y*a - p0.Y*l12sq + p2.Y*l01sq) / n
		}
		if l23 > curveEpsilon {
			b := 2*l23sq + 3*l23*l12 + l12sq
			m := 3 * l23 * (l23 + l12)
			c2.X = (p2.X*b + p1.X*l23sq - p3.X*l12sq) / m
			c2.Y = (p2.Y*b + p1.Y*l23sq - p3.Y*l12sq) / m
		}
		p.CubicTo(c1.X, c1.Y, c2.X, c2.Y, p2.X, p2.Y)
	}
	return p
}

// dist returns d^alpha and d^(2*alpha) for the distance between a and b.
func (c CatmullRom) dist(a, b Pt) (float64, float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	sq := math.Pow(dx*dx+dy*dy, c.Alpha)
	return math.Sqrt(sq), sq
}

// Monotone draws a monotone cubic through the points using the
// Fritsch-Butland interpolator, sampled into short straight segments. It
// falls back to Linear when the points cannot be fitted.
type Monotone struct {
	// Samples is the number of segments drawn between neighbouring points.
	Samples int
}

func (Monotone) Name() string { return "monotone" }

func (m Monotone) Path(pts []Pt) Path {
	if len(pts) < 3 {
		return Linear{}.Path(pts)
	}
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, pt := range pts {
		xs[i], ys[i] = pt.X, pt.Y
		if i > 0 && xs[i] <= xs[i-1] {
			return Linear{}.Path(pts)
		}
	}
	var fb interp.FritschButland
	if err := fb.Fit(xs, ys); err != nil {
		return Linear{}.Path(pts)
	}

	samples := m.Samples
	if samples <= 0 {
		samples = 8
	}
	var p Path
	p.MoveTo(xs[0], ys[0])
	for i := 0; i+1 < len(xs); i++ {
		for k := 1; k < samples; k++ {
			x := xs[i] + (xs[i+1]-xs[i])*float64(k)/float64(samples)
			p.LineTo(x, fb.Predict(x))
		}
		p.LineTo(xs[i+1], ys[i+1])
	}
	return p
}

// Area closes the curve through pts down to the horizontal line y0.
func Area(c Curve, pts []Pt, y0 float64) Path {
	if len(pts) == 0 {
		return nil
	}
	p := c.Path(pts)
	first, last := pts[0], pts[len(pts)-1]
	p.LineTo(last.X, y0)
	p.LineTo(first.X, y0)
	p.Close()
	return p
}
