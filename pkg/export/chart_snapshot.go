package export

import (
	"bytes"
	"fmt"
	"html"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"github.com/google/uuid"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/datefacet/pkg/chart"
	"github.com/vanderheijden86/datefacet/pkg/metrics"
	"github.com/vanderheijden86/datefacet/pkg/palette"
)

// SnapshotOptions controls chart snapshot export.
type SnapshotOptions struct {
	Path   string // Output path; format inferred from extension when Format is empty
	Format string // "svg" or "png" (case-insensitive)
	Scene  chart.Scene
}

// SaveSnapshot writes the scene to disk as SVG or PNG, creating parent
// directories as needed. It returns the path written, which gains a ".svg"
// suffix when none was given.
func SaveSnapshot(opts SnapshotOptions) (string, error) {
	if opts.Path == "" {
		return "", fmt.Errorf("output path is required")
	}
	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg"
			if filepath.Ext(opts.Path) == "" {
				opts.Path += ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return "", fmt.Errorf("unsupported format %q (want svg or png)", format)
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return "", fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.Create(opts.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if format == "png" {
		err = RenderPNG(f, opts.Scene)
	} else {
		err = RenderSVG(f, opts.Scene)
	}
	if err != nil {
		return "", fmt.Errorf("render %s: %w", format, err)
	}
	return opts.Path, f.Close()
}

// SnapshotPath returns a fresh snapshot file name inside dir.
func SnapshotPath(dir, format string) string {
	if format == "" {
		format = "svg"
	}
	return filepath.Join(dir, "datefacet-"+uuid.NewString()[:8]+"."+format)
}

var (
	colorAxis     = color.RGBA{0x33, 0x33, 0x33, 0xff}
	colorGrid     = color.RGBA{0xe5, 0xe7, 0xeb, 0xff}
	colorLabel    = color.RGBA{0x55, 0x55, 0x55, 0xff}
	colorBackdrop = color.RGBA{0xff, 0xff, 0xff, 0xff}
)

const (
	areaOpacity = 0.3
	lineWidth   = 4
	markerR     = 5
)

// RenderSVG writes scene as a standalone SVG document.
func RenderSVG(w io.Writer, scene chart.Scene) error {
	defer metrics.Timer(metrics.RenderSVG)()

	d := scene.Dims
	width, height := int(math.Round(d.Width)), int(math.Round(d.Height))
	canvas := svg.New(w)
	canvas.Start(width, height,
		fmt.Sprintf(`viewBox="0 0 %d %d"`, width, height),
		fmt.Sprintf(`data-curve="%s"`, attr(scene.Curve)))

	canvas.Group(`class="y-axis"`, `font-size="10"`, `font-family="sans-serif"`)
	for _, tk := range scene.YTicks {
		y := int(math.Round(tk.Pos))
		canvas.Line(int(d.MarginLeft), y, int(d.Width-d.MarginRight), y, fmt.Sprintf("stroke:%s", css(colorGrid)))
		canvas.Text(int(d.MarginLeft)-6, y+3, tk.Label, `text-anchor="end"`, fmt.Sprintf(`fill="%s"`, css(colorLabel)))
	}
	canvas.Line(int(d.MarginLeft), int(d.MarginTop), int(d.MarginLeft), int(d.Height-d.MarginBottom),
		fmt.Sprintf("stroke:%s", css(colorAxis)))
	canvas.Gend()

	canvas.Group(`class="x-axis"`, `font-size="10"`, `font-family="sans-serif"`)
	axisY := int(d.Height - d.MarginBottom)
	canvas.Line(int(d.MarginLeft), axisY, int(d.Width-d.MarginRight), axisY, fmt.Sprintf("stroke:%s", css(colorAxis)))
	for _, tk := range scene.XTicks {
		x := int(math.Round(tk.Pos))
		canvas.Line(x, axisY, x, axisY+6, fmt.Sprintf("stroke:%s", css(colorAxis)))
		canvas.Text(x, axisY+18, tk.Label, `text-anchor="middle"`, fmt.Sprintf(`fill="%s"`, css(colorLabel)))
	}
	canvas.Gend()

	for _, se := range scene.Series {
		canvas.Group(fmt.Sprintf(`data-term="%s"`, attr(se.Term)), `class="facet"`)
		canvas.Title(se.Term)
		if !se.Area.Empty() {
			canvas.Path(se.Area.SVG(), `class="area"`,
				fmt.Sprintf(`fill="%s"`, attr(se.Color)), fmt.Sprintf(`fill-opacity="%g"`, areaOpacity))
		}
		if !se.Line.Empty() {
			canvas.Path(se.Line.SVG(), `class="line"`,
				fmt.Sprintf(`stroke="%s"`, attr(se.Color)), fmt.Sprintf(`stroke-width="%d"`, lineWidth), `fill="transparent"`)
		}
		for _, m := range se.Markers {
			canvas.Group(fmt.Sprintf(`data-key="%s"`, attr(m.Key)))
			canvas.Title(fmt.Sprintf("%s %s: %.1f%% (%d)", se.Term, m.Key, m.Percent, m.Count))
			canvas.Circle(int(math.Round(m.X)), int(math.Round(m.Y)), markerR, fmt.Sprintf(`fill="%s"`, attr(se.Color)))
			canvas.Gend()
		}
		canvas.Gend()
	}

	canvas.End()
	return nil
}

// SVGFragment renders scene as an inline <svg> element, without the XML
// prolog, for embedding in HTML.
func SVGFragment(scene chart.Scene) (string, error) {
	var buf bytes.Buffer
	if err := RenderSVG(&buf, scene); err != nil {
		return "", err
	}
	out := buf.String()
	if i := strings.Index(out, "<svg"); i > 0 {
		out = out[i:]
	}
	return out, nil
}

// RenderPNG rasterises scene and encodes it as PNG.
func RenderPNG(w io.Writer, scene chart.Scene) error {
	defer metrics.Timer(metrics.RenderPNG)()

	d := scene.Dims
	dc := gg.NewContext(int(math.Round(d.Width)), int(math.Round(d.Height)))
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	drawAxesPNG(dc, scene)

	for _, se := range scene.Series {
		c, err := palette.ParseHex(se.Color)
		if err != nil {
			return fmt.Errorf("series %q: %w", se.Term, err)
		}
		if !se.Area.Empty() {
			tracePath(dc, se.Area)
			dc.SetColor(color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(areaOpacity * 255))})
			dc.Fill()
		}
		if !se.Line.Empty() {
			tracePath(dc, se.Line)
			dc.SetColor(c)
			dc.SetLineWidth(lineWidth)
			dc.Stroke()
		}
		dc.SetColor(c)
		for _, m := range se.Markers {
			dc.DrawCircle(m.X, m.Y, markerR)
			dc.Fill()
		}
	}
	return dc.EncodePNG(w)
}

func drawAxesPNG(dc *gg.Context, scene chart.Scene) {
	d := scene.Dims
	dc.SetLineWidth(1)
	for _, tk := range scene.YTicks {
		dc.SetColor(colorGrid)
		dc.DrawLine(d.MarginLeft, tk.Pos, d.Width-d.MarginRight, tk.Pos)
		dc.Stroke()
		dc.SetColor(colorLabel)
		dc.DrawStringAnchored(tk.Label, d.MarginLeft-6, tk.Pos, 1, 0.35)
	}

	dc.SetColor(colorAxis)
	axisY := d.Height - d.MarginBottom
	dc.DrawLine(d.MarginLeft, d.MarginTop, d.MarginLeft, axisY)
	dc.Stroke()
	dc.DrawLine(d.MarginLeft, axisY, d.Width-d.MarginRight, axisY)
	dc.Stroke()
	for _, tk := range scene.XTicks {
		dc.SetColor(colorAxis)
		dc.DrawLine(tk.Pos, axisY, tk.Pos, axisY+6)
		dc.Stroke()
		dc.SetColor(colorLabel)
		dc.DrawStringAnchored(tk.Label, tk.Pos, axisY+16, 0.5, 0.5)
	}
}

func tracePath(dc *gg.Context, p chart.Path) {
	dc.NewSubPath()
	for _, s := range p {
		switch s.Op {
		case chart.OpMove:
			dc.MoveTo(s.P[0].X, s.P[0].Y)
		case chart.OpLine:
			dc.LineTo(s.P[0].X, s.P[0].Y)
		case chart.OpCubic:
			dc.CubicTo(s.P[0].X, s.P[0].Y, s.P[1].X, s.P[1].Y, s.P[2].X, s.P[2].Y)
		case chart.OpClose:
			dc.ClosePath()
		}
	}
}

func attr(s string) string { return html.EscapeString(s) }

func css(c color.RGBA) string { return palette.Hex(c) }
