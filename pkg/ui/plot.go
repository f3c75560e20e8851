package ui

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/vanderheijden86/datefacet/pkg/chart"
	"github.com/vanderheijden86/datefacet/pkg/palette"
)

type namedColor struct {
	r, g, b int
	ansi    asciigraph.AnsiColor
}

// Named asciigraph colours the palette is matched against, with their CSS
// RGB values.
var plotColors = []namedColor{
	{70, 130, 180, asciigraph.SteelBlue},
	{255, 140, 0, asciigraph.DarkOrange},
	{205, 92, 92, asciigraph.IndianRed},
	{95, 158, 160, asciigraph.CadetBlue},
	{60, 179, 113, asciigraph.MediumSeaGreen},
	{218, 165, 32, asciigraph.Goldenrod},
	{218, 112, 214, asciigraph.Orchid},
	{255, 182, 193, asciigraph.LightPink},
	{160, 82, 45, asciigraph.Sienna},
	{169, 169, 169, asciigraph.DarkGray},
}

// nearestPlotColor maps a hex colour to the closest named asciigraph colour.
// Unparseable input gets the terminal default.
func nearestPlotColor(hex string) asciigraph.AnsiColor {
	c, err := palette.ParseHex(hex)
	if err != nil {
		return asciigraph.Default
	}
	best, bestDist := asciigraph.Default, math.MaxInt
	for _, nc := range plotColors {
		dr, dg, db := int(c.R)-nc.r, int(c.G)-nc.g, int(c.B)-nc.b
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			best, bestDist = nc.ansi, d
		}
	}
	return best
}

// plotYears returns the sorted, distinct years any series has a marker for.
func plotYears(scene chart.Scene) []int {
	seen := make(map[int]bool)
	var years []int
	for _, se := range scene.Series {
		for _, m := range se.Markers {
			if !seen[m.Year] {
				seen[m.Year] = true
				years = append(years, m.Year)
			}
		}
	}
	sort.Ints(years)
	return years
}

// plotData lays every series out over years. Years a series has no
// marker for are NaN, which asciigraph leaves blank.
func plotData(scene chart.Scene, years []int) [][]float64 {
	index := make(map[int]int, len(years))
	for i, y := range years {
		index[y] = i
	}
	data := make([][]float64, 0, len(scene.Series))
	for _, se := range scene.Series {
		row := make([]float64, len(years))
		for i := range row {
			row[i] = math.NaN()
		}
		for _, m := range se.Markers {
			row[index[m.Year]] = m.Percent
		}
		data = append(data, row)
	}
	return data
}

// renderPlot draws the scene's percentage series as a terminal line chart.
// width and height are the plot area in cells, excluding the axis labels.
func renderPlot(scene chart.Scene, width, height int) string {
	years := plotYears(scene)
	if len(scene.Series) == 0 || len(years) == 0 {
		return ""
	}
	colors := make([]asciigraph.AnsiColor, len(scene.Series))
	for i, se := range scene.Series {
		colors[i] = nearestPlotColor(se.Color)
	}

	data := plotData(scene, years)
	if width > len(years) {
		data = stretch(data, width/len(years))
	}
	return asciigraph.PlotMany(data,
		asciigraph.Height(max(height, 3)),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(100),
		asciigraph.SeriesColors(colors...),
		asciigraph.Precision(0),
		asciigraph.Caption(plotCaption(years)),
	)
}

// stretch repeats every value n times. asciigraph's own Width option
// interpolates, which loses single points between NaN gaps.
func stretch(data [][]float64, n int) [][]float64 {
	if n <= 1 {
		return data
	}
	out := make([][]float64, len(data))
	for i, row := range data {
		wide := make([]float64, 0, len(row)*n)
		for _, v := range row {
			for range n {
				wide = append(wide, v)
			}
		}
		out[i] = wide
	}
	return out
}

func plotCaption(years []int) string {
	if len(years) == 1 {
		return fmt.Sprintf("%% of documents, %d", years[0])
	}
	return fmt.Sprintf("%% of documents, %d-%d", years[0], years[len(years)-1])
}

// renderLegend lists each term in its plot colour.
func renderLegend(t Theme, scene chart.Scene) string {
	parts := make([]string, 0, len(scene.Series))
	for _, se := range scene.Series {
		swatch := t.Renderer.NewStyle().Foreground(ThemeFg(se.Color)).Render("━━")
		parts = append(parts, swatch+" "+truncate(se.Term, 20))
	}
	return strings.Join(parts, "  ")
}
