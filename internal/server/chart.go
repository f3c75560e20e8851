package server

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/vanderheijden86/datefacet/internal/datasource"
	"github.com/vanderheijden86/datefacet/pkg/chart"
	"github.com/vanderheijden86/datefacet/pkg/export"
	"github.com/vanderheijden86/datefacet/pkg/model"
	"github.com/vanderheijden86/datefacet/pkg/page"
	"github.com/vanderheijden86/datefacet/pkg/palette"
	"github.com/vanderheijden86/datefacet/pkg/taginput"
)

// chartRequest is the query shared by the raw chart routes.
type chartRequest struct {
	terms []string
	rng   datasource.YearRange
	width float64
}

func parseChartRequest(r *http.Request) (chartRequest, error) {
	q := r.URL.Query()
	rng, err := datasource.ParseYearRange(q.Get("from"), q.Get("to"))
	if err != nil {
		return chartRequest{}, err
	}
	req := chartRequest{terms: splitTerms(q["q"], ","), rng: rng}
	if w := q.Get("width"); w != "" {
		width, err := strconv.ParseFloat(w, 64)
		if err != nil || width <= 0 {
			return chartRequest{}, errors.New("invalid width")
		}
		req.width = width
	}
	return req, nil
}

// scene loads the payload for req and lays it out. A payload with more
// terms than colours still renders the first ones.
func (s *server) scene(ctx context.Context, req chartRequest) (chart.Scene, error) {
	p, err := s.svc.Payload(ctx, req.terms, req.rng)
	if err != nil {
		return chart.Scene{}, err
	}
	opts := s.opts.Chart
	if req.width > 0 {
		opts.Dims.Width = req.width
	}
	state, err := chart.NewState(p, opts)
	if err != nil {
		if !errors.Is(err, palette.ErrPaletteExhausted) {
			return chart.Scene{}, err
		}
		slog.Warn("chart truncated", "error", err)
	}
	return state.Scene(), nil
}

func (s *server) handleSVG(w http.ResponseWriter, r *http.Request) {
	req, err := parseChartRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	scene, err := s.scene(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.RenderSVG(&buf, scene); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("svg response write failed", "error", err)
	}
}

func (s *server) handlePNG(w http.ResponseWriter, r *http.Request) {
	req, err := parseChartRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	scene, err := s.scene(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.RenderPNG(&buf, scene); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("png response write failed", "error", err)
	}
}

type pageData struct {
	Title   string
	Payload template.JS
	Width   float64
	Value   string
	Tags    taginput.Options
	Live    bool
}

// handlePage renders the shell page with the payload embedded, then runs
// it through the same bootstrap a browser would, so the response already
// carries the drawn chart.
func (s *server) handlePage(w http.ResponseWriter, r *http.Request) {
	req, err := parseChartRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := s.svc.Payload(r.Context(), req.terms, req.rng)
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := model.EncodePayload(p)
	if err != nil {
		writeError(w, err)
		return
	}

	width := s.opts.Chart.Dims.Width
	if req.width > 0 {
		width = req.width
	}
	var shell bytes.Buffer
	err = pageTemplate.Execute(&shell, pageData{
		Title:   s.opts.Title,
		Payload: template.JS(strings.ReplaceAll(string(data), "</", `<\/`)),
		Width:   width,
		Value:   strings.Join(req.terms, s.opts.Tags.Delimiter),
		Tags:    s.opts.Tags,
		Live:    true,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	doc, err := page.Parse(&shell)
	if err != nil {
		writeError(w, err)
		return
	}
	widgets, err := doc.Bootstrap(page.BootstrapOptions{
		Dims:   s.opts.Chart.Dims,
		Curve:  s.opts.Chart.Curve,
		Colors: s.opts.Chart.Colors,
	})
	if err != nil && !errors.Is(err, palette.ErrPaletteExhausted) {
		writeError(w, err)
		return
	}
	var out bytes.Buffer
	if err := doc.Render(&out, widgets); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(out.Bytes()); err != nil {
		slog.Debug("page response write failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, datasource.ErrInvalidRange):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNoData):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}
