// Package server exposes date facet charts over HTTP: a JSON API for the
// tag input's facet lookups, server-rendered SVG/PNG charts, a bootstrapped
// HTML page and a WebSocket that announces data reloads.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vanderheijden86/datefacet/internal/datasource"
	"github.com/vanderheijden86/datefacet/pkg/chart"
	"github.com/vanderheijden86/datefacet/pkg/metrics"
	"github.com/vanderheijden86/datefacet/pkg/model"
	"github.com/vanderheijden86/datefacet/pkg/search"
	"github.com/vanderheijden86/datefacet/pkg/taginput"
	"github.com/vanderheijden86/datefacet/pkg/version"
)

//go:embed templates/page.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// FacetPath is the facet lookup endpoint the page's tag input points at.
const FacetPath = "/facet.json"

// Options configure the handlers.
type Options struct {
	Title string
	Chart chart.Options
	Tags  taginput.Options
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "Date facets"
	}
	if o.Tags.FetchURL == "" {
		o.Tags.FetchURL = FacetPath
	}
	// The handlers only read the "q" parameter.
	o.Tags.QueryParam = search.DefaultQueryParam
	if o.Tags.Delimiter == "" {
		o.Tags.Delimiter = ","
	}
	if o.Tags.MaxItems <= 0 {
		o.Tags.MaxItems = taginput.DefaultOptions().MaxItems
	}
	o.Chart.Dims = o.Chart.Dims.WithDefaults()
	return o
}

type server struct {
	svc    Service
	broker *Broker
	opts   Options
}

// NewServer builds the router. broker may be nil when nothing publishes
// live updates.
func NewServer(svc Service, broker *Broker, opts Options) http.Handler {
	if broker == nil {
		broker = NewBroker()
	}
	s := &server{svc: svc, broker: broker, opts: opts.withDefaults()}

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("datefacet API", version.Version)
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	registerFacetHandlers(api, s)
	registerHealthHandlers(api, s)

	router.Get("/", s.handlePage)
	router.Get("/chart.svg", s.handleSVG)
	router.Get("/chart.png", s.handlePNG)
	router.Get("/ws", s.handleWS)
	return router
}

type facetQueryInput struct {
	Terms []string `query:"q,explode" doc:"Search terms; repeat the parameter or separate with commas"`
	From  string   `query:"from" doc:"First year, inclusive"`
	To    string   `query:"to" doc:"Last year, inclusive"`
}

func (in facetQueryInput) query() ([]string, datasource.YearRange, error) {
	rng, err := datasource.ParseYearRange(in.From, in.To)
	return splitTerms(in.Terms, ","), rng, err
}

type facetsOutput struct {
	Body model.FacetResponse
}

type payloadOutput struct {
	Body model.Payload
}

type baselineOutput struct {
	Body struct {
		Baseline model.Baseline `json:"baseline"`
	}
}

func registerFacetHandlers(api huma.API, s *server) {
	huma.Register(api, huma.Operation{OperationID: "get-facet-json", Method: http.MethodGet, Path: FacetPath, Summary: "Facets for the given terms", Tags: []string{"Facets"}},
		func(ctx context.Context, input *facetQueryInput) (*facetsOutput, error) {
			terms, rng, err := input.query()
			if err != nil {
				return nil, mapErr(err)
			}
			p, err := s.svc.Payload(ctx, terms, rng)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &facetsOutput{}
			out.Body.Facets = nonNil(p.Facets)
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "list-facets", Method: http.MethodGet, Path: "/api/v1/facets", Summary: "Baseline and facets", Tags: []string{"Facets"}},
		func(ctx context.Context, input *facetQueryInput) (*payloadOutput, error) {
			terms, rng, err := input.query()
			if err != nil {
				return nil, mapErr(err)
			}
			p, err := s.svc.Payload(ctx, terms, rng)
			if err != nil {
				return nil, mapErr(err)
			}
			if p.Baseline == nil {
				p.Baseline = model.Baseline{}
			}
			p.Facets = nonNil(p.Facets)
			return &payloadOutput{Body: p}, nil
		})

	type baselineInput struct {
		From string `query:"from" doc:"First year, inclusive"`
		To   string `query:"to" doc:"Last year, inclusive"`
	}
	huma.Register(api, huma.Operation{OperationID: "get-baseline", Method: http.MethodGet, Path: "/api/v1/baseline", Summary: "Document count per year", Tags: []string{"Facets"}},
		func(ctx context.Context, input *baselineInput) (*baselineOutput, error) {
			rng, err := datasource.ParseYearRange(input.From, input.To)
			if err != nil {
				return nil, mapErr(err)
			}
			p, err := s.svc.Payload(ctx, []string{""}, rng)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &baselineOutput{}
			out.Body.Baseline = p.Baseline
			if out.Body.Baseline == nil {
				out.Body.Baseline = model.Baseline{}
			}
			return out, nil
		})
}

func registerHealthHandlers(api huma.API, s *server) {
	type healthOutput struct {
		Body struct {
			Status  string                `json:"status"`
			Version string                `json:"version"`
			Clients int                   `json:"clients"`
			Metrics []metrics.TimingStats `json:"metrics"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "healthz", Method: http.MethodGet, Path: "/healthz", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.Version = version.Version
			out.Body.Clients = s.broker.ClientCount()
			out.Body.Metrics = metrics.Snapshot()
			return out, nil
		})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, datasource.ErrInvalidRange):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, ErrNoData):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout(err.Error())
	}
	slog.Error("request failed", "error", err)
	return huma.Error500InternalServerError(err.Error())
}

// splitTerms flattens repeated and delimiter-joined values, trimming each
// and dropping empties.
func splitTerms(values []string, delim string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, delim) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func nonNil(f []model.Facet) []model.Facet {
	if f == nil {
		return []model.Facet{}
	}
	return f
}
