package page

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vanderheijden86/datefacet/pkg/model"
	"github.com/vanderheijden86/datefacet/pkg/taginput"
)

const testPage = `<!DOCTYPE html>
<html>
<head><title>Press conferences</title></head>
<body>
<script id="facet-data" type="application/json">
{"baseline": [["2020", 100], ["2021", 200]],
 "facets": [{"term": "x", "date": [{"key": "2020", "count": 50}]}]}
</script>
<div id="first" data-datefacetchart data-width="500">
  <input type="text" value="x" data-additemtext="Add ${value}" data-fetchurl="/facet.json" data-queryparam="term">
</div>
<section data-datefacetchart></section>
</body>
</html>`

type fakeFetcher struct{ facets []model.Facet }

func (f fakeFetcher) Fetch(context.Context, string) ([]model.Facet, error) { return f.facets, nil }

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(testPage))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Payload.Baseline) != 2 || len(doc.Payload.Facets) != 1 {
		t.Errorf("payload = %+v", doc.Payload)
	}
	if len(doc.Containers) != 2 {
		t.Fatalf("expected 2 containers, got %d", len(doc.Containers))
	}
	first := doc.Containers[0]
	if first.ID != "first" || first.Width != 500 {
		t.Errorf("first container = %+v", first)
	}
	if first.Input == nil {
		t.Fatal("first container input not found")
	}
	if first.Options.FetchURL != "/facet.json" || first.Options.QueryParam != "term" {
		t.Errorf("options = %+v", first.Options)
	}
	second := doc.Containers[1]
	if second.Input != nil {
		t.Error("second container should have no input")
	}
	if second.ID == "" {
		t.Error("container without id should get a generated one")
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(strings.NewReader(`<html><body><div data-datefacetchart></div></body></html>`))
	if !errors.Is(err, ErrNoFacetData) {
		t.Errorf("expected ErrNoFacetData, got %v", err)
	}

	_, err = Parse(strings.NewReader(`<script id="facet-data">{"baseline": [</script>`))
	if err == nil || errors.Is(err, ErrNoFacetData) {
		t.Errorf("expected JSON error, got %v", err)
	}
}

func TestBootstrap(t *testing.T) {
	doc, err := Parse(strings.NewReader(testPage))
	if err != nil {
		t.Fatal(err)
	}
	var fetcherFor []string
	widgets, err := doc.Bootstrap(BootstrapOptions{
		NewFetcher: func(o taginput.Options) taginput.Fetcher {
			fetcherFor = append(fetcherFor, o.FetchURL)
			return fakeFetcher{facets: []model.Facet{{Term: "y", Date: []model.DataPoint{{Key: "2021", Count: 100}}}}}
		},
	})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if len(widgets) != 2 {
		t.Fatalf("expected 2 widgets, got %d", len(widgets))
	}
	if len(fetcherFor) != 1 {
		t.Errorf("fetchers built for %q, want only the first container", fetcherFor)
	}

	w := widgets[0]
	if w.Input == nil || w.Adapter == nil {
		t.Fatal("first widget should have a tag input")
	}
	if items := w.Input.Items(); len(items) != 1 || items[0] != "x" {
		t.Errorf("initial items = %q", items)
	}
	if got := w.State.Scene().Dims.Width; got != 500 {
		t.Errorf("width = %v, want 500", got)
	}
	if widgets[1].Input != nil {
		t.Error("second widget should have no input")
	}

	// Widgets do not share facet lists or colour pools.
	if _, err := w.Adapter.Add(context.Background(), "y"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !w.State.HasTerm("y") {
		t.Error("fetched facet not merged")
	}
	if widgets[1].State.HasTerm("y") {
		t.Error("facet leaked into the other chart")
	}
	if len(doc.Payload.Facets) != 1 {
		t.Error("shared payload was mutated")
	}
}

func TestRender(t *testing.T) {
	doc, err := Parse(strings.NewReader(testPage))
	if err != nil {
		t.Fatal(err)
	}
	widgets, err := doc.Bootstrap(BootstrapOptions{})
	if err != nil {
		t.Fatal(err)
	}
	widgets[0].Input.Add("tax")

	out, err := doc.RenderString(widgets)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if n := strings.Count(out, "<svg"); n != 2 {
		t.Errorf("expected 2 svg charts, got %d", n)
	}
	if !strings.Contains(out, `.choices__item[data-value="x"] { background-color: #4e79a7; }`) {
		t.Error("style rule for x missing")
	}
	if !strings.Contains(out, `value="x,tax"`) || !strings.Contains(out, `data-items="x,tax"`) {
		t.Error("input value not updated")
	}
	if !strings.Contains(out, `data-chart-id="first"`) {
		t.Error("container id attribute missing")
	}
	headEnd := strings.Index(out, "</head>")
	styleAt := strings.Index(out, "<style")
	if styleAt < 0 || styleAt > headEnd {
		t.Error("style element not inside <head>")
	}

	again, err := doc.RenderString(widgets)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(again, "<svg"); n != 2 {
		t.Errorf("second render has %d svg charts, want 2", n)
	}
}
