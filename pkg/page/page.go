// Package page bootstraps date facet charts embedded in an HTML document.
//
// A document carries one JSON payload in the element with id "facet-data"
// and any number of containers marked with the data-datefacetchart
// attribute. Each container gets its own chart, optionally driven by the
// first <input> inside it.
package page

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vanderheijden86/datefacet/pkg/chart"
	"github.com/vanderheijden86/datefacet/pkg/debug"
	"github.com/vanderheijden86/datefacet/pkg/export"
	"github.com/vanderheijden86/datefacet/pkg/metrics"
	"github.com/vanderheijden86/datefacet/pkg/model"
	"github.com/vanderheijden86/datefacet/pkg/taginput"
)

const (
	// FacetDataID is the id of the element holding the JSON payload.
	FacetDataID = "facet-data"
	// ChartAttr marks chart containers.
	ChartAttr = "data-datefacetchart"
	// ChartIDAttr is set on every container once bootstrapped.
	ChartIDAttr = "data-chart-id"
	// WidthAttr optionally fixes a container's chart width in pixels.
	WidthAttr = "data-width"
	// ItemsAttr lists the input's current values after rendering.
	ItemsAttr = "data-items"
)

// ErrNoFacetData is returned when the document has no #facet-data element.
var ErrNoFacetData = errors.New("no #" + FacetDataID + " element")

// Document is a parsed page.
type Document struct {
	root       *html.Node
	Payload    model.Payload
	Containers []*Container
	inserted   []*html.Node
}

// Container is one chart-marked element.
type Container struct {
	Node    *html.Node
	Input   *html.Node // nil when the container has no <input>
	ID      string
	Width   float64
	Options taginput.Options
}

// Parse reads an HTML document, decodes its facet payload and collects the
// chart containers. Malformed payload JSON is an error.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	dataNode := findFirst(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "id") == FacetDataID
	})
	if dataNode == nil {
		return nil, ErrNoFacetData
	}
	payload, err := model.DecodePayload([]byte(textContent(dataNode)))
	if err != nil {
		return nil, fmt.Errorf("#%s: %w", FacetDataID, err)
	}

	doc := &Document{root: root, Payload: payload}
	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode || !hasAttr(n, ChartAttr) {
			return
		}
		c := &Container{Node: n, ID: attr(n, ChartIDAttr)}
		if c.ID == "" {
			c.ID = attr(n, "id")
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if w, err := strconv.ParseFloat(attr(n, WidthAttr), 64); err == nil && w > 0 {
			c.Width = w
		}
		c.Input = findFirst(n, func(m *html.Node) bool {
			return m != n && m.Type == html.ElementNode && m.DataAtom == atom.Input
		})
		c.Options = taginput.DefaultOptions()
		if c.Input != nil {
			c.Options = taginput.OptionsFromAttrs(attrMap(c.Input))
		}
		doc.Containers = append(doc.Containers, c)
	})
	debug.Log("page: %d containers, %d facets", len(doc.Containers), len(payload.Facets))
	return doc, nil
}

// BootstrapOptions configure the charts built for a document.
type BootstrapOptions struct {
	Dims   chart.Dimensions
	Curve  chart.Curve
	Colors []string
	// NewFetcher returns the fetcher for a container's input options, or
	// nil when the input has no fetch URL.
	NewFetcher func(taginput.Options) taginput.Fetcher
	Logger     *slog.Logger
}

// Widget is one bootstrapped chart.
type Widget struct {
	ID        string
	Container *Container
	State     *chart.State
	Input     *taginput.TagInput // nil without an <input>
	Adapter   *taginput.Adapter  // nil without an <input>
}

// Bootstrap builds one chart per container. Every chart starts from its own
// copy of the payload and its own colour pool.
func (d *Document) Bootstrap(opts BootstrapOptions) ([]*Widget, error) {
	defer metrics.Timer(metrics.PageBootstrap)()
	defer debug.LogEnterExit("page.Bootstrap")()

	var errs []error
	widgets := make([]*Widget, 0, len(d.Containers))
	for _, c := range d.Containers {
		dims := opts.Dims
		if c.Width > 0 {
			dims.Width = c.Width
		}
		state, err := chart.NewState(d.Payload.Clone(), chart.Options{Dims: dims, Curve: opts.Curve, Colors: opts.Colors})
		if err != nil {
			errs = append(errs, fmt.Errorf("chart %s: %w", c.ID, err))
		}
		w := &Widget{ID: c.ID, Container: c, State: state}

		if c.Input != nil {
			initial := splitValue(attr(c.Input, "value"), c.Options.Delimiter)
			for _, term := range d.Payload.Terms() {
				if term != "" {
					initial = append(initial, term)
				}
			}
			w.Input = taginput.New(c.Options, initial...)
			var fetcher taginput.Fetcher
			if opts.NewFetcher != nil && c.Options.FetchURL != "" {
				fetcher = opts.NewFetcher(c.Options)
			}
			w.Adapter = taginput.NewAdapter(w.Input, state, fetcher, taginput.WithLogger(opts.Logger))
		}
		widgets = append(widgets, w)
	}
	return widgets, errors.Join(errs...)
}

// Render writes the document with each widget's chart appended to its
// container, its colour rules appended to <head> and its input's value set
// to the current items. Rendering again replaces the previous output.
func (d *Document) Render(w io.Writer, widgets []*Widget) error {
	for _, n := range d.inserted {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	d.inserted = nil

	head := findFirst(d.root, func(n *html.Node) bool { return n.DataAtom == atom.Head })
	for _, wg := range widgets {
		c := wg.Container
		scene := wg.State.Scene()
		setAttr(c.Node, ChartIDAttr, wg.ID)

		frag, err := export.SVGFragment(scene)
		if err != nil {
			return fmt.Errorf("chart %s: %w", wg.ID, err)
		}
		nodes, err := html.ParseFragment(strings.NewReader(frag), c.Node)
		if err != nil {
			return fmt.Errorf("chart %s: parse svg: %w", wg.ID, err)
		}
		for _, n := range nodes {
			c.Node.AppendChild(n)
			d.inserted = append(d.inserted, n)
		}

		if head != nil && len(scene.Series) > 0 {
			style := &html.Node{
				Type:     html.ElementNode,
				Data:     "style",
				DataAtom: atom.Style,
				Attr:     []html.Attribute{{Key: ChartIDAttr, Val: wg.ID}},
			}
			style.AppendChild(&html.Node{Type: html.TextNode, Data: scene.CSS()})
			head.AppendChild(style)
			d.inserted = append(d.inserted, style)
		}

		if wg.Input != nil && c.Input != nil {
			setAttr(c.Input, "value", wg.Input.Value())
			setAttr(c.Input, ItemsAttr, strings.Join(wg.Input.Items(), ","))
		}
	}
	return html.Render(w, d.root)
}

// RenderString is Render into a string.
func (d *Document) RenderString(widgets []*Widget) (string, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf, widgets); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func splitValue(v, delim string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	if delim == "" {
		delim = ","
	}
	return strings.Split(v, delim)
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(m *html.Node) {
		if m.Type == html.TextNode {
			b.WriteString(m.Data)
		}
	})
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func attrMap(n *html.Node) map[string]string {
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		m[a.Key] = a.Val
	}
	return m
}
