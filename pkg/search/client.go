// Package search looks up facet data for new terms from a remote endpoint:
// GET <fetch-url>?<param>=<term> answering {"facets": [...]}.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/datefacet/pkg/debug"
	"github.com/vanderheijden86/datefacet/pkg/metrics"
	"github.com/vanderheijden86/datefacet/pkg/model"
)

// DefaultQueryParam is used when no query parameter name is configured.
const DefaultQueryParam = "q"

const (
	defaultTimeout     = 10 * time.Second
	defaultConcurrency = 4
	maxBodyBytes       = 8 << 20
)

var (
	// ErrNoFetchURL is returned when a client is built without an endpoint.
	ErrNoFetchURL = errors.New("no fetch url configured")
	// ErrResponseTooLarge is returned when a facet answer exceeds the body
	// limit.
	ErrResponseTooLarge = errors.New("response too large")
)

// HTTPError reports a non-2xx answer from the facet endpoint.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("facet lookup %s: status %d", e.URL, e.StatusCode)
}

// Client fetches facets for terms. It is safe for concurrent use.
type Client struct {
	fetchURL    string
	param       string
	base        *url.URL
	http        *http.Client
	timeout     time.Duration
	concurrency int
	maxBody     int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithBaseURL sets the origin that relative fetch URLs resolve against.
func WithBaseURL(base string) Option {
	return func(cl *Client) {
		if u, err := url.Parse(base); err == nil && u.IsAbs() {
			cl.base = u
		}
	}
}

// WithTimeout bounds each fetch. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithConcurrency bounds FetchAll's parallel requests.
func WithConcurrency(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.concurrency = n
		}
	}
}

// WithMaxBodyBytes caps the size of a facet answer. Zero keeps the default.
func WithMaxBodyBytes(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxBody = n
		}
	}
}

// NewClient builds a client for fetchURL. An empty queryParam means "q".
func NewClient(fetchURL, queryParam string, opts ...Option) (*Client, error) {
	if fetchURL == "" {
		return nil, ErrNoFetchURL
	}
	if queryParam == "" {
		queryParam = DefaultQueryParam
	}
	c := &Client{
		fetchURL:    fetchURL,
		param:       queryParam,
		http:        http.DefaultClient,
		timeout:     defaultTimeout,
		concurrency: defaultConcurrency,
		maxBody:     maxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := c.URLFor(""); err != nil {
		return nil, err
	}
	return c, nil
}

// QueryParam is the parameter name the term is sent in.
func (c *Client) QueryParam() string { return c.param }

// URLFor builds the lookup URL for term, keeping any query already present
// in the fetch URL.
func (c *Client) URLFor(term string) (string, error) {
	u, err := url.Parse(c.fetchURL)
	if err != nil {
		return "", fmt.Errorf("parse fetch url %q: %w", c.fetchURL, err)
	}
	if !u.IsAbs() {
		if c.base == nil {
			return "", fmt.Errorf("relative fetch url %q needs a base url", c.fetchURL)
		}
		u = c.base.ResolveReference(u)
	}
	q := u.Query()
	q.Set(c.param, term)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch returns the facets the endpoint reports for term.
func (c *Client) Fetch(ctx context.Context, term string) ([]model.Facet, error) {
	defer metrics.Timer(metrics.FetchFacets)()

	target, err := c.URLFor(term)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch facets for %q: %w", term, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	debug.LogTiming("search.Fetch "+term, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: target}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read facets for %q: %w", term, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("facets for %q: %w (limit %d bytes)", term, ErrResponseTooLarge, c.maxBody)
	}
	var out model.FacetResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode facets for %q: %w", term, err)
	}
	return out.Facets, nil
}

// Result is one term's outcome from FetchAll.
type Result struct {
	Term   string
	Facets []model.Facet
	Err    error
}

// FetchAll fetches every term with bounded concurrency. Results come back
// in input order; a failed term carries its error instead of failing the
// batch. The returned error is non-nil only when ctx is cancelled.
func (c *Client) FetchAll(ctx context.Context, terms []string) ([]Result, error) {
	results := make([]Result, len(terms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, term := range terms {
		g.Go(func() error {
			facets, err := c.Fetch(gctx, term)
			results[i] = Result{Term: term, Facets: facets, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
