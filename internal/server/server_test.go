package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/datefacet/internal/datasource"
	"github.com/vanderheijden86/datefacet/pkg/model"
	"github.com/vanderheijden86/datefacet/pkg/watcher"
)

func seededStore(t *testing.T) *datasource.Store {
	t.Helper()
	store, err := datasource.Open(filepath.Join(t.TempDir(), "documents.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	at := func(year int) time.Time { return time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC) }
	err = store.Insert(context.Background(),
		datasource.Document{ID: "1", Slug: "a", Date: at(2020), Description: "tax plans"},
		datasource.Document{ID: "2", Slug: "b", Date: at(2020), Content: "weather"},
		datasource.Document{ID: "3", Slug: "c", Date: at(2021), Content: "climate and tax"},
		datasource.Document{ID: "4", Slug: "d", Date: at(2022), Description: "climate"},
	)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func newTestServer(t *testing.T) (http.Handler, *Broker) {
	t.Helper()
	broker := NewBroker()
	return NewServer(StoreService{Store: seededStore(t)}, broker, Options{Title: "Press conferences"}), broker
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestFacetJSON(t *testing.T) {
	h, _ := newTestServer(t)
	rec := get(t, h, "/facet.json?q=tax")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var resp model.FacetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Facets) != 1 || resp.Facets[0].Term != "tax" {
		t.Fatalf("facets = %+v", resp.Facets)
	}
	counts := map[string]int{}
	for _, p := range resp.Facets[0].Date {
		counts[p.Key] = p.Count
	}
	if counts["2020"] != 1 || counts["2021"] != 1 || counts["2022"] != 0 {
		t.Errorf("counts = %v", counts)
	}
}

func TestFacetJSON_NoTermIsAllDocuments(t *testing.T) {
	h, _ := newTestServer(t)
	rec := get(t, h, "/facet.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var resp model.FacetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Facets) != 1 || resp.Facets[0].Term != "" {
		t.Fatalf("facets = %+v", resp.Facets)
	}
	counts := map[string]int{}
	for _, p := range resp.Facets[0].Date {
		counts[p.Key] = p.Count
	}
	if counts["2020"] != 2 || counts["2021"] != 1 || counts["2022"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestPage_NoTermDrawsAllDocuments(t *testing.T) {
	h, _ := newTestServer(t)
	rec := get(t, h, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `data-term=""`) {
		t.Error("all-documents series missing")
	}
	if !strings.Contains(body, `data-items=""`) {
		t.Error("empty term became a chip")
	}
}

func TestListFacets(t *testing.T) {
	h, _ := newTestServer(t)
	rec := get(t, h, "/api/v1/facets?q=tax&q=climate")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	p, err := model.DecodePayload(rec.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Baseline) != 3 {
		t.Errorf("baseline = %+v", p.Baseline)
	}
	if terms := p.Terms(); len(terms) != 2 || terms[0] != "tax" || terms[1] != "climate" {
		t.Errorf("terms = %q", terms)
	}
}

func TestBaseline_YearRange(t *testing.T) {
	h, _ := newTestServer(t)
	rec := get(t, h, "/api/v1/baseline?from=2021")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var body struct {
		Baseline model.Baseline `json:"baseline"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Baseline) != 2 || body.Baseline[0].Key != "2021" {
		t.Errorf("baseline = %+v", body.Baseline)
	}

	if rec := get(t, h, "/api/v1/baseline?from=2022&to=2020"); rec.Code != http.StatusBadRequest {
		t.Errorf("inverted range status = %d", rec.Code)
	}
}

func TestChartSVG(t *testing.T) {
	h, _ := newTestServer(t)
	rec := get(t, h, "/chart.svg?q=tax,climate&width=800")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `width="800"`) {
		t.Error("width not applied")
	}
	if !strings.Contains(body, `data-term="tax"`) || !strings.Contains(body, `data-term="climate"`) {
		t.Error("series missing")
	}

	if rec := get(t, h, "/chart.svg?width=-3"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad width status = %d", rec.Code)
	}
}

func TestChartPNG(t *testing.T) {
	h, _ := newTestServer(t)
	rec := get(t, h, "/chart.png?q=tax")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("not a PNG")
	}
}

func TestPage(t *testing.T) {
	h, _ := newTestServer(t)
	rec := get(t, h, "/?q=tax")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`id="facet-data"`,
		`data-datefacetchart`,
		`data-fetchurl="/facet.json"`,
		`data-queryparam="q"`,
		`<svg`,
		`.choices__item[data-value="tax"] { background-color: #4e79a7; }`,
		`data-items="tax"`,
		`<title>Press conferences</title>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %s", want)
		}
	}
}

func TestPage_TermCannotCloseStyle(t *testing.T) {
	h, _ := newTestServer(t)
	rec := get(t, h, "/?q="+url.QueryEscape(`</style><img src=x onerror=alert(1)>`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<img") {
		t.Errorf("term injected markup into the page: %s", body)
	}
	plain := get(t, h, "/?q=tax").Body.String()
	if got, want := strings.Count(body, "</style>"), strings.Count(plain, "</style>"); got != want {
		t.Errorf("found %d </style> tags, want %d", got, want)
	}
	if !strings.Contains(body, `\3c /style\3e \3c img`) {
		t.Error("escaped style rule missing")
	}
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t)
	rec := get(t, h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Clients != 0 {
		t.Errorf("health = %+v", body)
	}
}

func TestWebSocketRedraw(t *testing.T) {
	h, broker := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for broker.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	broker.Publish(Event{Type: EventRedraw})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, err := wsutil.ReadServerText(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatal(err)
	}
	if evt.Type != EventRedraw {
		t.Errorf("event = %+v", evt)
	}
}

func TestBroker(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d", b.ClientCount())
	}
	for i := 0; i < subscriberBufSize+10; i++ {
		b.Publish(Event{Type: EventRedraw})
	}
	if len(ch) != subscriberBufSize {
		t.Errorf("buffered %d events", len(ch))
	}
	b.Unsubscribe(id)
	b.Unsubscribe(id)
	if b.ClientCount() != 0 {
		t.Error("subscriber not removed")
	}
}

const filePayload = `{"baseline": [["2019", 10], ["2020", 20]],
 "facets": [{"term": "tax", "date": [{"key": "2019", "count": 5}, {"key": "2020", "count": 2}]},
            {"term": "climate", "date": [{"key": "2020", "count": 4}]}]}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFileService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facets.json")
	writeFile(t, path, filePayload)

	svc, err := NewFileService(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	all, _ := svc.Payload(ctx, nil, datasource.YearRange{})
	if len(all.Facets) != 2 {
		t.Errorf("default facets = %d", len(all.Facets))
	}

	p, _ := svc.Payload(ctx, []string{"climate", "unknown", "climate"}, datasource.YearRange{From: 2020})
	if len(p.Facets) != 1 || p.Facets[0].Term != "climate" {
		t.Errorf("facets = %+v", p.Facets)
	}
	if len(p.Baseline) != 1 || p.Baseline[0].Key != "2020" {
		t.Errorf("baseline = %+v", p.Baseline)
	}

	writeFile(t, path, `{"baseline": [`)
	if err := svc.Reload(); err == nil {
		t.Error("expected reload error")
	}
	kept, _ := svc.Payload(ctx, nil, datasource.YearRange{})
	if len(kept.Facets) != 2 {
		t.Error("failed reload dropped the previous payload")
	}

	if _, err := (&FileService{}).Payload(ctx, nil, datasource.YearRange{}); err != ErrNoData {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestFileServiceOverHTTP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facets.json")
	writeFile(t, path, filePayload)
	svc, err := NewFileService(path)
	if err != nil {
		t.Fatal(err)
	}
	h := NewServer(svc, nil, Options{})

	rec := get(t, h, "/facet.json?q=tax")
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK || !strings.Contains(string(body), `"term":"tax"`) {
		t.Errorf("status = %d body = %s", rec.Code, body)
	}

	rec = get(t, h, "/")
	if !strings.Contains(rec.Body.String(), `data-items="tax,climate"`) {
		t.Error("file facets not shown as initial items")
	}
}

func TestWatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facets.json")
	writeFile(t, path, filePayload)
	svc, err := NewFileService(path)
	if err != nil {
		t.Fatal(err)
	}
	broker := NewBroker()
	_, events := broker.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := WatchFile(ctx, svc, broker,
		watcher.WithForcePoll(true),
		watcher.WithPollInterval(20*time.Millisecond),
		watcher.WithDebounceDuration(10*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(40 * time.Millisecond)
	writeFile(t, path, `{"baseline": [["2020", 1]], "facets": []}`)

	select {
	case evt := <-events:
		if evt.Type != EventRedraw {
			t.Errorf("event = %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no redraw event")
	}
	p, _ := svc.Payload(ctx, nil, datasource.YearRange{})
	if len(p.Facets) != 0 || len(p.Baseline) != 1 {
		t.Errorf("payload not reloaded: %+v", p)
	}
}
