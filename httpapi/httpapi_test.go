package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/swatchsync/analytics"
	"github.com/hazyhaar/swatchsync/engine"
	"github.com/hazyhaar/swatchsync/preload"
	"github.com/hazyhaar/swatchsync/reinit"
)

const testPage = `<div class="product-block">
  <div class="product-swatches" data-block-id="block-a" data-swatches='[
    {"color_name":"Forest","product_id":"p-100","is_current":true,
     "images":[{"url":"https://cdn.example/forest-1.jpg"},{"url":"https://cdn.example/forest-2.jpg"}]},
    {"color_name":"Sand","product_id":"p-101",
     "images":[{"url":"https://cdn.example/sand-1.jpg"},{"url":"https://cdn.example/sand-2.jpg"}]}
  ]'>
    <button class="product-swatches__item" type="button">Forest</button>
    <button class="product-swatches__item" type="button">Sand</button>
  </div>
  <div class="product-carousel" data-product-id="p-100">
    <div class="product-carousel__track">
      <div class="product-carousel__slide is-active"><img src="https://cdn.example/forest-1.jpg"></div>
      <div class="product-carousel__slide"><img src="https://cdn.example/forest-2.jpg"></div>
    </div>
    <div class="product-carousel__dots">
      <button class="product-carousel__dot is-active" type="button"></button>
      <button class="product-carousel__dot" type="button"></button>
    </div>
    <button class="product-carousel__prev" type="button">Prev</button>
    <button class="product-carousel__next" type="button">Next</button>
  </div>
</div>`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, events *analytics.Store) (*Server, *engine.Engine) {
	t.Helper()
	fetch := func(ctx context.Context, url string) (preload.Handle, error) {
		return preload.Handle{URL: url, OK: true, FetchedAt: time.Now()}, nil
	}
	eng := engine.New(engine.Options{
		Loader:         preload.NewLoader(preload.NewCache(), preload.Options{Fetch: fetch, Logger: discardLogger()}),
		AnimationSpeed: 2 * time.Millisecond,
		Logger:         discardLogger(),
	})
	if err := eng.LoadMarkup(testPage); err != nil {
		t.Fatalf("LoadMarkup: %v", err)
	}
	if n := eng.Pass(); n != 1 {
		t.Fatalf("initial pass: got %d widgets, want 1", n)
	}
	coord := reinit.New(func() { eng.Pass() }, reinit.Options{Window: 5 * time.Millisecond, Logger: discardLogger()})
	return New(eng, coord, events, discardLogger()), eng
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rr := doJSON(t, srv.Router(), http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
}

func TestListBlocks(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rr := doJSON(t, srv.Router(), http.MethodGet, "/blocks", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	var blocks []engine.WidgetStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &blocks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("blocks: got %d, want 1", len(blocks))
	}
	if blocks[0].BlockID != "block-a" || blocks[0].Swatches != 2 || !blocks[0].Bound {
		t.Errorf("block: got %+v", blocks[0])
	}
}

func TestSwitchEndpoint(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	router := srv.Router()

	rr := doJSON(t, router, http.MethodPost, "/blocks/block-a/switch", `{"index":1}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body %s)", rr.Code, rr.Body)
	}
	if got := eng.States()[0].CurrentIndex; got != 1 {
		t.Errorf("CurrentIndex: got %d, want 1", got)
	}

	if rr := doJSON(t, router, http.MethodPost, "/blocks/nope/switch", `{"index":1}`); rr.Code != http.StatusNotFound {
		t.Errorf("unknown block: got %d, want 404", rr.Code)
	}
	if rr := doJSON(t, router, http.MethodPost, "/blocks/block-a/switch", `{"index":9}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("index out of range: got %d, want 422", rr.Code)
	}
	if rr := doJSON(t, router, http.MethodPost, "/blocks/block-a/switch", `not json`); rr.Code != http.StatusBadRequest {
		t.Errorf("malformed body: got %d, want 400", rr.Code)
	}
}

func TestNavigateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	if rr := doJSON(t, router, http.MethodPost, "/blocks/block-a/navigate", `{"direction":"next"}`); rr.Code != http.StatusOK {
		t.Errorf("direction next: got %d, want 200 (body %s)", rr.Code, rr.Body)
	}
	if rr := doJSON(t, router, http.MethodPost, "/blocks/block-a/navigate", `{"index":0}`); rr.Code != http.StatusOK {
		t.Errorf("index navigate: got %d, want 200", rr.Code)
	}
	if rr := doJSON(t, router, http.MethodPost, "/blocks/block-a/navigate", `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("empty request: got %d, want 400", rr.Code)
	}
	if rr := doJSON(t, router, http.MethodPost, "/blocks/nope/navigate", `{"direction":"next"}`); rr.Code != http.StatusNotFound {
		t.Errorf("unknown block: got %d, want 404", rr.Code)
	}
}

func TestResetEndpoint(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	router := srv.Router()

	doJSON(t, router, http.MethodPost, "/blocks/block-a/switch", `{"index":1}`)
	if rr := doJSON(t, router, http.MethodPost, "/blocks/block-a/reset", ""); rr.Code != http.StatusOK {
		t.Fatalf("reset: got %d, want 200 (body %s)", rr.Code, rr.Body)
	}
	if got := eng.States()[0].CurrentIndex; got != 0 {
		t.Errorf("CurrentIndex after reset: got %d, want 0", got)
	}
}

func TestPageRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	rr := doJSON(t, router, http.MethodGet, "/page", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get page: got %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "product-swatches") {
		t.Error("rendered page missing swatch container")
	}

	put := httptest.NewRequest(http.MethodPut, "/page", strings.NewReader(testPage))
	prr := httptest.NewRecorder()
	router.ServeHTTP(prr, put)
	if prr.Code != http.StatusAccepted {
		t.Fatalf("put page: got %d, want 202 (body %s)", prr.Code, prr.Body)
	}
}

func TestLifecycleEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := doJSON(t, srv.Router(), http.MethodPost, "/lifecycle/shopify:section:load", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["event"] != "shopify:section:load" {
		t.Errorf("event: got %q", resp["event"])
	}
}

func TestEventsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	// No analytics store configured: empty list, not an error.
	rr := doJSON(t, srv.Router(), http.MethodGet, "/events", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var events []analytics.Event
	if err := json.Unmarshal(rr.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events: got %d, want 0", len(events))
	}
}

func TestEventsEndpoint_WithStore(t *testing.T) {
	store, err := analytics.Open(":memory:", discardLogger())
	if err != nil {
		t.Fatalf("analytics.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv, _ := newTestServer(t, store)
	store.RecordSwatchChange(engine.ChangeEvent{BlockID: "block-a", ColorName: "Sand"})

	rr := doJSON(t, srv.Router(), http.MethodGet, "/events", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var events []analytics.Event
	if err := json.Unmarshal(rr.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 || events[0].ColorName != "Sand" {
		t.Errorf("events: got %+v", events)
	}
}
