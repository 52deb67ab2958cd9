// Package engine synchronizes swatch selectors with their product image
// carousels on a parsed page document.
//
// The engine owns one html.Node tree and a registry of widget instances, one
// per swatch container. All DOM access goes through a single mutex that is
// released at every asynchronous wait point (image preload, fade timers,
// paint confirmation), so switches on different widgets interleave while each
// widget stays strictly single-flight via its busy flag.
//
// Initialization is idempotent: containers carry a persistent marker
// attribute once initialized, so a coordinator pass is O(unmarked containers)
// and never disturbs in-flight state elsewhere on the page.
package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/net/html"

	"github.com/hazyhaar/swatchsync/carousel"
	"github.com/hazyhaar/swatchsync/dom"
	"github.com/hazyhaar/swatchsync/preload"
	"github.com/hazyhaar/swatchsync/swatchdata"
)

// Snapshot is the originally-captured carousel state, used by ResetAllImages
// to undo every switch without a page reload. Captured once at first init.
type Snapshot struct {
	ProductID string
	Markup    string
	Digest    string
}

// Widget is the per-container state. Created at initialization, destroyed
// when its container leaves the document.
type Widget struct {
	BlockID string

	container    *html.Node
	carouselNode *html.Node
	swatches     []swatchdata.Record
	currentIndex int
	busy         bool
	snapshot     Snapshot
}

// CurrentIndex returns the committed selection index.
func (w *Widget) CurrentIndex() int { return w.currentIndex }

// Busy reports whether a switch is in flight.
func (w *Widget) Busy() bool { return w.busy }

// Snapshot returns the originally-captured carousel state.
func (w *Widget) Snapshot() Snapshot { return w.snapshot }

// Engine drives swatch→carousel synchronization for one page document.
type Engine struct {
	opts     Options
	loader   *preload.Loader
	registry *carousel.Registry
	logger   *slog.Logger

	mu      sync.Mutex
	doc     *html.Node
	widgets map[string]*Widget
}

// New creates an Engine with no document attached. Call LoadMarkup (or
// LoadMarkupFile) and then InitializeAll, typically via a reinit.Coordinator.
func New(opts Options) *Engine {
	opts.defaults()
	return &Engine{
		opts:     opts,
		loader:   opts.Loader,
		registry: carousel.NewRegistry(),
		logger:   opts.Logger,
		widgets:  make(map[string]*Widget),
	}
}

// Loader exposes the engine's preloader (status surface, tests).
func (e *Engine) Loader() *preload.Loader { return e.loader }

// Registry exposes the carousel bound-state registry.
func (e *Engine) Registry() *carousel.Registry { return e.registry }

// LoadMarkup sanitizes and parses raw page markup, replacing the current
// document. Widget state for containers that no longer exist is dropped;
// surviving state is pruned because a full document replacement recreates
// every node.
func (e *Engine) LoadMarkup(raw string) error {
	clean := e.opts.Sanitizer.Sanitize(raw)
	doc, err := html.Parse(strings.NewReader(clean))
	if err != nil {
		return fmt.Errorf("engine: parse markup: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.doc = doc
	e.pruneWidgets()
	return nil
}

// LoadMarkupFile reads and loads page markup from disk.
func (e *Engine) LoadMarkupFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("engine: read %s: %w", path, err)
	}
	return e.LoadMarkup(string(data))
}

// Render serialises the current document.
func (e *Engine) Render() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return dom.Render(e.doc)
}

// Document returns the parsed root for read-only inspection in tests.
func (e *Engine) Document() *html.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc
}

// InitializeAll runs one initialization pass: every matching container not
// yet carrying the init marker is fully initialized. Containers that fail
// data parsing are logged, left unmarked, and retried on the next pass.
// Already-initialized containers are untouched — their busy flag and
// currentIndex survive unrelated passes. Returns the number of containers
// initialized in this pass.
func (e *Engine) InitializeAll() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.doc == nil {
		return 0
	}
	e.pruneWidgets()

	initialized := 0
	for _, container := range dom.FindAllByClass(e.doc, ClassContainer) {
		if dom.HasAttr(container, AttrInit) {
			continue
		}
		if e.initContainer(container) {
			initialized++
		}
	}
	return initialized
}

// initContainer initializes one container. Returns false (without setting the
// marker) when the container's data is unusable, so the next pass retries it.
func (e *Engine) initContainer(container *html.Node) bool {
	blockID := dom.Attr(container, AttrBlockID)
	if blockID == "" {
		e.logger.Warn("engine: container missing block id, skipping")
		return false
	}

	records, err := swatchdata.Parse(dom.Attr(container, AttrSwatches))
	if err != nil {
		e.logger.Warn("engine: swatch data rejected", "block", blockID, "error", err)
		return false
	}

	carNode := e.resolveCarousel(container)

	w := &Widget{
		BlockID:      blockID,
		container:    container,
		carouselNode: carNode,
		swatches:     records,
		currentIndex: swatchdata.FindCurrentIndex(records),
	}
	if carNode != nil {
		markup := dom.Render(carNode)
		w.snapshot = Snapshot{
			ProductID: dom.Attr(carNode, AttrProductID),
			Markup:    markup,
			Digest:    markupDigest(markup),
		}
	}

	e.widgets[blockID] = w
	e.markCurrent(w, w.currentIndex)
	dom.SetAttr(container, AttrInit, "1")

	e.loader.PreloadBatch(context.Background(), records, e.opts.PreloadCount)
	if carNode != nil {
		carousel.Bind(e.registry, carNode, e.opts.Carousel, e.logger)
	}

	e.logger.Info("engine: widget initialized",
		"block", blockID, "swatches", len(records), "current", w.currentIndex)
	return true
}

// resolveCarousel locates the carousel node for a container: the configured
// (or default) carousel class, scoped to the nearest enclosing product block.
// A missing carousel is a valid layout; image features are simply disabled.
func (e *Engine) resolveCarousel(container *html.Node) *html.Node {
	class := dom.Attr(container, AttrCarouselClass)
	if class == "" {
		class = e.opts.Carousel.Root
	}
	scope := dom.ClosestByClass(container, ClassBlock)
	if scope == nil {
		scope = e.doc
	}
	return dom.FindByClass(scope, class)
}

// RebindCarousels re-runs carousel binding over every matching carousel node
// in the document. Binding is idempotent, so this is safe to run on every
// coordinator pass. Returns the number of carousels bound.
func (e *Engine) RebindCarousels() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.doc == nil {
		return 0
	}
	bound := 0
	for _, node := range dom.FindAllByClass(e.doc, e.opts.Carousel.Root) {
		if _, ok := carousel.Bind(e.registry, node, e.opts.Carousel, e.logger); ok {
			bound++
		}
	}
	return bound
}

// Pass is one full coordinator pass: initialize new containers, then rebind
// carousels. Returns the number of freshly initialized containers.
func (e *Engine) Pass() int {
	n := e.InitializeAll()
	e.RebindCarousels()
	return n
}

// Navigate moves the bound carousel of a widget: direction is "next" or
// "prev". An unbound carousel (≤1 slide, or structure missing) is a silent
// no-op, matching the hidden controls.
func (e *Engine) Navigate(blockID, direction string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.boundCarousel(blockID)
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	switch direction {
	case "next":
		c.Next()
	case "prev":
		c.Prev()
	default:
		return fmt.Errorf("engine: unknown direction %q", direction)
	}
	return nil
}

// GoToSlide activates a slide by index (wraparound semantics) on a widget's
// bound carousel.
func (e *Engine) GoToSlide(blockID string, i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.boundCarousel(blockID)
	if err != nil {
		return err
	}
	if c != nil {
		c.GoToSlide(i)
	}
	return nil
}

// HandleKey dispatches a keyboard event on a widget's carousel root. Returns
// true when the key was consumed.
func (e *Engine) HandleKey(blockID, key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.boundCarousel(blockID)
	if err != nil || c == nil {
		return false
	}
	return c.HandleKey(key)
}

func (e *Engine) boundCarousel(blockID string) (*carousel.Carousel, error) {
	w, ok := e.widgets[blockID]
	if !ok {
		return nil, ErrUnknownBlock
	}
	if w.carouselNode == nil {
		return nil, nil
	}
	c, ok := e.registry.Lookup(w.carouselNode)
	if !ok {
		return nil, nil
	}
	return c, nil
}

// WidgetStatus is a point-in-time view of one widget for the API surface.
type WidgetStatus struct {
	BlockID      string `json:"block_id"`
	CurrentIndex int    `json:"current_index"`
	Busy         bool   `json:"busy"`
	Swatches     int    `json:"swatches"`
	ProductID    string `json:"product_id,omitempty"`
	Bound        bool   `json:"carousel_bound"`
	Slides       int    `json:"slides"`
}

// States lists the status of every initialized widget.
func (e *Engine) States() []WidgetStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]WidgetStatus, 0, len(e.widgets))
	for _, w := range e.widgets {
		st := WidgetStatus{
			BlockID:      w.BlockID,
			CurrentIndex: w.currentIndex,
			Busy:         w.busy,
			Swatches:     len(w.swatches),
			ProductID:    w.snapshot.ProductID,
		}
		if c, ok := e.registry.Lookup(w.carouselNode); ok {
			st.Bound = true
			st.Slides = c.Len()
		}
		out = append(out, st)
	}
	return out
}

// Widget returns the widget for a block ID, for tests and status handlers.
func (e *Engine) Widget(blockID string) (*Widget, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.widgets[blockID]
	return w, ok
}

// pruneWidgets drops state for containers no longer in the document.
// Callers hold e.mu.
func (e *Engine) pruneWidgets() {
	if len(e.widgets) == 0 {
		return
	}
	present := make(map[*html.Node]bool)
	dom.Walk(e.doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && dom.HasClass(n, ClassContainer) {
			present[n] = true
		}
		return true
	})
	for id, w := range e.widgets {
		if !present[w.container] {
			if w.carouselNode != nil {
				e.registry.Clear(w.carouselNode)
			}
			delete(e.widgets, id)
			e.logger.Debug("engine: widget removed with container", "block", id)
		}
	}
}

// markCurrent moves the is-current marker to the swatch item at idx and
// updates the selected-color label. Callers hold e.mu.
func (e *Engine) markCurrent(w *Widget, idx int) {
	e.setCurrentItem(w, idx)
	if label := dom.FindByClass(w.container, ClassSelected); label != nil {
		if idx >= 0 && idx < len(w.swatches) {
			dom.SetText(label, w.swatches[idx].ColorName)
		}
		dom.RemoveClass(label, ClassHidden)
	}
}

// setCurrentItem moves only the is-current class, leaving the label alone.
func (e *Engine) setCurrentItem(w *Widget, idx int) {
	items := dom.FindAllByClass(w.container, ClassItem)
	for _, item := range items {
		dom.RemoveClass(item, ClassCurrent)
	}
	if idx >= 0 && idx < len(items) {
		dom.AddClass(items[idx], ClassCurrent)
	}
}

// setLoading toggles the loading marker on the swatch container and the
// carousel node. Callers hold e.mu.
func (e *Engine) setLoading(w *Widget, on bool) {
	if on {
		dom.AddClass(w.container, ClassLoading)
		dom.AddClass(w.carouselNode, ClassLoading)
		return
	}
	dom.RemoveClass(w.container, ClassLoading)
	dom.RemoveClass(w.carouselNode, ClassLoading)
}

func markupDigest(markup string) string {
	sum := blake2b.Sum256([]byte(markup))
	return hex.EncodeToString(sum[:])
}
