package engine

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/swatchsync/carousel"
	"github.com/hazyhaar/swatchsync/dom"
)

// ResetAllImages undoes every switch on a widget without a page reload: the
// carousel node is restored to the markup and product id captured at first
// initialization, the selected-color label is hidden, the carousel is
// re-bound, and the selection returns to index 0.
func (e *Engine) ResetAllImages(blockID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.widgets[blockID]
	if !ok {
		return ErrUnknownBlock
	}
	if w.busy {
		return ErrBusy
	}

	if w.carouselNode != nil && w.snapshot.Markup != "" {
		restored, err := parseFragment(w.snapshot.Markup)
		if err != nil {
			return fmt.Errorf("engine: restore snapshot %s: %w", blockID, err)
		}

		e.registry.Clear(w.carouselNode)
		dom.ReplaceWith(w.carouselNode, restored)
		w.carouselNode = restored

		if got := markupDigest(dom.Render(restored)); got != w.snapshot.Digest {
			// Round-trip drift would mean the snapshot was not restored
			// byte-for-byte; worth surfacing in logs.
			e.logger.Warn("engine: snapshot digest mismatch after reset",
				"block", blockID)
		}

		carousel.Bind(e.registry, restored, e.opts.Carousel, e.logger)
	}

	if label := dom.FindByClass(w.container, ClassSelected); label != nil {
		dom.AddClass(label, ClassHidden)
	}
	w.currentIndex = 0
	e.setCurrentItem(w, 0)

	e.logger.Info("engine: widget reset", "block", blockID)
	return nil
}

// parseFragment parses a single-element HTML fragment in body context and
// returns its root element.
func parseFragment(markup string) (*html.Node, error) {
	ctxNode := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctxNode)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n, nil
		}
	}
	return nil, fmt.Errorf("no element in fragment")
}
