// Package carousel owns the slide/index state machine for a product image
// carousel node and the bookkeeping that guarantees a node is bound to
// navigation handlers exactly once.
//
// Bound state lives in an explicit Registry keyed by node identity, not in
// attributes scattered over the tree. A carousel whose slide content was
// rebuilt must have its registry entry cleared before re-binding; the switch
// pipeline does this after every rebuild.
package carousel

import (
	"log/slog"
	"sync"

	"golang.org/x/net/html"

	"github.com/hazyhaar/swatchsync/dom"
)

// Classes names the structural markers a carousel node is discovered by.
type Classes struct {
	Root   string
	Track  string
	Slide  string
	Dots   string
	Dot    string
	Prev   string
	Next   string
	Active string
	Hidden string
}

// DefaultClasses returns the theme's marker classes.
func DefaultClasses() Classes {
	return Classes{
		Root:   "product-carousel",
		Track:  "product-carousel__track",
		Slide:  "product-carousel__slide",
		Dots:   "product-carousel__dots",
		Dot:    "product-carousel__dot",
		Prev:   "product-carousel__prev",
		Next:   "product-carousel__next",
		Active: "is-active",
		Hidden: "is-hidden",
	}
}

// Carousel is a bound carousel node: a linear slide track with optional
// pagination dots and prev/next controls.
type Carousel struct {
	Root  *html.Node
	Track *html.Node

	slides  []*html.Node
	dots    []*html.Node
	prev    *html.Node
	next    *html.Node
	classes Classes
	active  int
}

// Registry maps carousel root nodes to their bound state. It replaces
// per-node DOM flags so that "already bound" is owned in one place.
type Registry struct {
	mu    sync.Mutex
	bound map[*html.Node]*Carousel
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bound: make(map[*html.Node]*Carousel)}
}

// Lookup returns the bound carousel for a root node, if any.
func (r *Registry) Lookup(root *html.Node) (*Carousel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.bound[root]
	return c, ok
}

// Clear drops the bound state for a root node. Called after a DOM rebuild so
// the next Bind attaches fresh handlers.
func (r *Registry) Clear(root *html.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bound, root)
}

// Len returns the number of bound carousels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bound)
}

func (r *Registry) store(root *html.Node, c *Carousel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bound[root] = c
}

// Bind attaches navigation state to a carousel root node. Re-entering on an
// already-bound node is a no-op that returns the existing instance.
//
// Binding requires at least two slides: with zero or one the node is left
// unbound and its dots/controls hidden (a product with a single image is a
// valid layout, not an error). A missing track short-circuits silently for
// the same reason.
func Bind(reg *Registry, root *html.Node, classes Classes, logger *slog.Logger) (*Carousel, bool) {
	if root == nil {
		return nil, false
	}
	if logger == nil {
		logger = slog.Default()
	}
	if c, ok := reg.Lookup(root); ok {
		return c, true
	}

	track := dom.FindByClass(root, classes.Track)
	if track == nil {
		logger.Debug("carousel: track missing, leaving unbound")
		return nil, false
	}
	slides := dom.FindAllByClass(track, classes.Slide)

	dotsStrip := dom.FindByClass(root, classes.Dots)
	prev := dom.FindByClass(root, classes.Prev)
	next := dom.FindByClass(root, classes.Next)

	if len(slides) < 2 {
		logger.Debug("carousel: too few slides, controls hidden", "slides", len(slides))
		dom.AddClass(dotsStrip, classes.Hidden)
		dom.AddClass(prev, classes.Hidden)
		dom.AddClass(next, classes.Hidden)
		return nil, false
	}

	dom.RemoveClass(dotsStrip, classes.Hidden)

	// Discard and replace the control nodes before binding. Any listener set
	// attached by a previous life of this subtree dies with the old nodes,
	// so at most one is live per control.
	prev = replaceControl(prev)
	next = replaceControl(next)
	dom.RemoveClass(prev, classes.Hidden)
	dom.RemoveClass(next, classes.Hidden)

	c := &Carousel{
		Root:    root,
		Track:   track,
		slides:  slides,
		dots:    dotDots(dotsStrip, classes),
		prev:    prev,
		next:    next,
		classes: classes,
	}

	// Normalize: exactly one active slide from here on.
	c.GoToSlide(c.initialIndex())
	reg.store(root, c)
	return c, true
}

// replaceControl swaps a control node for a fresh clone in the same position.
func replaceControl(ctrl *html.Node) *html.Node {
	if ctrl == nil || ctrl.Parent == nil {
		return ctrl
	}
	fresh := dom.Clone(ctrl)
	dom.ReplaceWith(ctrl, fresh)
	return fresh
}

func dotDots(strip *html.Node, classes Classes) []*html.Node {
	if strip == nil {
		return nil
	}
	return dom.FindAllByClass(strip, classes.Dot)
}

// initialIndex finds the slide already marked active, defaulting to 0.
func (c *Carousel) initialIndex() int {
	for i, s := range c.slides {
		if dom.HasClass(s, c.classes.Active) {
			return i
		}
	}
	return 0
}

// Len returns the slide count.
func (c *Carousel) Len() int { return len(c.slides) }

// ActiveIndex returns the index of the active slide.
func (c *Carousel) ActiveIndex() int { return c.active }

// GoToSlide activates the slide (and dot) at i. It is total over any integer:
// the index wraps modulo the slide count rather than clamping, so -1 on a
// 4-slide carousel activates slide 3 and 4 activates slide 0. Idempotent
// under double invocation.
func (c *Carousel) GoToSlide(i int) {
	n := len(c.slides)
	if n == 0 {
		return
	}
	i = ((i % n) + n) % n

	for _, s := range c.slides {
		dom.RemoveClass(s, c.classes.Active)
	}
	for _, d := range c.dots {
		dom.RemoveClass(d, c.classes.Active)
	}
	dom.AddClass(c.slides[i], c.classes.Active)
	if i < len(c.dots) {
		dom.AddClass(c.dots[i], c.classes.Active)
	}
	c.active = i
}

// Next advances one slide with wraparound.
func (c *Carousel) Next() { c.GoToSlide(c.active + 1) }

// Prev steps back one slide with wraparound.
func (c *Carousel) Prev() { c.GoToSlide(c.active - 1) }

// HandleKey maps keyboard navigation onto the carousel when its root holds
// focus. Returns true when the key was consumed.
func (c *Carousel) HandleKey(key string) bool {
	switch key {
	case "ArrowLeft":
		c.Prev()
		return true
	case "ArrowRight":
		c.Next()
		return true
	}
	return false
}
