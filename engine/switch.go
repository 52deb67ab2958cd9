package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/swatchsync/carousel"
	"github.com/hazyhaar/swatchsync/dom"
	"github.com/hazyhaar/swatchsync/swatchdata"
)

// Switch runs the full color-switch pipeline for one widget:
//
//	Idle → Loading → {Committed | RolledBack} → Idle
//
// Entry guard: the request is rejected with ErrBusy while a switch is in
// flight (dropped, never queued), and a reselection of the current index is a
// silent no-op that never sets the busy flag.
//
// The selection marker moves optimistically before any image work, so the
// user never sees stale-but-labeled-current state; the image content only
// becomes visible after the active image is confirmed decodable. On failure
// only the selection marker is rolled back — partial DOM rebuild is kept as a
// deliberate soft failure.
func (e *Engine) Switch(ctx context.Context, blockID string, target int) error {
	e.mu.Lock()
	w, ok := e.widgets[blockID]
	if !ok {
		e.mu.Unlock()
		return ErrUnknownBlock
	}
	if w.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	if target == w.currentIndex {
		e.mu.Unlock()
		return nil
	}
	if target < 0 || target >= len(w.swatches) {
		e.mu.Unlock()
		return ErrIndexRange
	}

	sw := w.swatches[target]
	prev := w.currentIndex
	w.busy = true
	e.markCurrent(w, target)
	e.setLoading(w, true)
	e.mu.Unlock()

	err := e.performSwitch(ctx, w, sw)

	e.mu.Lock()
	if err != nil {
		e.markCurrent(w, prev)
	} else {
		w.currentIndex = target
	}
	e.setLoading(w, false)
	w.busy = false
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("engine: switch failed",
			"block", blockID, "target", target, "error", err)
		return &SwitchError{BlockID: blockID, Err: err}
	}

	e.logger.Info("engine: switch committed",
		"block", blockID, "color", sw.ColorName, "index", target)
	e.recordChange(w, sw)
	return nil
}

// performSwitch is steps 2–5 of the pipeline: preload, DOM rebuild, lazy-load
// promotion, paint confirmation. The engine mutex is held only around DOM
// mutation, never across a wait.
func (e *Engine) performSwitch(ctx context.Context, w *Widget, sw swatchdata.Record) error {
	images := sw.ImageList()
	if len(images) == 0 {
		return ErrNoImages
	}

	// Preload settles for broken images too; only cancellation aborts.
	e.loader.PreloadFirst(ctx, sw)
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	car := w.carouselNode
	e.mu.Unlock()
	if car == nil {
		// No carousel in this layout: the selection change is the whole switch.
		return nil
	}

	if len(images) == 1 {
		if err := e.crossfadeSingle(ctx, w, images[0], sw); err != nil {
			return err
		}
	} else {
		if err := e.rebuildCarousel(ctx, w, sw, images); err != nil {
			return err
		}
	}

	// Paint confirmation: the now-active image must have finished loading (or
	// failed) before the switch commits, avoiding a visible blank frame.
	e.loader.PreloadURL(ctx, images[0].URL)
	return ctx.Err()
}

// crossfadeSingle swaps the primary image in place: fade out over half the
// animation speed, swap src/alt, fade back in, clear the transition.
func (e *Engine) crossfadeSingle(ctx context.Context, w *Widget, img swatchdata.Image, sw swatchdata.Record) error {
	half := e.opts.AnimationSpeed / 2

	e.mu.Lock()
	imgNode := dom.FindByTag(w.carouselNode, atom.Img)
	if imgNode == nil {
		// No image element to crossfade; fall through to a full rebuild,
		// which knows how to invent minimal markup.
		e.mu.Unlock()
		return e.rebuildCarousel(ctx, w, sw, []swatchdata.Image{img})
	}
	dom.SetAttr(imgNode, "style", fadeStyle(0, half))
	e.mu.Unlock()

	if err := e.wait(ctx, half); err != nil {
		return err
	}

	e.mu.Lock()
	dom.SetAttr(imgNode, "src", img.URL)
	dom.SetAttr(imgNode, "alt", img.Alt)
	dom.RemoveAttr(imgNode, "srcset")
	dom.RemoveAttr(imgNode, "data-src")
	dom.RemoveAttr(imgNode, "data-srcset")
	if sw.ProductID != "" {
		dom.SetAttr(w.carouselNode, AttrProductID, sw.ProductID)
	}
	e.hideNav(w.carouselNode)
	promoteLazyImages(w.carouselNode)
	dom.SetAttr(imgNode, "style", fadeStyle(1, half))
	car := w.carouselNode
	notify := e.opts.LazyloadNotify
	e.mu.Unlock()

	if notify != nil {
		notify(car)
	}

	if err := e.wait(ctx, half); err != nil {
		return err
	}

	e.mu.Lock()
	dom.RemoveAttr(imgNode, "style")
	e.mu.Unlock()
	return nil
}

// rebuildCarousel replaces the slide set wholesale: fade the container out,
// reconstruct one slide per image (cloning whatever slide already exists as
// the structural template), rebuild dots, reset the active index to 0,
// promote lazy-load markers, clear the bound marker and re-bind, fade back in.
func (e *Engine) rebuildCarousel(ctx context.Context, w *Widget, sw swatchdata.Record, images []swatchdata.Image) error {
	half := e.opts.AnimationSpeed / 2

	e.mu.Lock()
	car := w.carouselNode
	dom.SetAttr(car, "style", fadeStyle(0, half))
	e.mu.Unlock()

	if err := e.wait(ctx, half); err != nil {
		return err
	}

	e.mu.Lock()
	classes := e.opts.Carousel

	track := dom.FindByClass(car, classes.Track)
	if track == nil {
		track = dom.Element("div", "class", classes.Track)
		car.AppendChild(track)
	}

	var template *html.Node
	if slides := dom.FindAllByClass(track, classes.Slide); len(slides) > 0 {
		template = dom.Clone(slides[0])
	}

	dom.RemoveChildren(track)
	for i, img := range images {
		slide := buildSlide(template, img, classes)
		if i == 0 {
			dom.AddClass(slide, classes.Active)
		}
		track.AppendChild(slide)
	}

	e.rebuildDots(car, len(images))

	if sw.ProductID != "" {
		dom.SetAttr(car, AttrProductID, sw.ProductID)
	}

	promoteLazyImages(car)

	// The DOM under this node was just replaced: clear the bound marker so
	// Bind attaches a fresh handler set instead of no-opping.
	e.registry.Clear(car)
	carousel.Bind(e.registry, car, classes, e.logger)

	dom.SetAttr(car, "style", fadeStyle(1, half))
	notify := e.opts.LazyloadNotify
	e.mu.Unlock()

	if notify != nil {
		notify(car)
	}

	if err := e.wait(ctx, half); err != nil {
		return err
	}

	e.mu.Lock()
	dom.RemoveAttr(car, "style")
	e.mu.Unlock()
	return nil
}

// rebuildDots reconstructs the pagination strip for n images, or hides
// navigation entirely when there is at most one. Callers hold e.mu.
func (e *Engine) rebuildDots(car *html.Node, n int) {
	classes := e.opts.Carousel
	strip := dom.FindByClass(car, classes.Dots)

	if n <= 1 {
		e.hideNav(car)
		return
	}

	if strip == nil {
		strip = dom.Element("div", "class", classes.Dots)
		car.AppendChild(strip)
	}
	dom.RemoveChildren(strip)
	for i := 0; i < n; i++ {
		dot := dom.Element("button",
			"class", classes.Dot,
			"type", "button",
			"aria-label", fmt.Sprintf("Go to image %d", i+1))
		if i == 0 {
			dom.AddClass(dot, classes.Active)
		}
		strip.AppendChild(dot)
	}
	dom.RemoveClass(strip, classes.Hidden)
	dom.RemoveClass(dom.FindByClass(car, classes.Prev), classes.Hidden)
	dom.RemoveClass(dom.FindByClass(car, classes.Next), classes.Hidden)
}

// hideNav hides dots and prev/next controls. Callers hold e.mu.
func (e *Engine) hideNav(car *html.Node) {
	classes := e.opts.Carousel
	dom.AddClass(dom.FindByClass(car, classes.Dots), classes.Hidden)
	dom.AddClass(dom.FindByClass(car, classes.Prev), classes.Hidden)
	dom.AddClass(dom.FindByClass(car, classes.Next), classes.Hidden)
}

// buildSlide constructs one slide for an image. The existing slide markup is
// the structural template; minimal markup is invented only when the track was
// empty.
func buildSlide(template *html.Node, img swatchdata.Image, classes carousel.Classes) *html.Node {
	if template == nil {
		slide := dom.Element("div", "class", classes.Slide)
		slide.AppendChild(dom.Element("img", "src", img.URL, "alt", img.Alt, "loading", "eager"))
		return slide
	}

	slide := dom.Clone(template)
	dom.RemoveClass(slide, classes.Active)
	imgNode := dom.FindByTag(slide, atom.Img)
	if imgNode == nil {
		imgNode = dom.Element("img")
		slide.AppendChild(imgNode)
	}
	dom.SetAttr(imgNode, "src", img.URL)
	dom.SetAttr(imgNode, "alt", img.Alt)
	dom.RemoveAttr(imgNode, "srcset")
	dom.RemoveAttr(imgNode, "data-src")
	dom.RemoveAttr(imgNode, "data-srcset")
	return slide
}

// promoteLazyImages forces lazy-loading markers on a rebuilt subtree into
// their loaded presentation: data-src/data-srcset become src/srcset when the
// real attribute is empty, and placeholder classes are stripped.
func promoteLazyImages(root *html.Node) {
	dom.Walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Img {
			return true
		}
		if dom.Attr(n, "src") == "" {
			if v := dom.Attr(n, "data-src"); v != "" {
				dom.SetAttr(n, "src", v)
			}
		}
		if dom.Attr(n, "srcset") == "" {
			if v := dom.Attr(n, "data-srcset"); v != "" {
				dom.SetAttr(n, "srcset", v)
			}
		}
		dom.RemoveAttr(n, "data-src")
		dom.RemoveAttr(n, "data-srcset")
		if dom.HasClass(n, "lazyload") || dom.HasClass(n, "lazyloading") {
			dom.RemoveClass(n, "lazyload")
			dom.RemoveClass(n, "lazyloading")
			dom.AddClass(n, "lazyloaded")
		}
		return true
	})
}

// wait is a cancellable sleep; every fade suspends here so other widgets can
// make progress in the meantime.
func (e *Engine) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// recordChange emits the swatch-change notification to the analytics
// collaborator, when one is configured.
func (e *Engine) recordChange(w *Widget, sw swatchdata.Record) {
	if e.opts.Recorder == nil {
		return
	}
	e.opts.Recorder.RecordSwatchChange(ChangeEvent{
		BlockID:    w.BlockID,
		ProductID:  sw.ProductID,
		ColorName:  sw.ColorName,
		ColorValue: sw.ColorValue,
	})
}

func fadeStyle(opacity int, half time.Duration) string {
	return fmt.Sprintf("opacity:%d;transition:opacity %dms ease", opacity, half.Milliseconds())
}
