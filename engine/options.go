package engine

import (
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/hazyhaar/swatchsync/carousel"
	"github.com/hazyhaar/swatchsync/preload"
)

// Structural markers for the swatch side of a widget. The carousel side is
// configured through carousel.Classes.
const (
	ClassContainer = "product-swatches"
	ClassItem      = "product-swatches__item"
	ClassSelected  = "product-swatches__selected"
	ClassBlock     = "product-block"
	ClassCurrent   = "is-current"
	ClassLoading   = "is-loading"
	ClassHidden    = "is-hidden"

	AttrBlockID       = "data-block-id"
	AttrSwatches      = "data-swatches"
	AttrCarouselClass = "data-carousel-class"
	AttrInit          = "data-swatches-init"
	AttrProductID     = "data-product-id"
)

// Recorder receives swatch-change notifications. It is an optional external
// collaborator: a nil Recorder is not an error, the events are simply not
// delivered anywhere.
type Recorder interface {
	RecordSwatchChange(ev ChangeEvent)
}

// ChangeEvent is the payload emitted after a committed switch.
type ChangeEvent struct {
	BlockID    string `json:"block_id"`
	ProductID  string `json:"product_id,omitempty"`
	ColorName  string `json:"color_name"`
	ColorValue string `json:"color_value,omitempty"`
}

// Options tunes an Engine.
type Options struct {
	// Loader preloads swatch images. Nil gets a loader over a fresh cache.
	Loader *preload.Loader
	// Recorder receives swatch-change events. Optional.
	Recorder Recorder
	// LazyloadNotify is called after a rebuild with the carousel root, so an
	// external lazy-load subsystem can re-scan the changed content. Optional.
	LazyloadNotify func(root *html.Node)
	// AnimationSpeed is the full fade duration for a switch. Default: 300ms.
	AnimationSpeed time.Duration
	// PreloadCount is how many swatches are eagerly preloaded at container
	// init. Default: 3.
	PreloadCount int
	// Carousel overrides the carousel marker classes.
	Carousel carousel.Classes
	// Sanitizer overrides the markup ingest policy.
	Sanitizer *bluemonday.Policy
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Loader == nil {
		o.Loader = preload.NewLoader(preload.NewCache(), preload.Options{Logger: o.Logger})
	}
	if o.AnimationSpeed <= 0 {
		o.AnimationSpeed = 300 * time.Millisecond
	}
	if o.PreloadCount <= 0 {
		o.PreloadCount = 3
	}
	if o.Carousel == (carousel.Classes{}) {
		o.Carousel = carousel.DefaultClasses()
	}
	if o.Sanitizer == nil {
		o.Sanitizer = defaultPolicy()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// defaultPolicy builds the bluemonday policy applied to ingested page markup.
// Section payloads arrive from the storefront renderer, so structural classes,
// data-* attributes, and the fade styles must survive sanitation.
func defaultPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataAttributes()
	p.AllowAttrs("class", "tabindex", "aria-label", "aria-hidden", "role").Globally()
	p.AllowStyles("opacity", "transition").Globally()
	p.AllowElements("button", "main", "section", "figure")
	p.AllowAttrs("type", "disabled").OnElements("button")
	p.AllowAttrs("srcset", "loading", "width", "height").OnElements("img")
	return p
}
