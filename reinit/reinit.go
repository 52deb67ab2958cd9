// Package reinit keeps every widget container on a page initialized exactly
// once, even though containers are added, replaced, or re-rendered by
// external lifecycle events at arbitrary times.
//
// Every trigger — structural DOM mutation or a named section-reload event —
// is coalesced with a trailing-edge debounce window, so a burst of mutations
// during a single section re-render produces one initialization pass, not N.
// The debounce timer is reset (never stacked) on each new trigger; only the
// trailing event in a burst fires.
package reinit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultWindow is the debounce window applied to triggers.
const DefaultWindow = 80 * time.Millisecond

// Options tunes a Coordinator.
type Options struct {
	// Window is the debounce window. Default: 80ms.
	Window time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Coordinator debounces re-initialization triggers and runs a pass function
// once per settled burst. The pass must itself be idempotent (initialization
// marks containers; binding no-ops on bound carousels), so running one pass
// too many is harmless — running one per mutation would not be.
type Coordinator struct {
	opts   Options
	pass   func()
	logger *slog.Logger

	triggers chan string

	// Counters for observability.
	triggered atomic.Int64
	passes    atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Triggers int64 `json:"triggers"`
	Passes   int64 `json:"passes"`
}

// New creates a Coordinator around a pass function. Call Run to start the
// debounce loop.
func New(pass func(), opts Options) *Coordinator {
	opts.defaults()
	return &Coordinator{
		opts:   opts,
		pass:   pass,
		logger: opts.Logger,
		// Buffered: a trigger arriving while the loop is mid-pass must not
		// block the notifier, and one pending trigger is enough to guarantee
		// another pass happens.
		triggers: make(chan string, 1),
	}
}

// NotifyMutation signals a structural DOM change. Never blocks.
func (c *Coordinator) NotifyMutation() {
	c.notify("mutation")
}

// NotifyLifecycle signals a named lifecycle event from the host page
// framework (e.g. a section reload). Never blocks.
func (c *Coordinator) NotifyLifecycle(name string) {
	c.notify(name)
}

func (c *Coordinator) notify(source string) {
	c.triggered.Add(1)
	select {
	case c.triggers <- source:
	default:
		// A trigger is already pending; it will cover this one.
	}
}

// Run blocks until ctx is cancelled, executing the pass function once per
// debounced trigger burst.
func (c *Coordinator) Run(ctx context.Context) {
	var timer *time.Timer
	var timerCh <-chan time.Time
	last := ""

	c.logger.Info("reinit: coordinator started", "window", c.opts.Window)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			c.logger.Info("reinit: coordinator stopped")
			return

		case source := <-c.triggers:
			last = source
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(c.opts.Window)
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			c.passes.Add(1)
			c.logger.Debug("reinit: running pass", "trigger", last)
			c.pass()
		}
	}
}

// Stats returns the trigger/pass counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Triggers: c.triggered.Load(),
		Passes:   c.passes.Load(),
	}
}
