// Package refresh owns the published pricing state and keeps it fresh.
//
// A single loop goroutine owns the state cell. Every trigger (start,
// interval tick, visibility regained, currency change, manual refresh)
// funnels into the same cancellable retrieval entry point. Retrievals run
// on their own goroutine and report back to the loop, which drops any
// result whose retrieval was superseded.
package refresh

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"resume-pricing-api/internal/events"
	"resume-pricing-api/internal/models"
	"resume-pricing-api/internal/pricing"
	"resume-pricing-api/internal/upstream"
)

// DefaultInterval is the polling interval used when none is configured.
const DefaultInterval = 60 * time.Second

var (
	// ErrStopped is returned by triggers sent after Stop.
	ErrStopped = errors.New("refresh: controller stopped")

	errSuperseded = errors.New("refresh: superseded by a newer retrieval")
)

// Options configures a Controller.
type Options struct {
	// Currency is the initially requested currency.
	Currency models.Currency
	// Interval between polls; zero or negative disables polling.
	Interval time.Duration
	// Timeout bounds a single retrieval; zero means no bound.
	Timeout time.Duration
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
	// Events receives published and failed states; may be nil.
	Events *events.Manager
	// VisibilityRefresh enables foreground-regained refetches.
	VisibilityRefresh func() bool
}

type triggerKind int

const (
	triggerMount triggerKind = iota
	triggerInterval
	triggerVisible
	triggerCurrency
	triggerManual
)

func (k triggerKind) String() string {
	switch k {
	case triggerMount:
		return "mount"
	case triggerInterval:
		return "interval"
	case triggerVisible:
		return "visibility"
	case triggerCurrency:
		return "currency"
	case triggerManual:
		return "manual"
	}
	return "unknown"
}

// supersedes reports whether the trigger cancels an in-flight retrieval.
// The others are dropped while one is pending since it will publish fresh
// data anyway.
func (k triggerKind) supersedes() bool {
	return k == triggerCurrency || k == triggerManual
}

type trigger struct {
	kind     triggerKind
	currency models.Currency
	visible  bool
}

type retrieval struct {
	ctx      context.Context
	cancel   context.CancelCauseFunc
	currency models.Currency
	kind     triggerKind
}

type result struct {
	r       *retrieval
	payload map[string]any
	err     error
}

// Controller resolves and publishes the pricing state.
type Controller struct {
	fetcher upstream.Fetcher
	opts    Options

	state    atomic.Pointer[models.PricingState]
	triggers chan trigger
	results  chan result

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	// loop-owned
	requested models.Currency
	inflight  *retrieval
	visible   bool
	boundary  *time.Timer

	discarded atomic.Int64
}

// New creates a controller. The state starts as the compiled-in defaults
// for the requested currency until Start runs the first retrieval.
func New(fetcher upstream.Fetcher, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cur, ok := pricing.NormalizeCurrency(string(opts.Currency))
	if !ok {
		cur = pricing.DefaultCurrency
	}
	opts.Currency = cur

	c := &Controller{
		fetcher:   fetcher,
		opts:      opts,
		triggers:  make(chan trigger, 16),
		results:   make(chan result),
		done:      make(chan struct{}),
		requested: cur,
		visible:   true,
	}
	c.state.Store(pricing.DefaultState(cur, opts.Now()))
	return c
}

// Start launches the loop and the initial retrieval.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		select {
		case <-c.done:
			return
		default:
		}
		ctx, cancel := context.WithCancel(ctx)
		c.cancel = cancel
		go c.run(ctx)
	})
}

// Stop cancels any in-flight retrieval and waits for the loop to exit.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel == nil {
			close(c.done)
			return
		}
		c.cancel()
		<-c.done
	})
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() *models.PricingState {
	return c.state.Load().Clone()
}

// Refresh cancels any pending retrieval and fetches again, bypassing any
// response cache.
func (c *Controller) Refresh() error {
	return c.send(trigger{kind: triggerManual})
}

// SetCurrency changes the requested currency. Setting the current value is
// a no-op.
func (c *Controller) SetCurrency(cur models.Currency) error {
	return c.send(trigger{kind: triggerCurrency, currency: cur})
}

// SetVisible reports the hosting page's visibility. Going from hidden to
// visible triggers a retrieval.
func (c *Controller) SetVisible(visible bool) error {
	return c.send(trigger{kind: triggerVisible, visible: visible})
}

// Evaluate re-runs offer activation over the current candidates at another
// instant. The published state is not changed.
func (c *Controller) Evaluate(at time.Time) (*models.Offer, models.PlanPrices, models.Currency) {
	s := c.Snapshot()
	active, final := pricing.Reevaluate(s, at)
	return active, final, s.Currency
}

func (c *Controller) send(t trigger) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.triggers <- t:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	var tick <-chan time.Time
	if c.opts.Interval > 0 {
		ticker := time.NewTicker(c.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	c.boundary = time.NewTimer(time.Hour)
	c.boundary.Stop()
	defer c.boundary.Stop()

	c.begin(ctx, triggerMount)

	for {
		select {
		case <-ctx.Done():
			if c.inflight != nil {
				c.inflight.cancel(ctx.Err())
				c.inflight = nil
			}
			return

		case <-tick:
			c.begin(ctx, triggerInterval)

		case <-c.boundary.C:
			c.reevaluate()

		case t := <-c.triggers:
			c.handle(ctx, t)

		case res := <-c.results:
			if errors.Is(context.Cause(res.r.ctx), errSuperseded) {
				c.discarded.Add(1)
				continue
			}
			if res.r == c.inflight {
				c.inflight = nil
			}
			res.r.cancel(nil)
			c.apply(ctx, res)
		}
	}
}

func (c *Controller) handle(ctx context.Context, t trigger) {
	switch t.kind {
	case triggerCurrency:
		cur, ok := pricing.NormalizeCurrency(string(t.currency))
		if !ok || cur == c.requested {
			return
		}
		from := c.requested
		c.requested = cur
		c.opts.Events.PublishCurrencyChanged(ctx, from, cur)
		c.begin(ctx, triggerCurrency)

	case triggerVisible:
		wasHidden := !c.visible
		c.visible = t.visible
		if !t.visible || !wasHidden {
			return
		}
		if c.opts.VisibilityRefresh != nil && !c.opts.VisibilityRefresh() {
			return
		}
		c.begin(ctx, triggerVisible)

	default:
		c.begin(ctx, t.kind)
	}
}

// begin is the single retrieval entry point.
func (c *Controller) begin(ctx context.Context, kind triggerKind) {
	if c.inflight != nil {
		if !kind.supersedes() && c.inflight.currency == c.requested {
			return
		}
		c.inflight.cancel(errSuperseded)
		c.inflight = nil
	}

	rctx, cancel := context.WithCancelCause(ctx)
	r := &retrieval{ctx: rctx, cancel: cancel, currency: c.requested, kind: kind}
	c.inflight = r

	loading := c.state.Load().Clone()
	loading.Status = models.StatusLoading
	loading.Loading = true
	c.state.Store(loading)

	req := upstream.Request{Currency: r.currency, Fresh: kind == triggerManual}
	go func() {
		fctx := rctx
		if c.opts.Timeout > 0 {
			var tcancel context.CancelFunc
			fctx, tcancel = context.WithTimeout(rctx, c.opts.Timeout)
			defer tcancel()
		}
		payload, err := c.fetcher.Fetch(fctx, req)
		select {
		case c.results <- result{r: r, payload: payload, err: err}:
		case <-c.done:
		}
	}()
}

func (c *Controller) apply(ctx context.Context, res result) {
	now := c.opts.Now()
	if res.err != nil {
		prev := c.state.Load()
		var next *models.PricingState
		if prev.Currency == res.r.currency {
			next = prev.Clone()
		} else {
			next = pricing.DefaultState(res.r.currency, now)
		}
		next.Status = models.StatusError
		next.Loading = c.inflight != nil
		next.Error = res.err.Error()
		c.publish(next)
		log.Printf("pricing refresh (%s, %s) failed: %v", res.r.kind, res.r.currency, res.err)
		c.opts.Events.PublishPricing(ctx, events.EventPricingFailed, next.Clone())
		return
	}

	next := pricing.Resolve(res.payload, res.r.currency, now)
	next.Loading = c.inflight != nil
	c.publish(next)
	c.opts.Events.PublishPricing(ctx, events.EventPricingPublished, next.Clone())
}

func (c *Controller) publish(next *models.PricingState) {
	c.state.Store(next)
	c.scheduleBoundary(next)
}

// reevaluate applies offer windows that opened or closed since the last
// retrieval, without refetching.
func (c *Controller) reevaluate() {
	cur := c.state.Load()
	now := c.opts.Now()
	active, final := pricing.Reevaluate(cur, now)
	next := cur.Clone()
	next.ActiveOffer = active.Clone()
	next.FinalPrices = final
	if active != nil {
		next.DisplayOffer = active.Clone()
	} else if len(cur.Offers) > 0 {
		next.DisplayOffer = cur.Offers[0].Clone()
	}
	c.publish(next)
}

// scheduleBoundary arms the timer for the next offer window edge.
func (c *Controller) scheduleBoundary(s *models.PricingState) {
	if c.boundary == nil {
		return
	}
	c.boundary.Stop()
	select {
	case <-c.boundary.C:
	default:
	}

	now := c.opts.Now()
	var next time.Time
	consider := func(t *time.Time) {
		if t == nil || !t.After(now) {
			return
		}
		if next.IsZero() || t.Before(next) {
			next = *t
		}
	}
	for _, o := range s.Offers {
		consider(o.StartsAt)
		consider(o.EndsAt)
	}
	if !next.IsZero() {
		c.boundary.Reset(next.Sub(now))
	}
}
