// Package headless implements crawler.Navigator with a single headless Chrome
// tab driven by chromedp. Advance clicks the portal's next-record control, so
// it works on portals that route between records in JavaScript.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/records-crawler/internal/crawler"
)

const nextRecordSelector = ".js-next-request"

// expandScript opens collapsed sections so the snapshot carries the full
// description, every document folder, and event details.
const expandScript = `(() => {
  const click = (el) => { try { el.click(); } catch (e) {} };
  const labelled = (sel, label) => document.querySelectorAll(sel).forEach((el) => {
    if (el.textContent.trim() === label) click(el);
  });
  labelled('.request-text a', 'Read more');
  document.querySelectorAll('.folder-toggle').forEach(click);
  labelled('.generic-event a, .generic-event button', 'Details');
  return true;
})()`

// Config controls the behavior of the headless navigator.
type Config struct {
	BaseURL           string
	UserAgent         string
	Headers           http.Header
	NavigationTimeout time.Duration
	// ExpandWait is how long to let expanded sections render before the
	// snapshot is taken.
	ExpandWait time.Duration
}

// Waiter paces outgoing navigations.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Navigator implements crawler.Navigator on one browser tab. It is not safe
// for concurrent use beyond the serialization it performs internally.
type Navigator struct {
	cfg           Config
	base          *url.URL
	limiter       Waiter
	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromedp launches headless Chrome and returns a Navigator bound to it.
func NewChromedp(cfg Config, limiter Waiter) (*Navigator, error) {
	base, err := crawler.ParseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.ExpandWait < 0 {
		cfg.ExpandWait = 0
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx, networkSetupAction(cfg.UserAgent, cfg.Headers)); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Navigator{
		cfg:           cfg,
		base:          base,
		limiter:       limiter,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close shuts the browser down.
func (n *Navigator) Close() {
	if n == nil {
		return
	}
	n.browserCancel()
	n.allocCancel()
}

// Load navigates the tab to the record with id.
func (n *Navigator) Load(ctx context.Context, id string) (crawler.Page, error) {
	target := crawler.RecordURL(n.base, id)
	if err := n.wait(ctx, target); err != nil {
		return crawler.Page{}, err
	}
	page, err := n.run(ctx, "load "+id,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return crawler.Page{}, err
	}
	if crawler.RecordIDFromURL(page.URL) != id {
		return crawler.Page{}, fmt.Errorf("%w: record %q redirected to %s", crawler.ErrNavigation, id, page.URL)
	}
	page.ID = id
	return page, nil
}

// Advance clicks the next-record control and waits for the tab to land on a
// different record.
func (n *Navigator) Advance(ctx context.Context, page crawler.Page) (crawler.Page, error) {
	var nodes []*cdp.Node
	if err := n.exec(ctx, "find next control",
		chromedp.Nodes(nextRecordSelector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)),
	); err != nil {
		return crawler.Page{}, err
	}
	if len(nodes) == 0 {
		return crawler.Page{}, crawler.ErrEndOfData
	}
	if err := n.wait(ctx, page.URL); err != nil {
		return crawler.Page{}, err
	}

	var moved bool
	next, err := n.run(ctx, "advance from "+page.ID,
		chromedp.MouseClickNode(nodes[0]),
		chromedp.Poll(locationChangedExpr(page.URL), &moved, chromedp.WithPollingInterval(100*time.Millisecond)),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return crawler.Page{}, err
	}
	next.ID = crawler.RecordIDFromURL(next.URL)
	return next, nil
}

// run executes actions on the tab, expands collapsed sections, and snapshots
// the DOM.
func (n *Navigator) run(ctx context.Context, op string, actions ...chromedp.Action) (crawler.Page, error) {
	var (
		html     string
		location string
		expanded bool
	)
	tasks := append([]chromedp.Action{}, actions...)
	tasks = append(tasks,
		chromedp.Evaluate(expandScript, &expanded),
		chromedp.Sleep(n.cfg.ExpandWait),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := n.exec(ctx, op, tasks...); err != nil {
		return crawler.Page{}, err
	}
	return crawler.Page{
		URL:       location,
		HTML:      []byte(html),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// exec runs actions under the navigation timeout. A canceled ctx is reported
// as such so callers see an interrupt rather than a navigation failure.
func (n *Navigator) exec(ctx context.Context, op string, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("headless %s canceled: %w", op, err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	taskCtx, cancelTask := context.WithTimeout(n.browserCtx, n.cfg.NavigationTimeout)
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	if err := chromedp.Run(taskCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("headless %s canceled: %w", op, ctxErr)
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: headless %s timed out after %s: %w (%v)",
				crawler.ErrNavigation, op, n.cfg.NavigationTimeout, context.DeadlineExceeded, err)
		}
		return fmt.Errorf("%w: headless %s: %w", crawler.ErrNavigation, op, err)
	}
	return nil
}

func (n *Navigator) wait(ctx context.Context, rawURL string) error {
	if n.limiter == nil {
		return nil
	}
	if err := n.limiter.Wait(ctx, rawURL); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("headless wait canceled: %w", ctxErr)
		}
		return fmt.Errorf("%w: %w", crawler.ErrNavigation, err)
	}
	return nil
}

func locationChangedExpr(from string) string {
	return "window.location.href !== " + strconv.Quote(from)
}

func networkSetupAction(userAgent string, headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if userAgent != "" {
			if err := emulation.SetUserAgentOverride(userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
