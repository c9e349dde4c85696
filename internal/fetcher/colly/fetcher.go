// Package collyfetcher implements crawler.Navigator over plain HTTP using
// gocolly. It follows the next-record link found in each page's markup and
// suits portals that render record pages server side.
package collyfetcher

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/records-crawler/internal/crawler"
)

const nextRecordSelector = ".js-next-request"

// Config controls collector behavior.
type Config struct {
	// BaseURL is the record listing root; record ids are resolved against it.
	BaseURL       string
	UserAgent     string
	Headers       http.Header
	RespectRobots bool
	Timeout       time.Duration
}

// Waiter paces outgoing requests.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Navigator implements crawler.Navigator using the Colly collector.
type Navigator struct {
	cfg           Config
	base          *url.URL
	limiter       Waiter
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Navigator. limiter may be nil.
func New(cfg Config, limiter Waiter) (*Navigator, error) {
	base, err := crawler.ParseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Navigator{
		cfg:           cfg,
		base:          base,
		limiter:       limiter,
		baseCollector: c,
	}, nil
}

// Load fetches the record page for id.
func (n *Navigator) Load(ctx context.Context, id string) (crawler.Page, error) {
	page, err := n.fetch(ctx, crawler.RecordURL(n.base, id))
	if err != nil {
		return crawler.Page{}, err
	}
	if crawler.RecordIDFromURL(page.URL) != id {
		return crawler.Page{}, fmt.Errorf("%w: record %q redirected to %s", crawler.ErrNavigation, id, page.URL)
	}
	page.ID = id
	return page, nil
}

// Advance follows the next-record link of page. A page without one is the
// end of the data.
func (n *Navigator) Advance(ctx context.Context, page crawler.Page) (crawler.Page, error) {
	next, err := nextRecordURL(page)
	if err != nil {
		return crawler.Page{}, err
	}
	out, err := n.fetch(ctx, next.String())
	if err != nil {
		return crawler.Page{}, err
	}
	out.ID = crawler.RecordIDFromURL(out.URL)
	return out, nil
}

func (n *Navigator) fetch(ctx context.Context, rawURL string) (crawler.Page, error) {
	if err := ctx.Err(); err != nil {
		return crawler.Page{}, fmt.Errorf("colly fetch canceled: %w", err)
	}
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx, rawURL); err != nil {
			return crawler.Page{}, fmt.Errorf("%w: %w", crawler.ErrNavigation, err)
		}
	}
	var (
		result   crawler.Page
		fetchErr error
	)
	collector := n.buildCollector()
	n.configureCollectorHooks(collector, &result, &fetchErr)
	if err := runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return crawler.Page{}, err
	}
	return result, nil
}

func (n *Navigator) buildCollector() *colly.Collector {
	collector := n.baseCollector.Clone()
	if n.cfg.UserAgent != "" {
		collector.UserAgent = n.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !n.cfg.RespectRobots
	// Resuming re-visits the checkpoint record.
	collector.AllowURLRevisit = true
	timeout := n.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	return collector
}

func (n *Navigator) configureCollectorHooks(hooks collectorHooks, result *crawler.Page, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		for key, values := range n.cfg.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.Page{
			URL:       r.Request.URL.String(),
			HTML:      append([]byte(nil), r.Body...),
			FetchedAt: time.Now().UTC(),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: colly visit %s: %w", crawler.ErrNavigation, rawURL, err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("%w: colly response %s: %w", crawler.ErrNavigation, rawURL, *fetchErr)
		}
		return nil
	}
}

func nextRecordURL(page crawler.Page) (*url.URL, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("%w: parse page %s: %w", crawler.ErrNavigation, page.URL, err)
	}
	link := doc.Find(nextRecordSelector).First()
	if link.Length() == 0 {
		return nil, crawler.ErrEndOfData
	}
	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		href, ok = link.Attr("data-href")
	}
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return nil, fmt.Errorf("%w: next record control on %s has no link", crawler.ErrNavigation, page.URL)
	}
	current, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse page url: %w", crawler.ErrNavigation, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("%w: parse next link %q: %w", crawler.ErrNavigation, href, err)
	}
	return current.ResolveReference(ref), nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
