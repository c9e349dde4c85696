package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/records-crawler/internal/crawler"
)

// newPortal serves /requests/1../requests/n, each linking to the next.
func newPortal(t *testing.T, n int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for i := 1; i <= n; i++ {
		body := fmt.Sprintf(`<html><body><div class="request-title-text">Request #%d</div>`, i)
		if i < n {
			body += fmt.Sprintf(`<a class="js-next-request" href="/requests/%d">Next</a>`, i+1)
		}
		body += `</body></html>`
		mux.HandleFunc(fmt.Sprintf("/requests/%d", i), func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Trace") != "yes" {
				http.Error(w, "missing header", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(body))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestNavigator(t *testing.T, srv *httptest.Server, limiter Waiter) *Navigator {
	t.Helper()
	nav, err := New(Config{
		BaseURL: srv.URL + "/requests",
		Headers: http.Header{"X-Trace": {"yes"}},
	}, limiter)
	require.NoError(t, err)
	return nav
}

type countingWaiter struct {
	urls []string
}

func (c *countingWaiter) Wait(_ context.Context, rawURL string) error {
	c.urls = append(c.urls, rawURL)
	return nil
}

func TestNavigatorWalksLinkedRecords(t *testing.T) {
	srv := newPortal(t, 3)
	waiter := &countingWaiter{}
	nav := newTestNavigator(t, srv, waiter)
	ctx := context.Background()

	page, err := nav.Load(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", page.ID)
	assert.Contains(t, string(page.HTML), "Request #1")

	page, err = nav.Advance(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, "2", page.ID)
	assert.Equal(t, srv.URL+"/requests/2", page.URL)

	page, err = nav.Advance(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, "3", page.ID)

	_, err = nav.Advance(ctx, page)
	require.ErrorIs(t, err, crawler.ErrEndOfData)
	assert.Len(t, waiter.urls, 3)
}

func TestNavigatorRevisitsSameRecord(t *testing.T) {
	srv := newPortal(t, 1)
	nav := newTestNavigator(t, srv, nil)

	_, err := nav.Load(context.Background(), "1")
	require.NoError(t, err)
	_, err = nav.Load(context.Background(), "1")
	require.NoError(t, err)
}

func TestNavigatorLoadMissingRecord(t *testing.T) {
	srv := newPortal(t, 1)
	nav := newTestNavigator(t, srv, nil)

	_, err := nav.Load(context.Background(), "99")
	require.ErrorIs(t, err, crawler.ErrNavigation)
	assert.Equal(t, crawler.KindNavigation, crawler.Classify(err))
}

func TestNavigatorLoadRejectsRedirectToOtherRecord(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/requests/1", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/requests/11", http.StatusFound)
	})
	mux.HandleFunc("/requests/11", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><div class="request-title-text">Request #11</div></body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	nav, err := New(Config{BaseURL: srv.URL + "/requests"}, nil)
	require.NoError(t, err)

	_, err = nav.Load(context.Background(), "1")
	require.ErrorIs(t, err, crawler.ErrNavigation)
	assert.Contains(t, err.Error(), "redirected")

	page, err := nav.Load(context.Background(), "11")
	require.NoError(t, err)
	assert.Equal(t, "11", page.ID)
}

func TestNavigatorLoadCanceled(t *testing.T) {
	srv := newPortal(t, 1)
	nav := newTestNavigator(t, srv, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := nav.Load(ctx, "1")
	require.Error(t, err)
	assert.Equal(t, crawler.KindInterrupt, crawler.Classify(err))
}

func TestNavigatorLimiterError(t *testing.T) {
	srv := newPortal(t, 1)
	nav := newTestNavigator(t, srv, failingWaiter{})

	_, err := nav.Load(context.Background(), "1")
	require.ErrorIs(t, err, crawler.ErrNavigation)
}

type failingWaiter struct{}

func (failingWaiter) Wait(context.Context, string) error {
	return errors.New("limiter closed")
}

func TestNextRecordURL(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		want    string
		wantErr error
	}{
		{"relative href", `<a class="js-next-request" href="/requests/7">n</a>`, "https://portal.test/requests/7", nil},
		{"data href", `<button class="js-next-request" data-href="8">n</button>`, "https://portal.test/requests/8", nil},
		{"absent", `<p>last</p>`, "", crawler.ErrEndOfData},
		{"no link", `<button class="js-next-request">n</button>`, "", crawler.ErrNavigation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := crawler.Page{URL: "https://portal.test/requests/6", HTML: []byte(tt.html)}
			got, err := nextRecordURL(page)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNewRequiresAbsoluteBaseURL(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)
	_, err = New(Config{BaseURL: "requests/"}, nil)
	require.Error(t, err)

	nav, err := New(Config{BaseURL: "https://portal.test/requests"}, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(nav.base.Path, "/"))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	nav, err := New(Config{BaseURL: "https://portal.test/requests/", Headers: http.Header{"X-Trace": {"yes"}}}, nil)
	require.NoError(t, err)
	var result crawler.Page
	var fetchErr error

	hooks := &stubHooks{}
	nav.configureCollectorHooks(hooks, &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Request:    &colly.Request{URL: mustParseURL(t, "https://portal.test/requests/1")},
	})
	assert.Equal(t, "body", string(result.HTML))
	assert.Equal(t, "https://portal.test/requests/1", result.URL)

	hooks.onError(&colly.Response{StatusCode: http.StatusServiceUnavailable}, errors.New("boom"))
	require.Error(t, fetchErr)
	assert.Contains(t, fetchErr.Error(), "status 503")
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
