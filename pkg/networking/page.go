package networking

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// maxPageBytes caps how much of a page is read.
const maxPageBytes = 2 << 20

// PageLoader returns the HTML of a page.
type PageLoader interface {
	Load(ctx context.Context, url string) (string, error)
}

// HTTPLoader fetches pages with a plain GET.
type HTTPLoader struct {
	Client *http.Client
}

// Load implements PageLoader.
func (h HTTPLoader) Load(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// Browser renders pages in headless Chrome. Chrome starts on the first Load
// and runs incognito; Close shuts it down.
type Browser struct {
	parentCtx context.Context
	timeout   time.Duration

	mu          sync.Mutex
	started     bool
	browserCtx  context.Context
	browserDone context.CancelFunc
	allocDone   context.CancelFunc
}

// NewBrowser creates a Browser whose Chrome process lives under parentCtx.
// Each Load is bounded by timeout (30s when zero).
func NewBrowser(parentCtx context.Context, timeout time.Duration) *Browser {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Browser{parentCtx: parentCtx, timeout: timeout}
}

// Load implements PageLoader. It waits for the body to be ready and returns
// the rendered document.
func (b *Browser) Load(ctx context.Context, url string) (string, error) {
	bctx, err := b.ensure()
	if err != nil {
		return "", err
	}

	tabCtx, tabCancel := chromedp.NewContext(bctx)
	defer tabCancel()

	tabCtx, cancel := context.WithTimeout(tabCtx, b.timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("networking: render %s: %w", url, err)
	}

	if len(html) > maxPageBytes {
		html = html[:maxPageBytes]
	}

	return html, nil
}

// Close shuts down Chrome if it was started.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return
	}

	b.browserDone()
	b.allocDone()
	b.browserCtx = nil
	b.started = false
}

func (b *Browser) ensure() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return b.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.Flag("incognito", true),
		chromedp.Flag("disable-gpu", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(b.parentCtx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start Chrome now so failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("networking: start chrome: %w", err)
	}

	b.browserCtx = browserCtx
	b.browserDone = browserCancel
	b.allocDone = allocCancel
	b.started = true

	return b.browserCtx, nil
}
