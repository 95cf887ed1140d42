package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/tv_snapshot/internal/config"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Selectors for the rendered chart. The legend item appears once chart data
// arrives; the container is the fallback load marker and the screenshot
// region.
const (
	legendSelector         = `div[data-name="legend-source-item"]`
	chartContainerSelector = `.chart-container`
)

// engine is the session manager's view of the automation engine. The
// chromedp implementation below is the only production one; tests drive the
// manager with a fake.
type engine interface {
	Start(ctx context.Context) error
	Alive(ctx context.Context) bool
	SetViewport(ctx context.Context, width, height int) error
	Navigate(ctx context.Context, url string) error
	WaitChartLoad(ctx context.Context) error
	CanvasDigest(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	PageHTML(ctx context.Context) (string, error)
	Close()
}

// chromeBrowser owns one headless Chrome process and one browsing context
// with the TradingView cookies injected. It is either fully started or
// closed; Start tears everything down on any partial failure.
type chromeBrowser struct {
	creds      config.Credentials
	baseURL    string
	chromePath string

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

func newChromeBrowser(cfg *config.Config) *chromeBrowser {
	return &chromeBrowser{
		creds:      cfg.Credentials,
		baseURL:    cfg.BaseURL,
		chromePath: cfg.ChromePath,
	}
}

// Start launches the headless browser and injects the session cookies.
func (b *chromeBrowser) Start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-zygote", true),
		chromedp.Flag("disable-gpu", true),
	)
	if b.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(b.chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	b.allocCancel = allocCancel
	b.browserCtx = browserCtx
	b.browserCancel = browserCancel

	startCtx, cancel := mergeDeadline(browserCtx, ctx)
	defer cancel()

	if err := chromedp.Run(startCtx); err != nil {
		b.Close()
		return fmt.Errorf("start browser: %w", err)
	}
	if err := chromedp.Run(startCtx, b.setCookiesAction()); err != nil {
		b.Close()
		return fmt.Errorf("inject session cookies: %w", err)
	}

	slog.Info("browser session started", "base_url", b.baseURL)
	return nil
}

// setCookiesAction injects both session cookies scoped to the site domain.
// Cookie values are never logged.
func (b *chromeBrowser) setCookiesAction() chromedp.Action {
	domain := cookieDomain(b.baseURL)
	cookies := map[string]string{
		"sessionid":      b.creds.SessionID,
		"sessionid_sign": b.creds.SessionIDSign,
	}
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for name, value := range cookies {
			err := network.SetCookie(name, value).
				WithDomain(domain).
				WithPath("/").
				WithHTTPOnly(true).
				WithSecure(true).
				WithSameSite(network.CookieSameSiteLax).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("set cookie %s: %w", name, err)
			}
		}
		return nil
	})
}

// Alive probes the browsing context with a trivial evaluation. A dead
// engine process or closed context fails fast here.
func (b *chromeBrowser) Alive(ctx context.Context) bool {
	if b.browserCtx == nil || b.browserCtx.Err() != nil {
		return false
	}
	probeCtx, cancel := mergeDeadline(b.browserCtx, ctx)
	defer cancel()
	probeCtx, probeCancel := context.WithTimeout(probeCtx, 2*time.Second)
	defer probeCancel()

	return chromedp.Run(probeCtx, chromedp.Evaluate(`1`, nil)) == nil
}

func (b *chromeBrowser) SetViewport(ctx context.Context, width, height int) error {
	runCtx, cancel := mergeDeadline(b.browserCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.EmulateViewport(int64(width), int64(height)))
}

func (b *chromeBrowser) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := mergeDeadline(b.browserCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Navigate(url))
}

// WaitChartLoad polls for the chart load markers until ctx expires. The
// legend item is the strong signal; the bare container is accepted as a
// fallback, matching how the site renders before data arrives.
func (b *chromeBrowser) WaitChartLoad(ctx context.Context) error {
	runCtx, cancel := mergeDeadline(b.browserCtx, ctx)
	defer cancel()

	const probe = `!!document.querySelector('` + legendSelector + `') || !!document.querySelector('` + chartContainerSelector + `')`

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		var present bool
		if err := chromedp.Run(runCtx, chromedp.Evaluate(probe, &present)); err != nil {
			return err
		}
		if present {
			return nil
		}
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		case <-ticker.C:
		}
	}
}

// CanvasDigest samples the chart canvases into a cheap content digest. An
// empty digest means no canvas has been drawn yet.
func (b *chromeBrowser) CanvasDigest(ctx context.Context) (string, error) {
	runCtx, cancel := mergeDeadline(b.browserCtx, ctx)
	defer cancel()

	const js = `(function(){
var root = document.querySelector('` + chartContainerSelector + `') || document;
var canvases = root.querySelectorAll('canvas');
if (!canvases.length) return "";
var h = 5381;
for (var i = 0; i < canvases.length; i++) {
  var data = "";
  try { data = canvases[i].toDataURL(); } catch (err) { data = "tainted:" + i; }
  for (var j = 0; j < data.length; j += 97) {
    h = ((h << 5) + h + data.charCodeAt(j)) | 0;
  }
  h = (h + data.length) | 0;
}
return String(h >>> 0) + ":" + canvases.length;
})()`

	var digest string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &digest)); err != nil {
		return "", err
	}
	return digest, nil
}

// Screenshot captures the chart container region as PNG, falling back to
// the viewport when the container is missing.
func (b *chromeBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := mergeDeadline(b.browserCtx, ctx)
	defer cancel()

	var hasContainer bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(`!!document.querySelector('`+chartContainerSelector+`')`, &hasContainer)); err != nil {
		return nil, err
	}

	var buf []byte
	if hasContainer {
		if err := chromedp.Run(runCtx, chromedp.Screenshot(chartContainerSelector, &buf, chromedp.NodeVisible, chromedp.ByQuery)); err != nil {
			return nil, err
		}
	} else {
		if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (b *chromeBrowser) PageHTML(ctx context.Context) (string, error) {
	runCtx, cancel := mergeDeadline(b.browserCtx, ctx)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Close tears down the browsing context and the browser process.
func (b *chromeBrowser) Close() {
	if b.browserCancel != nil {
		b.browserCancel()
		b.browserCancel = nil
	}
	if b.allocCancel != nil {
		b.allocCancel()
		b.allocCancel = nil
	}
	b.browserCtx = nil
}

// mergeDeadline runs chromedp work on the browser context while honoring
// the caller's cancellation/deadline.
func mergeDeadline(browserCtx, callerCtx context.Context) (context.Context, context.CancelFunc) {
	if browserCtx == nil {
		return callerCtx, func() {}
	}
	merged, cancel := context.WithCancel(browserCtx)
	stop := context.AfterFunc(callerCtx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

func cookieDomain(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return ".tradingview.com"
	}
	host := u.Hostname()
	host = strings.TrimPrefix(host, "www.")
	return "." + host
}
