package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/tv_snapshot/internal/chart"
	"github.com/dgnsrekt/tv_snapshot/internal/config"
)

// Manager owns the single authenticated browser session shared by every
// capture and validate call. The session is created lazily on first use,
// reused across calls, and rebuilt transparently when the engine dies.
//
// All engine use is serialized by one mutex: two concurrent navigations on
// the same browsing context interleave, so calls are served strictly in
// lock-acquisition order.
type Manager struct {
	cfg       *config.Config
	newEngine func() engine

	// hydrate is how long Validate lets the page header settle before
	// inspecting it.
	hydrate time.Duration

	mu   sync.Mutex
	eng  engine
	warm bool
}

// NewManager creates a Manager backed by a headless Chrome engine. No
// browser process is started until the first capture or validate call.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		cfg:       cfg,
		newEngine: func() engine { return newChromeBrowser(cfg) },
		hydrate:   time.Second,
	}
}

// Capture renders one chart and returns its PNG bytes. Input is validated
// before any engine interaction; navigation and render-timeout failures are
// retried exactly once after rebuilding the session.
func (m *Manager) Capture(ctx context.Context, req chart.CaptureRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, newError(CodeValidation, err.Error(), nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= 1; attempt++ {
		// A gone caller gets its own error back; the session stays up
		// for whoever is queued behind it.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			slog.Warn("capture retrying with fresh session",
				"symbol", req.Symbol, "interval", req.Interval, "error", lastErr)
			m.teardownLocked()
		}

		data, err := m.captureOnceLocked(ctx, req)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (m *Manager) captureOnceLocked(ctx context.Context, req chart.CaptureRequest) ([]byte, error) {
	built, err := m.ensureSessionLocked(ctx)
	if err != nil {
		return nil, err
	}
	cold := built || !m.warm

	if err := m.eng.SetViewport(ctx, req.Width, req.Height); err != nil {
		return nil, newError(CodeInitialization, "set viewport failed", err)
	}

	chartURL := req.URL(m.cfg.BaseURL)
	slog.Info("loading chart", "symbol", req.Symbol, "interval", req.Interval,
		"theme", req.Theme, "width", req.Width, "height", req.Height, "cold", cold)

	navCtx, navCancel := context.WithTimeout(ctx, m.cfg.NavTimeout)
	err = m.eng.Navigate(navCtx, chartURL)
	navCancel()
	if err != nil {
		return nil, newError(CodeNavigation, "chart navigation failed", err)
	}

	budget := m.cfg.RenderTimeoutWarm
	if cold {
		budget = m.cfg.RenderTimeout
	}
	wait := newRenderWait(m.eng.WaitChartLoad, m.eng.CanvasDigest, m.cfg.StableInterval, budget)
	if err := wait.run(ctx); err != nil {
		switch {
		case errors.Is(err, errRenderTimedOut):
			return nil, newError(CodeRenderTimeout, "chart render did not settle", err)
		case ctx.Err() != nil:
			// The caller went away; the engine is fine.
			return nil, ctx.Err()
		default:
			return nil, newError(CodeNavigation, "render wait failed", err)
		}
	}

	data, err := m.eng.Screenshot(ctx)
	if err != nil {
		return nil, newError(CodeNavigation, "screenshot capture failed", err)
	}
	if len(data) == 0 {
		return nil, newError(CodeNavigation, "screenshot capture returned no data", nil)
	}

	m.warm = true
	slog.Info("chart captured", "symbol", req.Symbol, "bytes", len(data))
	return data, nil
}

// Validate reports whether the configured credentials produce an
// authenticated session. An unauthenticated session is (false, nil);
// errors are reserved for infrastructure failures.
func (m *Manager) Validate(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := m.ensureSessionLocked(ctx); err != nil {
		return false, err
	}

	navCtx, navCancel := context.WithTimeout(ctx, m.cfg.NavTimeout)
	err := m.eng.Navigate(navCtx, m.cfg.BaseURL+"/")
	navCancel()
	if err != nil {
		return false, newError(CodeNavigation, "account page navigation failed", err)
	}

	// Give the page a beat to hydrate the header before inspecting it.
	if m.hydrate > 0 {
		select {
		case <-time.After(m.hydrate):
		case <-ctx.Done():
			return false, newError(CodeNavigation, "validation interrupted", ctx.Err())
		}
	}

	html, err := m.eng.PageHTML(ctx)
	if err != nil {
		return false, newError(CodeNavigation, "read page content failed", err)
	}

	authenticated := isAuthenticatedMarkup(html)
	slog.Info("session validated", "authenticated", authenticated)
	return authenticated, nil
}

// isAuthenticatedMarkup applies the logged-in heuristic: a user menu marker
// wins outright; otherwise any sign-in prompt means unauthenticated.
func isAuthenticatedMarkup(html string) bool {
	lower := strings.ToLower(html)
	if strings.Contains(lower, "user-menu") {
		return true
	}
	return !strings.Contains(lower, "sign in")
}

// ensureSessionLocked guarantees a live, authenticated engine, building one
// if absent or dead. Returns whether this call constructed a fresh engine
// (a cold start, which widens the render budget). Callers must hold m.mu.
func (m *Manager) ensureSessionLocked(ctx context.Context) (cold bool, err error) {
	if err := m.cfg.Credentials.Check(); err != nil {
		return false, newError(CodeConfiguration, err.Error(), nil)
	}

	if m.eng != nil {
		if m.eng.Alive(ctx) {
			return false, nil
		}
		slog.Warn("browser session dead, rebuilding")
		m.teardownLocked()
	}

	eng := m.newEngine()
	if err := eng.Start(ctx); err != nil {
		eng.Close()
		return false, newError(CodeInitialization, "browser session start failed", err)
	}
	m.eng = eng
	m.warm = false
	return true, nil
}

func (m *Manager) teardownLocked() {
	if m.eng != nil {
		m.eng.Close()
		m.eng = nil
	}
	m.warm = false
}

// Close tears down the engine. Safe to call multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

// retryable reports whether one rebuild-and-retry is warranted: navigation
// and render-timeout failures may just mean the engine went unresponsive.
// Validation and configuration failures never touch the engine, and an
// initialization failure already left no handle behind.
func retryable(err error) bool {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}
	return coded.Code == CodeNavigation || coded.Code == CodeRenderTimeout
}
