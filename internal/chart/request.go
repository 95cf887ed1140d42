package chart

import (
	"fmt"
	"net/url"
	"regexp"
)

// Intervals lists the supported timeframe codes in display order:
// minute counts first, then day/week/month.
var Intervals = []string{"1", "5", "15", "30", "60", "240", "D", "W", "M"}

var intervalLabels = map[string]string{
	"1":   "1 minute",
	"5":   "5 minutes",
	"15":  "15 minutes",
	"30":  "30 minutes",
	"60":  "1 hour",
	"240": "4 hours",
	"D":   "1 day",
	"W":   "1 week",
	"M":   "1 month",
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9_]+:[A-Z0-9_.]+$`)

const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Defaults applied by the facades when a caller omits a field.
const (
	DefaultInterval = "D"
	DefaultWidth    = 1200
	DefaultHeight   = 600
	DefaultTheme    = ThemeDark
)

// Dimension sanity caps. TradingView renders fine up to 4K; anything larger
// is a caller mistake, not a real chart.
const (
	MaxWidth  = 3840
	MaxHeight = 2160
)

// CaptureRequest describes one chart capture. Constructed per call, never
// stored by the session manager.
type CaptureRequest struct {
	Symbol   string
	Interval string
	Width    int
	Height   int
	Theme    string
}

// ApplyDefaults fills omitted optional fields. Symbol has no default; a
// blank symbol is left for Validate to reject.
func (r *CaptureRequest) ApplyDefaults() {
	if r.Interval == "" {
		r.Interval = DefaultInterval
	}
	if r.Width == 0 {
		r.Width = DefaultWidth
	}
	if r.Height == 0 {
		r.Height = DefaultHeight
	}
	if r.Theme == "" {
		r.Theme = DefaultTheme
	}
}

// Validate checks the request before any engine interaction.
func (r CaptureRequest) Validate() error {
	if !symbolPattern.MatchString(r.Symbol) {
		return fmt.Errorf("symbol must match EXCHANGE:TICKER (uppercase), got %q", r.Symbol)
	}
	if !ValidInterval(r.Interval) {
		return fmt.Errorf("unsupported interval %q (supported: %v)", r.Interval, Intervals)
	}
	if r.Width <= 0 || r.Width > MaxWidth {
		return fmt.Errorf("width must be in 1..%d, got %d", MaxWidth, r.Width)
	}
	if r.Height <= 0 || r.Height > MaxHeight {
		return fmt.Errorf("height must be in 1..%d, got %d", MaxHeight, r.Height)
	}
	if r.Theme != ThemeDark && r.Theme != ThemeLight {
		return fmt.Errorf("theme must be %q or %q, got %q", ThemeDark, ThemeLight, r.Theme)
	}
	return nil
}

// ValidInterval reports whether code is a supported timeframe.
func ValidInterval(code string) bool {
	for _, iv := range Intervals {
		if iv == code {
			return true
		}
	}
	return false
}

// IntervalLabel returns the display label for a supported timeframe code,
// or "" for an unknown one.
func IntervalLabel(code string) string {
	return intervalLabels[code]
}

// URL builds the chart page URL for a validated request.
func (r CaptureRequest) URL(baseURL string) string {
	q := url.Values{}
	q.Set("symbol", r.Symbol)
	q.Set("interval", r.Interval)
	q.Set("theme", r.Theme)
	return baseURL + "/chart/?" + q.Encode()
}
