// Package api exposes the snapshot service over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/tv_snapshot/internal/chart"
	"github.com/dgnsrekt/tv_snapshot/internal/session"
	"github.com/dgnsrekt/tv_snapshot/internal/snapshot"
)

// Service is what the HTTP layer needs from the session manager.
type Service interface {
	Capture(ctx context.Context, req chart.CaptureRequest) ([]byte, error)
	Validate(ctx context.Context) (bool, error)
}

// Archiver lists archived captures. Nil when archiving is disabled.
type Archiver interface {
	List() ([]snapshot.Meta, error)
}

type snapshotInput struct {
	Body struct {
		Symbol   string `json:"symbol" doc:"Qualified symbol, e.g. BINANCE:BTCUSDT"`
		Interval string `json:"interval,omitempty" doc:"Timeframe code; defaults to D"`
		Width    int    `json:"width,omitempty" doc:"Viewport width in pixels; defaults to 1200"`
		Height   int    `json:"height,omitempty" doc:"Viewport height in pixels; defaults to 600"`
		Theme    string `json:"theme,omitempty" enum:"dark,light" doc:"Chart theme; defaults to dark"`
	}
}

type snapshotOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type validateOutput struct {
	Body struct {
		Valid   bool   `json:"valid"`
		Message string `json:"message"`
	}
}

type timeframesOutput struct {
	Body struct {
		Timeframes []timeframeEntry `json:"timeframes"`
	}
}

type timeframeEntry struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

type archiveOutput struct {
	Body struct {
		Snapshots []snapshot.Meta `json:"snapshots"`
	}
}

// NewServer builds the HTTP handler. archiver may be nil; the archive
// endpoint then reports the feature as disabled.
func NewServer(svc Service, archiver Archiver) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("TV Snapshot API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	huma.Register(api, huma.Operation{
		OperationID: "chart-snapshot",
		Method:      http.MethodPost,
		Path:        "/api/v1/chart/snapshot",
		Summary:     "Capture a chart snapshot",
		Tags:        []string{"Chart"},
	}, func(ctx context.Context, input *snapshotInput) (*snapshotOutput, error) {
		req := chart.CaptureRequest{
			Symbol:   input.Body.Symbol,
			Interval: input.Body.Interval,
			Width:    input.Body.Width,
			Height:   input.Body.Height,
			Theme:    input.Body.Theme,
		}
		req.ApplyDefaults()

		data, err := svc.Capture(ctx, req)
		if err != nil {
			return nil, mapErr(err)
		}
		return &snapshotOutput{ContentType: "image/png", Body: data}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "validate-session",
		Method:      http.MethodGet,
		Path:        "/api/v1/session/validate",
		Summary:     "Validate the configured TradingView session",
		Tags:        []string{"Session"},
	}, func(ctx context.Context, input *struct{}) (*validateOutput, error) {
		valid, err := svc.Validate(ctx)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &validateOutput{}
		out.Body.Valid = valid
		if valid {
			out.Body.Message = "session is authenticated"
		} else {
			out.Body.Message = "session cookies are missing, expired, or invalid"
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-timeframes",
		Method:      http.MethodGet,
		Path:        "/api/v1/timeframes",
		Summary:     "List supported timeframe codes",
		Tags:        []string{"Chart"},
	}, func(ctx context.Context, input *struct{}) (*timeframesOutput, error) {
		out := &timeframesOutput{}
		out.Body.Timeframes = timeframeCatalog()
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-archive",
		Method:      http.MethodGet,
		Path:        "/api/v1/archive",
		Summary:     "List archived snapshots",
		Tags:        []string{"Archive"},
	}, func(ctx context.Context, input *struct{}) (*archiveOutput, error) {
		if archiver == nil {
			return nil, huma.Error404NotFound("snapshot archiving is not enabled")
		}
		metas, err := archiver.List()
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		out := &archiveOutput{}
		out.Body.Snapshots = metas
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, input *struct{}) (*struct {
		Body struct {
			Status string `json:"status"`
		}
	}, error) {
		out := &struct {
			Body struct {
				Status string `json:"status"`
			}
		}{}
		out.Body.Status = "ok"
		return out, nil
	})

	return router
}

// timeframeCatalog pairs each supported interval code with a display label.
func timeframeCatalog() []timeframeEntry {
	entries := make([]timeframeEntry, 0, len(chart.Intervals))
	for _, code := range chart.Intervals {
		entries = append(entries, timeframeEntry{Code: code, Label: chart.IntervalLabel(code)})
	}
	return entries
}

// mapErr translates session error codes into HTTP statuses. Configuration
// failures are the operator's to fix, so they get 424 rather than a plain
// 500; upstream site trouble maps to gateway statuses.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *session.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case session.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case session.CodeConfiguration:
			return huma.NewError(http.StatusFailedDependency, coded.Message)
		case session.CodeRenderTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case session.CodeNavigation, session.CodeInitialization:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
