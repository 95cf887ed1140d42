package snapshot

import (
	"context"
	"log/slog"

	"github.com/dgnsrekt/tv_snapshot/internal/chart"
)

// Service mirrors the capture surface the facades consume.
type Service interface {
	Capture(ctx context.Context, req chart.CaptureRequest) ([]byte, error)
	Validate(ctx context.Context) (bool, error)
}

// ArchivingService decorates a Service so every successful capture is also
// written to the archive. Archive failures are logged and never fail the
// capture itself.
type ArchivingService struct {
	Inner Service
	Store *Store
}

func (s ArchivingService) Capture(ctx context.Context, req chart.CaptureRequest) ([]byte, error) {
	data, err := s.Inner.Capture(ctx, req)
	if err != nil {
		return nil, err
	}
	if meta, archiveErr := s.Store.Archive(req, data); archiveErr != nil {
		slog.Warn("snapshot archive failed", "symbol", req.Symbol, "error", archiveErr)
	} else {
		slog.Debug("snapshot archived", "id", meta.ID, "bytes", meta.SizeBytes)
	}
	return data, nil
}

func (s ArchivingService) Validate(ctx context.Context) (bool, error) {
	return s.Inner.Validate(ctx)
}
