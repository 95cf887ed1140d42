package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgnsrekt/tv_snapshot/internal/chart"
)

type fakeService struct {
	captureData []byte
	captureErr  error
	captureReq  chart.CaptureRequest
	valid       bool
	validateErr error
}

func (f *fakeService) Capture(ctx context.Context, req chart.CaptureRequest) ([]byte, error) {
	f.captureReq = req
	return f.captureData, f.captureErr
}

func (f *fakeService) Validate(ctx context.Context) (bool, error) {
	return f.valid, f.validateErr
}

func TestSnapshotHandlerReturnsImageContent(t *testing.T) {
	svc := &fakeService{captureData: []byte("png-bytes")}
	handler := makeSnapshotHandler(svc)

	result, out, err := handler(context.Background(), nil, SnapshotInput{Symbol: "BINANCE:BTCUSDT"})
	if err != nil {
		t.Fatalf("handler() = %v; want nil", err)
	}
	if result.IsError {
		t.Fatal("result.IsError = true; want false")
	}
	if out.SizeBytes != len("png-bytes") {
		t.Fatalf("SizeBytes = %d; want %d", out.SizeBytes, len("png-bytes"))
	}

	var image *mcp.ImageContent
	for _, c := range result.Content {
		if img, ok := c.(*mcp.ImageContent); ok {
			image = img
		}
	}
	if image == nil {
		t.Fatal("result has no ImageContent")
	}
	if image.MIMEType != "image/png" {
		t.Fatalf("MIMEType = %q; want image/png", image.MIMEType)
	}
	if string(image.Data) != "png-bytes" {
		t.Fatalf("image data = %q; want png-bytes", image.Data)
	}
}

func TestSnapshotHandlerAppliesDefaults(t *testing.T) {
	svc := &fakeService{captureData: []byte("png")}
	handler := makeSnapshotHandler(svc)

	_, _, err := handler(context.Background(), nil, SnapshotInput{Symbol: "NASDAQ:AAPL"})
	if err != nil {
		t.Fatalf("handler() = %v; want nil", err)
	}

	want := chart.CaptureRequest{
		Symbol:   "NASDAQ:AAPL",
		Interval: chart.DefaultInterval,
		Width:    chart.DefaultWidth,
		Height:   chart.DefaultHeight,
		Theme:    chart.DefaultTheme,
	}
	if svc.captureReq != want {
		t.Fatalf("captureReq = %+v; want %+v", svc.captureReq, want)
	}
}

func TestSnapshotHandlerReportsCaptureErrorInBand(t *testing.T) {
	svc := &fakeService{captureErr: errors.New("chart render did not settle")}
	handler := makeSnapshotHandler(svc)

	result, _, err := handler(context.Background(), nil, SnapshotInput{Symbol: "BINANCE:BTCUSDT"})
	if err != nil {
		t.Fatalf("handler() = %v; want nil (tool errors go in-band)", err)
	}
	if !result.IsError {
		t.Fatal("result.IsError = false; want true")
	}
}

func TestValidateHandlerReportsInvalidSessionWithoutError(t *testing.T) {
	svc := &fakeService{valid: false}
	handler := makeValidateHandler(svc)

	result, out, err := handler(context.Background(), nil, ValidateInput{})
	if err != nil {
		t.Fatalf("handler() = %v; want nil", err)
	}
	if result != nil && result.IsError {
		t.Fatal("result.IsError = true; want false for an invalid-but-checkable session")
	}
	if out.Valid {
		t.Fatal("Valid = true; want false")
	}
	if out.Message == "" {
		t.Fatal("Message is empty; want an explanation")
	}
}

func TestTimeframesHandlerCoversAllIntervals(t *testing.T) {
	handler := makeTimeframesHandler()

	_, out, err := handler(context.Background(), nil, TimeframesInput{})
	if err != nil {
		t.Fatalf("handler() = %v; want nil", err)
	}
	if len(out.Timeframes) != len(chart.Intervals) {
		t.Fatalf("timeframes = %d; want %d", len(out.Timeframes), len(chart.Intervals))
	}
	for i, tf := range out.Timeframes {
		if tf.Code != chart.Intervals[i] {
			t.Fatalf("timeframes[%d].Code = %q; want %q", i, tf.Code, chart.Intervals[i])
		}
		if tf.Label == "" {
			t.Fatalf("timeframes[%d] (%s) has empty label", i, tf.Code)
		}
	}
}
