package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tv_snapshot/internal/chart"
	"github.com/dgnsrekt/tv_snapshot/internal/session"
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

func TestSnapshotEndpointReturnsPNG(t *testing.T) {
	svc := &fakeService{captureData: []byte("png-bytes")}
	srv := httptest.NewServer(NewServer(svc, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/chart/snapshot", "application/json",
		strings.NewReader(`{"symbol":"BINANCE:BTCUSDT"}`))
	if err != nil {
		t.Fatalf("POST snapshot: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type = %q; want image/png", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "png-bytes" {
		t.Fatalf("body = %q; want png-bytes", body)
	}
}

func TestSnapshotEndpointAppliesDefaults(t *testing.T) {
	svc := &fakeService{captureData: []byte("png")}
	srv := httptest.NewServer(NewServer(svc, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/chart/snapshot", "application/json",
		strings.NewReader(`{"symbol":"NASDAQ:AAPL"}`))
	if err != nil {
		t.Fatalf("POST snapshot: %v", err)
	}
	resp.Body.Close()

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

func TestValidateEndpoint(t *testing.T) {
	svc := &fakeService{valid: true}
	srv := httptest.NewServer(NewServer(svc, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/session/validate")
	if err != nil {
		t.Fatalf("GET validate: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want %d", resp.StatusCode, http.StatusOK)
	}
	var out struct {
		Valid   bool   `json:"valid"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Valid {
		t.Fatal("valid = false; want true")
	}
}

func TestTimeframesEndpointListsAllIntervals(t *testing.T) {
	srv := httptest.NewServer(NewServer(&fakeService{}, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/timeframes")
	if err != nil {
		t.Fatalf("GET timeframes: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Timeframes []struct {
			Code  string `json:"code"`
			Label string `json:"label"`
		} `json:"timeframes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Timeframes) != len(chart.Intervals) {
		t.Fatalf("timeframes = %d; want %d", len(out.Timeframes), len(chart.Intervals))
	}
	for i, tf := range out.Timeframes {
		if tf.Code != chart.Intervals[i] {
			t.Fatalf("timeframes[%d].code = %q; want %q", i, tf.Code, chart.Intervals[i])
		}
		if tf.Label == "" {
			t.Fatalf("timeframes[%d] (%s) has empty label", i, tf.Code)
		}
	}
}

func TestArchiveEndpointDisabledWithoutArchiver(t *testing.T) {
	srv := httptest.NewServer(NewServer(&fakeService{}, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/archive")
	if err != nil {
		t.Fatalf("GET archive: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d; want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestMapErrStatuses(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{session.CodeValidation, http.StatusBadRequest},
		{session.CodeConfiguration, http.StatusFailedDependency},
		{session.CodeRenderTimeout, http.StatusGatewayTimeout},
		{session.CodeNavigation, http.StatusBadGateway},
		{session.CodeInitialization, http.StatusBadGateway},
	}
	for _, tc := range cases {
		err := mapErr(&session.CodedError{Code: tc.code, Message: "boom"})
		var status huma.StatusError
		if !errors.As(err, &status) {
			t.Fatalf("mapErr(%s) = %T; want huma.StatusError", tc.code, err)
		}
		if status.GetStatus() != tc.want {
			t.Fatalf("mapErr(%s) status = %d; want %d", tc.code, status.GetStatus(), tc.want)
		}
	}

	err := mapErr(errors.New("plain"))
	var status huma.StatusError
	if !errors.As(err, &status) || status.GetStatus() != http.StatusInternalServerError {
		t.Fatalf("mapErr(plain) = %v; want 500", err)
	}
}

func TestCaptureErrorsMapToHTTPStatus(t *testing.T) {
	svc := &fakeService{
		captureErr: &session.CodedError{Code: session.CodeRenderTimeout, Message: "chart render did not settle"},
	}
	srv := httptest.NewServer(NewServer(svc, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/chart/snapshot", "application/json",
		strings.NewReader(`{"symbol":"BINANCE:BTCUSDT"}`))
	if err != nil {
		t.Fatalf("POST snapshot: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("status = %d; want %d", resp.StatusCode, http.StatusGatewayTimeout)
	}
}
