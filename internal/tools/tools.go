// Package tools exposes the snapshot service as MCP tools over the
// Model Context Protocol.
package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgnsrekt/tv_snapshot/internal/chart"
)

// Service is what the tool handlers need from the session manager.
type Service interface {
	Capture(ctx context.Context, req chart.CaptureRequest) ([]byte, error)
	Validate(ctx context.Context) (bool, error)
}

type SnapshotInput struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Theme    string `json:"theme,omitempty"`
}

type SnapshotOutput struct {
	Symbol    string `json:"symbol"`
	Interval  string `json:"interval"`
	Theme     string `json:"theme"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int    `json:"size_bytes"`
}

type ValidateInput struct{}

type ValidateOutput struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type TimeframesInput struct{}

type Timeframe struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

type TimeframesOutput struct {
	Timeframes []Timeframe `json:"timeframes"`
}

// Register adds the chart snapshot tools to an MCP server.
func Register(server *mcp.Server, svc Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "get_chart_snapshot",
		Description: `Capture a TradingView chart as a PNG image.
Requires a qualified symbol like BINANCE:BTCUSDT or NASDAQ:AAPL.
Optional: interval (1, 5, 15, 30, 60, 240, D, W, M; default D),
width/height in pixels (default 1200x600), theme (dark or light; default dark).`,
	}, makeSnapshotHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name: "validate_session",
		Description: `Check whether the configured TradingView session cookies
produce an authenticated session. Returns valid=false when the cookies are
missing, expired, or rejected by the site.`,
	}, makeValidateHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_timeframes",
		Description: `List the timeframe codes accepted by get_chart_snapshot.`,
	}, makeTimeframesHandler())
}

func makeSnapshotHandler(svc Service) func(context.Context, *mcp.CallToolRequest, SnapshotInput) (*mcp.CallToolResult, SnapshotOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SnapshotInput) (*mcp.CallToolResult, SnapshotOutput, error) {
		capReq := chart.CaptureRequest{
			Symbol:   input.Symbol,
			Interval: input.Interval,
			Width:    input.Width,
			Height:   input.Height,
			Theme:    input.Theme,
		}
		capReq.ApplyDefaults()

		data, err := svc.Capture(ctx, capReq)
		if err != nil {
			return errorResult(err.Error()), SnapshotOutput{}, nil
		}

		out := SnapshotOutput{
			Symbol:    capReq.Symbol,
			Interval:  capReq.Interval,
			Theme:     capReq.Theme,
			Width:     capReq.Width,
			Height:    capReq.Height,
			SizeBytes: len(data),
		}
		result := &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Chart snapshot of %s (%s, %s, %dx%d)",
					capReq.Symbol, capReq.Interval, capReq.Theme, capReq.Width, capReq.Height)},
				&mcp.ImageContent{Data: data, MIMEType: "image/png"},
			},
		}
		return result, out, nil
	}
}

func makeValidateHandler(svc Service) func(context.Context, *mcp.CallToolRequest, ValidateInput) (*mcp.CallToolResult, ValidateOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ValidateInput) (*mcp.CallToolResult, ValidateOutput, error) {
		valid, err := svc.Validate(ctx)
		if err != nil {
			return errorResult(err.Error()), ValidateOutput{}, nil
		}
		out := ValidateOutput{Valid: valid}
		if valid {
			out.Message = "session is authenticated"
		} else {
			out.Message = "session cookies are missing, expired, or invalid"
		}
		return nil, out, nil
	}
}

func makeTimeframesHandler() func(context.Context, *mcp.CallToolRequest, TimeframesInput) (*mcp.CallToolResult, TimeframesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input TimeframesInput) (*mcp.CallToolResult, TimeframesOutput, error) {
		out := TimeframesOutput{Timeframes: make([]Timeframe, 0, len(chart.Intervals))}
		for _, code := range chart.Intervals {
			out.Timeframes = append(out.Timeframes, Timeframe{Code: code, Label: chart.IntervalLabel(code)})
		}
		return nil, out, nil
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
