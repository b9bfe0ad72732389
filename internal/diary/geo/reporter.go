package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	logx "github.com/blueplan/diary-go/internal/diary/log"
	"github.com/blueplan/diary-go/internal/diary/types"
)

// Reporter forwards a raw fix to the server. Its outcome never affects the
// resolved location.
type Reporter interface {
	Report(ctx context.Context, coords types.Coordinates) (string, error)
}

// ReceivedStatus is what the server answers for an accepted report.
const ReceivedStatus = "Location received"

// HTTPReporter posts the fix to {BaseURL}/location.
type HTTPReporter struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPReporter(baseURL string, client *http.Client) *HTTPReporter {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPReporter{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

func (r *HTTPReporter) Report(ctx context.Context, coords types.Coordinates) (string, error) {
	body, err := json.Marshal(coords)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/location", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("report location: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("report location: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("report location: decode: %w", err)
	}
	return out.Status, nil
}

// LogReporter is the server side sink: it only records the fix.
type LogReporter struct {
	Logger *logx.Logger
}

func (r LogReporter) Report(ctx context.Context, coords types.Coordinates) (string, error) {
	logger := r.Logger
	if logger == nil {
		logger = logx.GetLogger()
	}
	logger.Info(ctx, "收到用户位置",
		logx.KV("latitude", coords.Latitude),
		logx.KV("longitude", coords.Longitude))
	return ReceivedStatus, nil
}
