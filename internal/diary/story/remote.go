package story

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/blueplan/diary-go/internal/diary/types"
)

// RemoteClient generates through the diary server's /generate-story.
type RemoteClient struct {
	BaseURL string
	Client  *http.Client
}

func NewRemoteClient(baseURL string, client *http.Client) *RemoteClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteClient{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

func (r *RemoteClient) Generate(ctx context.Context, prompt string) (string, error) {
	return r.send(ctx, WireRequest{Prompt: prompt})
}

func (r *RemoteClient) GenerateContext(ctx context.Context, c types.Context, prompt string) (string, error) {
	return r.send(ctx, ToWire(c, prompt))
}

func (r *RemoteClient) send(ctx context.Context, body WireRequest) (string, error) {
	const op = "story.remote"
	payload, err := json.Marshal(body)
	if err != nil {
		return "", types.NewError(types.KindRequestFailed, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/generate-story", bytes.NewReader(payload))
	if err != nil {
		return "", types.NewError(types.KindRequestFailed, op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", types.NewError(types.KindRequestFailed, op, err)
	}
	defer resp.Body.Close()

	var out WireResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", types.NewError(types.KindRequestFailed, op, fmt.Errorf("decode: %w", err))
	}
	if out.Story != "" {
		return out.Story, nil
	}
	if types.ErrorKind(out.Code) == types.KindNoCandidate {
		return "", types.Errorf(types.KindNoCandidate, op, "%s", out.Error)
	}
	return "", types.Errorf(types.KindRequestFailed, op, "http %d: %s", resp.StatusCode, out.Error)
}
