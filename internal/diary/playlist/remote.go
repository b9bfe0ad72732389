package playlist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/blueplan/diary-go/internal/diary/types"
)

// RemoteSource reads tracks through the diary server's /spotify-playlist.
type RemoteSource struct {
	BaseURL string
	Client  *http.Client
}

func NewRemoteSource(baseURL string, client *http.Client) *RemoteSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteSource{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

func (r *RemoteSource) Tracks(ctx context.Context) ([]types.TrackRef, error) {
	const op = "playlist.remote"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/spotify-playlist", nil)
	if err != nil {
		return nil, types.NewError(types.KindPlaylistFetchFailed, op, err)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, types.NewError(types.KindPlaylistFetchFailed, op, err)
	}
	defer resp.Body.Close()

	var body WireResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, types.NewError(types.KindPlaylistFetchFailed, op, fmt.Errorf("decode: %w", err))
	}
	if resp.StatusCode != http.StatusOK || body.Error != "" {
		return nil, types.Errorf(types.KindPlaylistFetchFailed, op, "http %d: %s", resp.StatusCode, body.Error)
	}
	return FromWire(body.Tracks), nil
}
