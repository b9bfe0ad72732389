package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/blueplan/diary-go/internal/diary/config"
	"github.com/blueplan/diary-go/internal/diary/types"
	"golang.org/x/oauth2"
)

// Scopes requested by the authorize redirect.
var Scopes = []string{"playlist-read-private", "playlist-read-collaborative"}

// Spotify reads one configured playlist using a long-lived refresh token.
type Spotify struct {
	oauth        *oauth2.Config
	refreshToken string
	playlistID   string
	apiBase      string
	httpClient   *http.Client

	once sync.Once
	ts   oauth2.TokenSource
}

// NewSpotify builds the source. redirectURL is where /auth/spotify sends
// the user back to.
func NewSpotify(cfg config.SpotifyConfig, redirectURL string, httpClient *http.Client) *Spotify {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Spotify{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		refreshToken: cfg.RefreshToken,
		playlistID:   ParsePlaylistID(cfg.PlaylistID),
		apiBase:      strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient:   httpClient,
	}
}

// AuthCodeURL is the authorize redirect used to obtain a refresh token once.
func (s *Spotify) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens.
func (s *Spotify) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	return s.oauth.Exchange(ctx, code)
}

func (s *Spotify) tokenSource() oauth2.TokenSource {
	s.once.Do(func() {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, s.httpClient)
		s.ts = s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: s.refreshToken})
	})
	return s.ts
}

type playlistItems struct {
	Items *[]struct {
		Track *struct {
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"track"`
	} `json:"items"`
}

func (s *Spotify) Tracks(ctx context.Context) ([]types.TrackRef, error) {
	const op = "spotify.tracks"
	if s.refreshToken == "" {
		return nil, types.Errorf(types.KindPlaylistFetchFailed, op, "refresh token not configured")
	}
	if s.playlistID == "" {
		return nil, types.Errorf(types.KindPlaylistFetchFailed, op, "playlist id not configured")
	}

	tok, err := s.tokenSource().Token()
	if err != nil {
		return nil, types.NewError(types.KindPlaylistFetchFailed, op, fmt.Errorf("could not refresh access token: %w", err))
	}

	endpoint := fmt.Sprintf("%s/playlists/%s/tracks?limit=%d", s.apiBase, url.PathEscape(s.playlistID), PageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewError(types.KindPlaylistFetchFailed, op, err)
	}
	tok.SetAuthHeader(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, types.NewError(types.KindPlaylistFetchFailed, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, types.Errorf(types.KindPlaylistFetchFailed, op, "http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var data playlistItems
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, types.NewError(types.KindPlaylistFetchFailed, op, err)
	}
	if data.Items == nil {
		return nil, types.NewError(types.KindPlaylistFetchFailed, op, errors.New("invalid playlist data"))
	}

	tracks := make([]types.TrackRef, 0, len(*data.Items))
	for _, item := range *data.Items {
		// local files and removed tracks come back as null
		if item.Track == nil {
			continue
		}
		artists := make([]string, 0, len(item.Track.Artists))
		for _, a := range item.Track.Artists {
			artists = append(artists, a.Name)
		}
		tracks = append(tracks, types.TrackRef{Title: item.Track.Name, Artist: strings.Join(artists, ", ")})
	}
	return tracks, nil
}

// ParsePlaylistID accepts a bare ID or a share URL such as
// https://open.spotify.com/playlist/<id>?si=...
func ParsePlaylistID(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "playlist/"); i >= 0 {
		raw = raw[i+len("playlist/"):]
		if j := strings.IndexAny(raw, "?/"); j >= 0 {
			raw = raw[:j]
		}
	}
	return raw
}
