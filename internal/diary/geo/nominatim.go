package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Geocoder turns coordinates into a human-readable place name.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// Nominatim queries an OpenStreetMap Nominatim instance.
type Nominatim struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

func NewNominatim(baseURL, userAgent string, client *http.Client) *Nominatim {
	if client == nil {
		client = http.DefaultClient
	}
	return &Nominatim{BaseURL: strings.TrimRight(baseURL, "/"), UserAgent: userAgent, Client: client}
}

func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	// Nominatim usage policy requires an identifying agent
	if n.UserAgent != "" {
		req.Header.Set("User-Agent", n.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("nominatim: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("nominatim: http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("nominatim: decode: %w", err)
	}
	if strings.TrimSpace(out.DisplayName) == "" {
		return "", fmt.Errorf("nominatim: no display_name for %v,%v", lat, lon)
	}
	return out.DisplayName, nil
}
