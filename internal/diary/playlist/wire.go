package playlist

import "github.com/blueplan/diary-go/internal/diary/types"

// WireTrack is the track shape served on /spotify-playlist.
type WireTrack struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

// WireResponse is the /spotify-playlist body: tracks on success, error
// otherwise.
type WireResponse struct {
	Tracks []WireTrack `json:"tracks,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func ToWire(tracks []types.TrackRef) []WireTrack {
	out := make([]WireTrack, len(tracks))
	for i, t := range tracks {
		out[i] = WireTrack{Name: t.Title, Artist: t.Artist}
	}
	return out
}

func FromWire(tracks []WireTrack) []types.TrackRef {
	out := make([]types.TrackRef, len(tracks))
	for i, t := range tracks {
		out[i] = types.TrackRef{Title: t.Name, Artist: t.Artist}
	}
	return out
}
