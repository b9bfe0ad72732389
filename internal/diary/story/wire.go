package story

import (
	"strings"

	"github.com/blueplan/diary-go/internal/diary/prompt"
	"github.com/blueplan/diary-go/internal/diary/types"
)

// WirePhoto is a photo as carried on /generate-story.
type WirePhoto struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// WireRequest is the /generate-story request body. Playlist entries are
// "Title by Artist" labels.
type WireRequest struct {
	Location string      `json:"location,omitempty"`
	Playlist []string    `json:"playlist,omitempty"`
	Photos   []WirePhoto `json:"photos,omitempty"`
	Prompt   string      `json:"prompt,omitempty"`
}

// WireResponse carries either the story or an error with its kind.
type WireResponse struct {
	Story string `json:"story,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// ToWire flattens a context into the request body.
func ToWire(c types.Context, compiled string) WireRequest {
	req := WireRequest{Prompt: compiled}
	if c.Location != nil {
		req.Location = c.Location.ResolvedName
	}
	for _, t := range c.Tracks {
		req.Playlist = append(req.Playlist, prompt.TrackLabel(t))
	}
	for _, p := range c.Photos {
		req.Photos = append(req.Photos, WirePhoto{Name: p.FileName, Description: strings.Join(p.Tags, ", ")})
	}
	return req
}

// FromWire rebuilds a context from a request body. Encoded images are not
// carried on the wire.
func FromWire(req WireRequest) types.Context {
	c := types.Context{
		Tracks: make([]types.TrackRef, 0, len(req.Playlist)),
		Photos: make([]types.PhotoRecord, 0, len(req.Photos)),
	}
	if name := strings.TrimSpace(req.Location); name != "" {
		c.Location = &types.LocationInfo{ResolvedName: name}
	}
	for _, label := range req.Playlist {
		c.Tracks = append(c.Tracks, parseLabel(label))
	}
	for _, p := range req.Photos {
		rec := types.PhotoRecord{FileName: p.Name, Tags: []string{}}
		if d := strings.TrimSpace(p.Description); d != "" {
			for _, tag := range strings.Split(d, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					rec.Tags = append(rec.Tags, tag)
				}
			}
		}
		c.Photos = append(c.Photos, rec)
	}
	return c
}

func parseLabel(label string) types.TrackRef {
	if i := strings.LastIndex(label, " by "); i >= 0 {
		return types.TrackRef{Title: label[:i], Artist: label[i+len(" by "):]}
	}
	return types.TrackRef{Title: label}
}
