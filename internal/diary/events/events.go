package events

import "time"

type EventType string

type ContentType string

const (
	Status EventType = "status"
	Error  EventType = "error"
	Result EventType = "result"
)

const (
	ContentLocation ContentType = "location"
	ContentPlaylist ContentType = "playlist"
	ContentPhotos   ContentType = "photos"
	ContentStory    ContentType = "story"
	ContentSaved    ContentType = "saved"
)

// StreamEvent is one user-visible signal pushed to a session's subscribers.
type StreamEvent struct {
	Type      EventType      `json:"type"`
	Content   ContentType    `json:"content_type"`
	Message   string         `json:"message"`
	Data      any            `json:"data,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
