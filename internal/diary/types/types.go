package types

import (
	"strconv"
	"time"
)

// Coordinates is a raw device fix.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String renders the fix as "lat, lon" using the shortest float form.
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + ", " + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// LocationInfo is the resolved location of a session. ResolvedName is never
// empty once a LocationInfo has been written.
type LocationInfo struct {
	Raw          Coordinates `json:"raw"`
	ResolvedName string      `json:"resolved_name"`
}

// TrackRef is one recently played song.
type TrackRef struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// PhotoRecord is one uploaded photo. Tags is only populated once the
// descriptor call for the record has settled.
type PhotoRecord struct {
	FileName     string   `json:"file_name"`
	EncodedImage string   `json:"encoded_image,omitempty"`
	Tags         []string `json:"tags"`
}

// Context is the immutable snapshot handed to the prompt compiler.
type Context struct {
	Location     *LocationInfo `json:"location,omitempty"`
	Tracks       []TrackRef    `json:"tracks"`
	Photos       []PhotoRecord `json:"photos"`
	FreeformIdea string        `json:"freeform_idea,omitempty"`
	CapturedAt   time.Time     `json:"captured_at"`
}

// StoryResult is a successfully generated story.
type StoryResult struct {
	Text string `json:"text"`
}

// SavedStory is a story the user explicitly saved during the session.
type SavedStory struct {
	ID        string    `json:"id"`
	Timestamp string    `json:"timestamp"`
	Text      string    `json:"text"`
	SavedAt   time.Time `json:"saved_at"`
}
