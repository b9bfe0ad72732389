// Package session holds the per-user state the collectors write to and the
// aggregator reads from. Each collector owns exactly one cell and replaces it
// atomically when its operation settles; readers never see a partial write.
package session

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/blueplan/diary-go/internal/diary/types"
)

type Session struct {
	ID        string
	CreatedAt time.Time

	location atomic.Pointer[types.LocationInfo]
	tracks   atomic.Pointer[[]types.TrackRef]
	photos   atomic.Pointer[[]types.PhotoRecord]
	idea     atomic.Pointer[string]

	lastStory  atomic.Pointer[types.StoryResult]
	generating atomic.Bool
	lastSeen   atomic.Int64
}

func New(id string, now time.Time) *Session {
	s := &Session{ID: id, CreatedAt: now}
	s.Touch(now)
	return s
}

// SetLocation is written by the location resolver only.
func (s *Session) SetLocation(loc types.LocationInfo) {
	s.location.Store(&loc)
}

func (s *Session) Location() (types.LocationInfo, bool) {
	p := s.location.Load()
	if p == nil {
		return types.LocationInfo{}, false
	}
	return *p, true
}

// SetTracks is written by the playlist fetcher only; the list is replaced
// wholesale.
func (s *Session) SetTracks(tracks []types.TrackRef) {
	cp := append([]types.TrackRef(nil), tracks...)
	s.tracks.Store(&cp)
}

func (s *Session) Tracks() []types.TrackRef {
	p := s.tracks.Load()
	if p == nil {
		return nil
	}
	return append([]types.TrackRef(nil), (*p)...)
}

// SetPhotos is written by the photo ingestor once a whole batch settled.
func (s *Session) SetPhotos(photos []types.PhotoRecord) {
	cp := copyPhotos(photos)
	s.photos.Store(&cp)
}

func (s *Session) Photos() []types.PhotoRecord {
	p := s.photos.Load()
	if p == nil {
		return nil
	}
	return copyPhotos(*p)
}

// SetIdea mirrors the free-text input field.
func (s *Session) SetIdea(idea string) {
	s.idea.Store(&idea)
}

func (s *Session) Idea() string {
	p := s.idea.Load()
	if p == nil {
		return ""
	}
	return *p
}

// BeginGeneration claims the single generation slot. It reports false when a
// request is already in flight.
func (s *Session) BeginGeneration() bool {
	return s.generating.CompareAndSwap(false, true)
}

func (s *Session) EndGeneration() {
	s.generating.Store(false)
}

func (s *Session) Generating() bool {
	return s.generating.Load()
}

// SetLastStory records the latest successful generation; saving is only
// possible once one exists.
func (s *Session) SetLastStory(r types.StoryResult) {
	s.lastStory.Store(&r)
}

func (s *Session) LastStory() (types.StoryResult, bool) {
	p := s.lastStory.Load()
	if p == nil {
		return types.StoryResult{}, false
	}
	return *p, true
}

func (s *Session) Touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func copyPhotos(in []types.PhotoRecord) []types.PhotoRecord {
	if in == nil {
		return nil
	}
	out := make([]types.PhotoRecord, len(in))
	for i, p := range in {
		out[i] = p
		out[i].Tags = append([]string(nil), p.Tags...)
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
