package session

import (
	"time"

	"github.com/blueplan/diary-go/internal/diary/types"
)

// Snapshot merges whatever the collectors currently hold into one immutable
// Context. Pending collector operations are simply not visible yet. An
// entirely empty session is rejected before anything touches the network.
func (s *Session) Snapshot(now time.Time) (types.Context, error) {
	c := types.Context{
		Tracks:       s.Tracks(),
		Photos:       s.Photos(),
		FreeformIdea: s.Idea(),
		CapturedAt:   now,
	}
	if loc, ok := s.Location(); ok {
		c.Location = &loc
	}
	if c.Tracks == nil {
		c.Tracks = []types.TrackRef{}
	}
	if c.Photos == nil {
		c.Photos = []types.PhotoRecord{}
	}
	if c.Location == nil && len(c.Tracks) == 0 && len(c.Photos) == 0 && isBlank(c.FreeformIdea) {
		return types.Context{}, types.NewError(types.KindEmptyContext, "session.snapshot", nil)
	}
	return c, nil
}
