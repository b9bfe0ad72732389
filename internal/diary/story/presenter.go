package story

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/blueplan/diary-go/internal/diary/types"
	"github.com/google/uuid"
)

// TimestampLayout is day/month/year with a zero padded 12-hour clock.
const TimestampLayout = "02/1/2006, 03:04:05 PM"

const (
	StatusSaved     = "Story saved!"
	FallbackFailure = "Story could not be generated."
)

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Paragraphs splits story text on line breaks; every break is kept.
func Paragraphs(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// RenderHTML escapes the story and turns line breaks into <br>.
func RenderHTML(text string) string {
	lines := Paragraphs(text)
	for i, l := range lines {
		lines[i] = html.EscapeString(l)
	}
	return strings.Join(lines, "<br>")
}

// FailureText is the inline error shown in place of a story.
func FailureText(err error) string {
	msg := FallbackFailure
	if kind := types.KindOf(err); kind != "" {
		msg = types.UserMessage(kind)
	}
	return "Error: " + msg
}

// Presenter stamps and stores saved stories.
type Presenter struct {
	Journal Journal
}

func NewPresenter(j Journal) *Presenter {
	return &Presenter{Journal: j}
}

// Save prepends text to the session's saved list.
func (p *Presenter) Save(ctx context.Context, sessionID, text string, now time.Time) (types.SavedStory, error) {
	if strings.TrimSpace(text) == "" {
		return types.SavedStory{}, types.NewError(types.KindNothingToSave, "story.save", nil)
	}
	s := types.SavedStory{
		ID:        uuid.NewString(),
		Timestamp: FormatTimestamp(now),
		Text:      text,
		SavedAt:   now,
	}
	if err := p.Journal.Prepend(ctx, sessionID, s); err != nil {
		return types.SavedStory{}, err
	}
	return s, nil
}

// List returns saved stories newest first.
func (p *Presenter) List(ctx context.Context, sessionID string) ([]types.SavedStory, error) {
	return p.Journal.List(ctx, sessionID)
}
