package photos

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/blueplan/diary-go/internal/diary/llm"
	"github.com/blueplan/diary-go/internal/diary/types"
)

// Descriptor names what a photo shows as a few short tags.
type Descriptor interface {
	Describe(ctx context.Context, encoded string) ([]string, error)
}

// StubTags is what StubDescriptor answers for every photo.
var StubTags = []string{"a sunny beach", "palm trees", "blue sky"}

// StubDescriptor stands in for a real recognizer. Delay simulates latency.
type StubDescriptor struct {
	Delay time.Duration
}

func (d StubDescriptor) Describe(ctx context.Context, _ string) ([]string, error) {
	if d.Delay > 0 {
		t := time.NewTimer(d.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, types.NewError(types.KindDescribeFailed, "photos.describe", ctx.Err())
		}
	}
	return append([]string(nil), StubTags...), nil
}

const visionInstruction = "List up to %d short tags describing what this photo shows. " +
	"Reply with the tags only, comma separated, no numbering."

// VisionDescriptor asks a multimodal model for tags.
type VisionDescriptor struct {
	Client  llm.Client
	MaxTags int
}

func NewVisionDescriptor(client llm.Client) *VisionDescriptor {
	return &VisionDescriptor{Client: client, MaxTags: 5}
}

func (d *VisionDescriptor) Describe(ctx context.Context, encoded string) ([]string, error) {
	const op = "photos.describe"
	max := d.MaxTags
	if max <= 0 {
		max = 5
	}
	resp, err := d.Client.Complete(ctx, llm.Request{
		Messages: []llm.Message{{
			Role:    "user",
			Content: fmt.Sprintf(visionInstruction, max),
			Images:  []string{encoded},
		}},
		MaxTokens:   60,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, types.NewError(types.KindDescribeFailed, op, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, types.Errorf(types.KindDescribeFailed, op, "no candidates")
	}
	tags := ParseTags(resp.Candidates[0], max)
	if len(tags) == 0 {
		return nil, types.Errorf(types.KindDescribeFailed, op, "empty answer")
	}
	return tags, nil
}

var listMarker = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)

// ParseTags splits a model answer on commas and newlines, dropping list
// markers and trailing punctuation.
func ParseTags(answer string, max int) []string {
	fields := strings.FieldsFunc(answer, func(r rune) bool { return r == ',' || r == '\n' })
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		f = listMarker.ReplaceAllString(strings.TrimSpace(f), "")
		f = strings.TrimRight(f, ".;")
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		tags = append(tags, f)
		if max > 0 && len(tags) == max {
			break
		}
	}
	return tags
}
