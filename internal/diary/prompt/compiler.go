// Package prompt compiles a session snapshot into the single generation
// request sent to the story backend. Compile is pure: equal contexts always
// yield byte-identical prompts.
package prompt

import (
	"fmt"
	"strings"

	"github.com/blueplan/diary-go/internal/diary/types"
)

const (
	UnknownLocation = "unknown location"
	NoSongs         = "no songs"
	NoPhotos        = "No photo uploaded."

	// DateLayout renders CapturedAt the way the diary header shows it.
	DateLayout = "January 2, 2006"
)

const (
	styleLead = "Write a fun, lightly roasted diary story with lots of emojis in simple English, about 10 lines max."
	styleTail = "Keep it casual, witty, and entertaining. Use playful jokes and funny remarks. Do NOT add markdown like ** or __ anywhere."
)

// Compile never fails; every empty source has a literal fallback.
func Compile(c types.Context) string {
	if idea := strings.TrimSpace(c.FreeformIdea); idea != "" {
		return CompileIdea(idea)
	}

	var b strings.Builder
	b.WriteString("Diary Entry: ")
	b.WriteString(c.CapturedAt.Format(DateLayout))
	b.WriteString("\nLocation: ")
	b.WriteString(LocationLine(c.Location))
	b.WriteString("\nSpotify Playlist songs: ")
	b.WriteString(TracksLine(c.Tracks))
	b.WriteString("\nUploaded photo(s):\n")
	b.WriteString(PhotoLines(c.Photos))
	b.WriteString("\n\n")
	b.WriteString(styleLead)
	b.WriteString(" ")
	b.WriteString(styleTail)
	return b.String()
}

// CompileIdea is the free-form branch; location, tracks and photos are ignored.
func CompileIdea(idea string) string {
	return fmt.Sprintf("%s Based on this idea: \"%s\". %s", styleLead, strings.TrimSpace(idea), styleTail)
}

func LocationLine(loc *types.LocationInfo) string {
	if loc == nil || strings.TrimSpace(loc.ResolvedName) == "" {
		return UnknownLocation
	}
	return loc.ResolvedName
}

// TracksLine renders every track as "Title by Artist", comma joined.
func TracksLine(tracks []types.TrackRef) string {
	if len(tracks) == 0 {
		return NoSongs
	}
	parts := make([]string, len(tracks))
	for i, t := range tracks {
		parts[i] = TrackLabel(t)
	}
	return strings.Join(parts, ", ")
}

func TrackLabel(t types.TrackRef) string {
	return t.Title + " by " + t.Artist
}

// PhotoLines renders one line per photo, numbered from 1.
func PhotoLines(photos []types.PhotoRecord) string {
	if len(photos) == 0 {
		return NoPhotos
	}
	lines := make([]string, len(photos))
	for i, p := range photos {
		lines[i] = fmt.Sprintf("Photo %d named \"%s\" showing: %s", i+1, p.FileName, strings.Join(p.Tags, ", "))
	}
	return strings.Join(lines, "\n")
}
