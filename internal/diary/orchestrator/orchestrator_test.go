package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blueplan/diary-go/internal/diary/events"
	"github.com/blueplan/diary-go/internal/diary/geo"
	"github.com/blueplan/diary-go/internal/diary/llm/mock"
	"github.com/blueplan/diary-go/internal/diary/photos"
	"github.com/blueplan/diary-go/internal/diary/playlist"
	"github.com/blueplan/diary-go/internal/diary/session"
	"github.com/blueplan/diary-go/internal/diary/story"
	"github.com/blueplan/diary-go/internal/diary/types"
)

type recorder struct {
	mu  sync.Mutex
	evs []events.StreamEvent
}

func (r *recorder) Publish(_ string, ev events.StreamEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.evs))
	for i, ev := range r.evs {
		out[i] = ev.Message
	}
	return out
}

type fixedGeocoder string

func (g fixedGeocoder) Reverse(context.Context, float64, float64) (string, error) {
	return string(g), nil
}

type staticTracks []types.TrackRef

func (s staticTracks) Tracks(context.Context) ([]types.TrackRef, error) { return s, nil }

// blockingGenerator holds Generate until release is closed.
type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
}

func (g *blockingGenerator) Generate(ctx context.Context, _ string) (string, error) {
	close(g.started)
	<-g.release
	return "story", nil
}

var fixedNow = time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

func newTestOrchestrator(gen story.Generator, rec *recorder) *Orchestrator {
	o := New(Deps{
		Resolver:  geo.NewResolver(fixedGeocoder("Paris, France"), nil, nil),
		Playlist:  playlist.NewFetcher(staticTracks{{Title: "Song A", Artist: "X"}, {Title: "Song B", Artist: "Y"}}, nil),
		Photos:    photos.NewIngestor(photos.NewEncoder(0), photos.StubDescriptor{}, 2, nil),
		Generator: gen,
		Presenter: story.NewPresenter(story.NewInmemJournal()),
		Events:    rec,
	})
	o.Now = func() time.Time { return fixedNow }
	return o
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("png: %v", err)
	}
	return buf.Bytes()
}

func TestFullPipeline(t *testing.T) {
	m := mock.New("Dear diary 🌞\nWhat a day")
	rec := &recorder{}
	o := newTestOrchestrator(story.NewLLMGenerator(m), rec)
	s := session.New("s1", fixedNow)
	ctx := context.Background()

	if _, err := o.RequestLocation(ctx, s, geo.StaticLocator{Coords: types.Coordinates{Latitude: 48.85, Longitude: 2.35}}, geo.KeepResolved{}); err != nil {
		t.Fatalf("location: %v", err)
	}
	if _, err := o.FetchPlaylist(ctx, s); err != nil {
		t.Fatalf("playlist: %v", err)
	}
	recs := o.UploadPhotos(ctx, s, []photos.File{{Name: "beach.png", Data: tinyPNG(t)}})
	if len(recs) != 1 {
		t.Fatalf("photos: %+v", recs)
	}

	res, err := o.Generate(ctx, s)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text != "Dear diary 🌞\nWhat a day" {
		t.Fatalf("story: got=%q", res.Text)
	}

	sent := m.Requests[0].Messages[0].Content
	for _, want := range []string{
		"Diary Entry: March 5, 2024",
		"Location: Paris, France",
		"Spotify Playlist songs: Song A by X, Song B by Y",
		`Photo 1 named "beach.png" showing: a sunny beach, palm trees, blue sky`,
	} {
		if !strings.Contains(sent, want) {
			t.Fatalf("prompt missing %q:\n%s", want, sent)
		}
	}

	saved, err := o.Save(ctx, s)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Timestamp != "05/3/2024, 02:30:00 PM" {
		t.Fatalf("timestamp: got=%q", saved.Timestamp)
	}
	list, _ := o.Stories(ctx, s)
	if len(list) != 1 || list[0].Text != res.Text {
		t.Fatalf("stories: %+v", list)
	}

	msgs := strings.Join(rec.messages(), "|")
	for _, want := range []string{
		"Location set to: Paris, France",
		"Fetched 2 songs from your playlist",
		photos.StatusUploaded,
		story.StatusSaved,
	} {
		if !strings.Contains(msgs, want) {
			t.Fatalf("events missing %q: %s", want, msgs)
		}
	}
}

func TestIdeaOnlyUsesIdeaBranch(t *testing.T) {
	m := mock.New("ok")
	o := newTestOrchestrator(story.NewLLMGenerator(m), &recorder{})
	s := session.New("s", fixedNow)
	o.SetIdea(s, "a rainy day in Paris")

	if _, err := o.Generate(context.Background(), s); err != nil {
		t.Fatalf("generate: %v", err)
	}
	sent := m.Requests[0].Messages[0].Content
	if !strings.Contains(sent, `Based on this idea: "a rainy day in Paris".`) || strings.Contains(sent, "Diary Entry") {
		t.Fatalf("prompt: %s", sent)
	}
}

func TestEmptyContextNeverCallsBackend(t *testing.T) {
	m := mock.New("unused")
	rec := &recorder{}
	o := newTestOrchestrator(story.NewLLMGenerator(m), rec)
	s := session.New("s", fixedNow)

	_, err := o.Generate(context.Background(), s)
	if !errors.Is(err, types.ErrEmptyContext) {
		t.Fatalf("err: got=%v", err)
	}
	if m.Calls() != 0 {
		t.Fatalf("backend called %d times", m.Calls())
	}
	if msgs := rec.messages(); len(msgs) != 1 || msgs[0] != "Please provide location, playlist, photo, or write a story idea." {
		t.Fatalf("events: %q", msgs)
	}
}

func TestGenerateFailureKeepsSessionForRetry(t *testing.T) {
	m := &mock.Mock{Err: errors.New("503")}
	rec := &recorder{}
	o := newTestOrchestrator(story.NewLLMGenerator(m), rec)
	s := session.New("s", fixedNow)
	o.SetIdea(s, "idea")

	if _, err := o.Generate(context.Background(), s); !errors.Is(err, types.ErrRequestFailed) {
		t.Fatalf("err: got=%v", err)
	}
	if _, err := o.Save(context.Background(), s); !errors.Is(err, types.ErrNothingToSave) {
		t.Fatalf("save without story: got=%v", err)
	}
	if got := rec.messages(); got[len(got)-1] != "Error: Failed to generate story" {
		t.Fatalf("events: %q", got)
	}

	m.Err = nil
	m.Response = mock.New("second try").Response
	if res, err := o.Generate(context.Background(), s); err != nil || res.Text != "second try" {
		t.Fatalf("retry: res=%+v err=%v", res, err)
	}
}

func TestConcurrentGenerateIsBusy(t *testing.T) {
	g := &blockingGenerator{started: make(chan struct{}), release: make(chan struct{})}
	o := newTestOrchestrator(g, &recorder{})
	s := session.New("s", fixedNow)
	o.SetIdea(s, "idea")

	done := make(chan error, 1)
	go func() {
		_, err := o.Generate(context.Background(), s)
		done <- err
	}()
	<-g.started

	if _, err := o.Generate(context.Background(), s); !errors.Is(err, types.ErrGenerationBusy) {
		t.Fatalf("second generate: got=%v", err)
	}
	close(g.release)
	if err := <-done; err != nil {
		t.Fatalf("first generate: %v", err)
	}
}

func TestLocationFailureLeavesSessionEmpty(t *testing.T) {
	rec := &recorder{}
	o := newTestOrchestrator(story.NewLLMGenerator(mock.New("x")), rec)
	s := session.New("s", fixedNow)

	_, err := o.RequestLocation(context.Background(), s, geo.FailingLocatorFromCode(geo.CodePermissionDenied), nil)
	if !errors.Is(err, types.ErrPermissionDenied) {
		t.Fatalf("err: got=%v", err)
	}
	if _, ok := s.Location(); ok {
		t.Fatalf("location should not be set")
	}
	if msgs := rec.messages(); len(msgs) != 1 || msgs[0] != "Location permission denied. Please allow access." {
		t.Fatalf("events: %q", msgs)
	}
}
