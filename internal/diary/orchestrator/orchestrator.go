// Package orchestrator wires the collectors, prompt compiler, generator and
// presenter to a session and reports progress as stream events.
package orchestrator

import (
	"context"
	"strings"
	"time"

	contextx "github.com/blueplan/diary-go/internal/diary/context"
	"github.com/blueplan/diary-go/internal/diary/events"
	"github.com/blueplan/diary-go/internal/diary/geo"
	logx "github.com/blueplan/diary-go/internal/diary/log"
	"github.com/blueplan/diary-go/internal/diary/photos"
	"github.com/blueplan/diary-go/internal/diary/playlist"
	"github.com/blueplan/diary-go/internal/diary/prompt"
	"github.com/blueplan/diary-go/internal/diary/session"
	"github.com/blueplan/diary-go/internal/diary/story"
	"github.com/blueplan/diary-go/internal/diary/types"
)

type Orchestrator struct {
	Resolver  *geo.Resolver
	Playlist  *playlist.Fetcher
	Photos    *photos.Ingestor
	Generator story.Generator
	Presenter *story.Presenter
	Events    events.Publisher
	Logger    *logx.Logger
	Now       func() time.Time
}

// Deps 组装编排器所需的全部组件
type Deps struct {
	Resolver  *geo.Resolver
	Playlist  *playlist.Fetcher
	Photos    *photos.Ingestor
	Generator story.Generator
	Presenter *story.Presenter
	Events    events.Publisher
	Logger    *logx.Logger
}

func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		Resolver:  d.Resolver,
		Playlist:  d.Playlist,
		Photos:    d.Photos,
		Generator: d.Generator,
		Presenter: d.Presenter,
		Events:    d.Events,
		Logger:    d.Logger,
		Now:       time.Now,
	}
	if o.Events == nil {
		o.Events = events.Nop{}
	}
	if o.Logger == nil {
		o.Logger = logx.GetLogger()
	}
	return o
}

func (o *Orchestrator) publish(s *session.Session, t events.EventType, c events.ContentType, msg string, data any) {
	o.Events.Publish(s.ID, events.StreamEvent{Type: t, Content: c, Message: msg, Data: data, Timestamp: o.Now()})
}

func withSession(ctx context.Context, s *session.Session) context.Context {
	return contextx.WithSessionID(ctx, s.ID)
}

// RequestLocation runs the location collector for s.
func (o *Orchestrator) RequestLocation(ctx context.Context, s *session.Session, l geo.Locator, c geo.Confirmer) (geo.Resolution, error) {
	ctx = withSession(ctx, s)
	res, err := o.Resolver.Resolve(ctx, l, c, s)
	if err != nil {
		o.publish(s, events.Error, events.ContentLocation, res.Status, map[string]any{"kind": types.KindOf(err)})
		return res, err
	}
	if res.ReportStatus != "" {
		o.publish(s, events.Status, events.ContentLocation, res.ReportStatus, nil)
	}
	o.publish(s, events.Status, events.ContentLocation, res.Status, res.Location)
	return res, nil
}

// FetchPlaylist runs the playlist collector for s.
func (o *Orchestrator) FetchPlaylist(ctx context.Context, s *session.Session) (playlist.Result, error) {
	ctx = withSession(ctx, s)
	res, err := o.Playlist.Fetch(ctx, s)
	if err != nil {
		o.publish(s, events.Error, events.ContentPlaylist, res.Status, map[string]any{"kind": types.KindOf(err)})
		return res, err
	}
	o.publish(s, events.Status, events.ContentPlaylist, res.Status, res.Tracks)
	return res, nil
}

// UploadPhotos replaces the photo batch of s. Each settled file and the
// finished batch are reported as events.
func (o *Orchestrator) UploadPhotos(ctx context.Context, s *session.Session, files []photos.File) []types.PhotoRecord {
	ctx = withSession(ctx, s)
	in := *o.Photos
	in.OnSettled = func(i int, rec types.PhotoRecord, err error) {
		meta := map[string]any{"index": i, "file": rec.FileName}
		if err != nil {
			meta["kind"] = types.KindOf(err)
			o.Events.Publish(s.ID, events.StreamEvent{
				Type: events.Error, Content: events.ContentPhotos,
				Message: types.UserMessage(types.KindOf(err)), Meta: meta, Timestamp: o.Now(),
			})
			return
		}
		o.Events.Publish(s.ID, events.StreamEvent{
			Type: events.Status, Content: events.ContentPhotos,
			Message: rec.FileName + ": " + strings.Join(rec.Tags, ", "), Meta: meta, Timestamp: o.Now(),
		})
	}
	in.OnBatch = func(batch []types.PhotoRecord) {
		o.publish(s, events.Status, events.ContentPhotos, photos.StatusUploaded, photoSummaries(batch))
	}
	return in.Ingest(ctx, files, s)
}

func (o *Orchestrator) SetIdea(s *session.Session, idea string) {
	s.SetIdea(idea)
}

// Generate snapshots s, compiles the prompt and makes one generation
// attempt. A second call while one is in flight fails with GenerationBusy.
func (o *Orchestrator) Generate(ctx context.Context, s *session.Session) (types.StoryResult, error) {
	ctx = withSession(ctx, s)
	if !s.BeginGeneration() {
		err := types.NewError(types.KindGenerationBusy, "orchestrator.generate", nil)
		o.publish(s, events.Error, events.ContentStory, types.UserMessage(types.KindGenerationBusy), nil)
		return types.StoryResult{}, err
	}
	defer s.EndGeneration()

	snap, err := s.Snapshot(o.Now())
	if err != nil {
		o.publish(s, events.Error, events.ContentStory, types.UserMessage(types.KindOf(err)), nil)
		return types.StoryResult{}, err
	}
	compiled := prompt.Compile(snap)
	o.Logger.Debug(ctx, "提示词已生成", logx.KV("prompt_len", len(compiled)), logx.KV("photos", len(snap.Photos)))

	var text string
	if cg, ok := o.Generator.(story.ContextGenerator); ok {
		text, err = cg.GenerateContext(ctx, snap, compiled)
	} else {
		text, err = o.Generator.Generate(ctx, compiled)
	}
	if err != nil {
		o.Logger.Error(ctx, "故事生成失败", logx.KV("kind", types.KindOf(err)), logx.KV("error", err))
		o.publish(s, events.Error, events.ContentStory, story.FailureText(err), map[string]any{"kind": types.KindOf(err)})
		return types.StoryResult{}, err
	}

	result := types.StoryResult{Text: text}
	s.SetLastStory(result)
	o.publish(s, events.Result, events.ContentStory, "Your Story", map[string]any{
		"story": text,
		"html":  story.RenderHTML(text),
	})
	return result, nil
}

// Save stores the last generated story of s.
func (o *Orchestrator) Save(ctx context.Context, s *session.Session) (types.SavedStory, error) {
	ctx = withSession(ctx, s)
	last, ok := s.LastStory()
	if !ok {
		return types.SavedStory{}, types.NewError(types.KindNothingToSave, "orchestrator.save", nil)
	}
	saved, err := o.Presenter.Save(ctx, s.ID, last.Text, o.Now())
	if err != nil {
		o.Logger.Error(ctx, "保存故事失败", logx.KV("error", err))
		return types.SavedStory{}, err
	}
	o.publish(s, events.Status, events.ContentSaved, story.StatusSaved, saved)
	return saved, nil
}

// Stories lists the saved stories of s, newest first.
func (o *Orchestrator) Stories(ctx context.Context, s *session.Session) ([]types.SavedStory, error) {
	return o.Presenter.List(withSession(ctx, s), s.ID)
}

// Forget drops everything kept for a session id outside the session itself.
func (o *Orchestrator) Forget(ctx context.Context, sessionID string) {
	if err := o.Presenter.Journal.Drop(ctx, sessionID); err != nil {
		o.Logger.Warn(ctx, "清理会话故事失败", logx.KV("session_id", sessionID), logx.KV("error", err))
	}
}

type photoSummary struct {
	FileName string   `json:"file_name"`
	Tags     []string `json:"tags"`
}

func photoSummaries(batch []types.PhotoRecord) []photoSummary {
	out := make([]photoSummary, len(batch))
	for i, p := range batch {
		out[i] = photoSummary{FileName: p.FileName, Tags: p.Tags}
	}
	return out
}
