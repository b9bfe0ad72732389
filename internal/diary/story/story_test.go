package story

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/blueplan/diary-go/internal/diary/llm"
	logx "github.com/blueplan/diary-go/internal/diary/log"
	"github.com/blueplan/diary-go/internal/diary/llm/mock"
	"github.com/blueplan/diary-go/internal/diary/prompt"
	"github.com/blueplan/diary-go/internal/diary/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLLMGeneratorFirstCandidate(t *testing.T) {
	m := mock.New("first story", "second story")
	text, err := NewLLMGenerator(m).Generate(context.Background(), "P")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "first story" {
		t.Fatalf("text: got=%q", text)
	}
	req := m.Requests[0]
	if req.MaxTokens != 400 || req.Temperature != 0.8 {
		t.Fatalf("budget: tokens=%d temp=%v", req.MaxTokens, req.Temperature)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "P" || req.Messages[0].Role != "user" {
		t.Fatalf("messages: %+v", req.Messages)
	}
}

func TestLLMGeneratorFailures(t *testing.T) {
	cases := []struct {
		name string
		m    *mock.Mock
		want error
	}{
		{"transport", &mock.Mock{Err: errors.New("dial tcp: refused")}, types.ErrRequestFailed},
		{"no candidates", &mock.Mock{Response: &llm.Response{}}, types.ErrNoCandidate},
		{"nil response", &mock.Mock{}, types.ErrNoCandidate},
		{"blank candidate", mock.New("  \n"), types.ErrNoCandidate},
	}
	for _, tc := range cases {
		_, err := NewLLMGenerator(tc.m).Generate(context.Background(), "P")
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got=%v want=%v", tc.name, err, tc.want)
		}
		if tc.m.Calls() != 1 {
			t.Fatalf("%s: expected exactly one attempt, got %d", tc.name, tc.m.Calls())
		}
	}
}

func TestRemoteClient(t *testing.T) {
	var got WireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-story" || r.Method != http.MethodPost {
			t.Errorf("request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(WireResponse{Story: "Dear diary"})
	}))
	defer srv.Close()

	c := types.Context{
		Location: &types.LocationInfo{ResolvedName: "Paris"},
		Tracks:   []types.TrackRef{{Title: "Song A", Artist: "X"}},
		Photos:   []types.PhotoRecord{{FileName: "a.jpg", Tags: []string{"sea", "sun"}}},
	}
	text, err := NewRemoteClient(srv.URL, srv.Client()).GenerateContext(context.Background(), c, "compiled")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "Dear diary" {
		t.Fatalf("text: got=%q", text)
	}
	if got.Prompt != "compiled" || got.Location != "Paris" || got.Playlist[0] != "Song A by X" || got.Photos[0].Description != "sea, sun" {
		t.Fatalf("body: %+v", got)
	}
}

func TestRemoteClientErrorCodes(t *testing.T) {
	cases := map[string]error{
		string(types.KindNoCandidate):   types.ErrNoCandidate,
		string(types.KindRequestFailed): types.ErrRequestFailed,
		"":                              types.ErrRequestFailed,
	}
	for code, want := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(WireResponse{Error: "No story generated", Code: code})
		}))
		_, err := NewRemoteClient(srv.URL, srv.Client()).Generate(context.Background(), "P")
		srv.Close()
		if !errors.Is(err, want) {
			t.Fatalf("code %q: got=%v want=%v", code, err, want)
		}
	}
}

func TestRemoteClientMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	_, err := NewRemoteClient(srv.URL, srv.Client()).Generate(context.Background(), "P")
	if !errors.Is(err, types.ErrRequestFailed) {
		t.Fatalf("non-JSON body should be request_failed, got=%v", err)
	}
}

func TestRemoteClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewRemoteClient(url, &http.Client{Timeout: time.Second}).Generate(context.Background(), "P")
	if !errors.Is(err, types.ErrRequestFailed) {
		t.Fatalf("closed server should be request_failed, got=%v", err)
	}
}

func TestWireCompilesLikeContext(t *testing.T) {
	now := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	c := types.Context{
		Location:   &types.LocationInfo{ResolvedName: "Paris"},
		Tracks:     []types.TrackRef{{Title: "Stand by Me", Artist: "Ben E. King"}},
		Photos:     []types.PhotoRecord{{FileName: "a.jpg", Tags: []string{"sea", "sun"}}, {FileName: "b.jpg", Tags: []string{}}},
		CapturedAt: now,
	}
	back := FromWire(ToWire(c, ""))
	back.CapturedAt = now
	if prompt.Compile(back) != prompt.Compile(c) {
		t.Fatalf("prompt differs:\n%s\n---\n%s", prompt.Compile(back), prompt.Compile(c))
	}
}

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2024, 3, 5, 0, 5, 9, 0, time.UTC), "05/3/2024, 12:05:09 AM"},
		{time.Date(2024, 12, 25, 13, 5, 9, 0, time.UTC), "25/12/2024, 01:05:09 PM"},
		{time.Date(2024, 7, 14, 12, 0, 0, 0, time.UTC), "14/7/2024, 12:00:00 PM"},
	}
	for _, tc := range cases {
		if got := FormatTimestamp(tc.at); got != tc.want {
			t.Fatalf("FormatTimestamp(%v): got=%q want=%q", tc.at, got, tc.want)
		}
	}
}

func TestRenderHTML(t *testing.T) {
	got := RenderHTML("Day <1> 🌞\nBeach & sun\n\nThe end")
	want := "Day &lt;1&gt; 🌞<br>Beach &amp; sun<br><br>The end"
	if got != want {
		t.Fatalf("html: got=%q", got)
	}
	if p := Paragraphs("a\r\nb"); len(p) != 2 || p[1] != "b" {
		t.Fatalf("paragraphs: %q", p)
	}
}

func TestFailureText(t *testing.T) {
	if got := FailureText(types.NewError(types.KindNoCandidate, "x", nil)); got != "Error: No story generated" {
		t.Fatalf("got=%q", got)
	}
	if got := FailureText(errors.New("boom")); got != "Error: Story could not be generated." {
		t.Fatalf("got=%q", got)
	}
}

func TestPresenterSavePrepends(t *testing.T) {
	p := NewPresenter(NewInmemJournal())
	ctx := context.Background()
	t0 := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	if _, err := p.Save(ctx, "s", "first", t0); err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := p.Save(ctx, "s", "second", t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if second.Timestamp != "05/3/2024, 09:01:00 AM" || second.ID == "" {
		t.Fatalf("saved: %+v", second)
	}
	if _, err := p.Save(ctx, "s", "  ", t0); !errors.Is(err, types.ErrNothingToSave) {
		t.Fatalf("blank save: got=%v", err)
	}

	list, _ := p.List(ctx, "s")
	if len(list) != 2 || list[0].Text != "second" || list[1].Text != "first" {
		t.Fatalf("list: %+v", list)
	}
	if other, _ := p.List(ctx, "other"); len(other) != 0 {
		t.Fatalf("sessions leaked: %+v", other)
	}
}

func TestDecodeSavedWarnsOnCorruptEntries(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := logx.FromZap(zap.New(core))

	good, _ := json.Marshal(types.SavedStory{ID: "1", Text: "first"})
	list := decodeSaved(context.Background(), logger, "s1", []string{"{not json", string(good)})
	if len(list) != 1 || list[0].ID != "1" {
		t.Fatalf("list: %+v", list)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("warnings: got=%d want=1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["session_id"] != "s1" || fields["index"] != int64(0) {
		t.Fatalf("fields: %#v", fields)
	}
}

// Runs against a live server only when DIARY_TEST_REDIS_ADDR is set.
func TestRedisJournal(t *testing.T) {
	addr := os.Getenv("DIARY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DIARY_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	j := NewRedisJournal(client, time.Minute)
	sid := "test-" + time.Now().Format("150405.000000")
	defer j.Drop(ctx, sid)

	_ = j.Prepend(ctx, sid, types.SavedStory{ID: "1", Text: "first"})
	_ = j.Prepend(ctx, sid, types.SavedStory{ID: "2", Text: "second"})
	list, err := j.List(ctx, sid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "2" {
		t.Fatalf("list: %+v", list)
	}
	if ttl := client.TTL(ctx, j.key(sid)).Val(); ttl <= 0 {
		t.Fatalf("ttl not set: %v", ttl)
	}
}
