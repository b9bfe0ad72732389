package geo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blueplan/diary-go/internal/diary/types"
)

type sinkRecorder struct {
	mu     sync.Mutex
	writes []types.LocationInfo
}

func (s *sinkRecorder) SetLocation(l types.LocationInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, l)
}

type fakeGeocoder struct {
	name string
	err  error
}

func (g fakeGeocoder) Reverse(context.Context, float64, float64) (string, error) {
	return g.name, g.err
}

type fakeReporter struct {
	err   error
	block chan struct{}
	calls chan types.Coordinates
}

func (r *fakeReporter) Report(ctx context.Context, c types.Coordinates) (string, error) {
	if r.calls != nil {
		r.calls <- c
	}
	if r.block != nil {
		<-r.block
	}
	if r.err != nil {
		return "", r.err
	}
	return ReceivedStatus, nil
}

var paris = types.Coordinates{Latitude: 48.8566, Longitude: 2.3522}

func TestResolveConfirmedName(t *testing.T) {
	sink := &sinkRecorder{}
	r := NewResolver(fakeGeocoder{name: "Paris, France"}, &fakeReporter{}, nil)

	res, err := r.Resolve(context.Background(), StaticLocator{Coords: paris}, FixedConfirmer{Value: "  Home  "}, sink)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Location.ResolvedName != "Home" {
		t.Fatalf("name: got=%q", res.Location.ResolvedName)
	}
	if res.Status != "Location set to: Home" {
		t.Fatalf("status: got=%q", res.Status)
	}
	if res.ReportStatus != StatusReportOK {
		t.Fatalf("report status: got=%q", res.ReportStatus)
	}
	if len(sink.writes) != 1 || sink.writes[0].Raw != paris {
		t.Fatalf("sink writes: %+v", sink.writes)
	}
}

func TestResolveBlankConfirmationKeepsResolved(t *testing.T) {
	sink := &sinkRecorder{}
	r := NewResolver(fakeGeocoder{name: "Paris, France"}, nil, nil)
	res, err := r.Resolve(context.Background(), StaticLocator{Coords: paris}, FixedConfirmer{Value: "   "}, sink)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Location.ResolvedName != "Paris, France" {
		t.Fatalf("name: got=%q", res.Location.ResolvedName)
	}
	if res.ReportStatus != "" {
		t.Fatalf("no reporter configured, got report status %q", res.ReportStatus)
	}
}

func TestResolveGeocodeFailureFallsBackToCoordinates(t *testing.T) {
	sink := &sinkRecorder{}
	r := NewResolver(fakeGeocoder{err: errors.New("boom")}, &fakeReporter{err: errors.New("down")}, nil)

	res, err := r.Resolve(context.Background(), StaticLocator{Coords: paris}, nil, sink)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Location.ResolvedName != "48.8566, 2.3522" {
		t.Fatalf("fallback name: got=%q", res.Location.ResolvedName)
	}
	if !errors.Is(res.GeocodeErr, types.ErrReverseGeocodeFailed) {
		t.Fatalf("geocode err: got=%v", res.GeocodeErr)
	}
	if res.ReportStatus != StatusReportFailed {
		t.Fatalf("report status: got=%q", res.ReportStatus)
	}
	if len(sink.writes) != 1 {
		t.Fatalf("sink should be written once, got %d", len(sink.writes))
	}
}

func TestResolveLocatorErrorsLeaveSinkUntouched(t *testing.T) {
	cases := []struct {
		code int
		want error
		msg  string
	}{
		{CodePermissionDenied, types.ErrPermissionDenied, "Location permission denied. Please allow access."},
		{CodePositionUnavailable, types.ErrPositionUnavailable, "Location unavailable. Try again in a clear area."},
		{CodeTimeout, types.ErrTimeout, "Location request timed out. Try again."},
		{99, types.ErrGeoUnknown, "Unable to get location."},
	}
	for _, tc := range cases {
		sink := &sinkRecorder{}
		rep := &fakeReporter{calls: make(chan types.Coordinates, 1)}
		r := NewResolver(fakeGeocoder{name: "x"}, rep, nil)
		res, err := r.Resolve(context.Background(), FailingLocatorFromCode(tc.code), nil, sink)
		if !errors.Is(err, tc.want) {
			t.Fatalf("code %d: got=%v want=%v", tc.code, err, tc.want)
		}
		if res.Status != tc.msg {
			t.Fatalf("code %d: status got=%q", tc.code, res.Status)
		}
		if len(sink.writes) != 0 {
			t.Fatalf("code %d: sink written", tc.code)
		}
		select {
		case <-rep.calls:
			t.Fatalf("code %d: report sent without a fix", tc.code)
		default:
		}
	}
}

func TestResolveSlowLocatorTimesOut(t *testing.T) {
	sink := &sinkRecorder{}
	r := NewResolver(nil, nil, nil)
	r.Options.Timeout = 20 * time.Millisecond

	hang := LocatorFunc(func(context.Context, Options) (types.Coordinates, error) {
		time.Sleep(time.Second)
		return paris, nil
	})
	_, err := r.Resolve(context.Background(), hang, nil, sink)
	if !errors.Is(err, types.ErrTimeout) {
		t.Fatalf("expected timeout, got=%v", err)
	}
	if len(sink.writes) != 0 {
		t.Fatalf("sink written after timeout")
	}
}

func TestResolveDoesNotWaitOnReportBeforeWriting(t *testing.T) {
	sink := &sinkRecorder{}
	rep := &fakeReporter{block: make(chan struct{})}
	r := NewResolver(fakeGeocoder{name: "Paris"}, rep, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Resolution, 1)
	go func() {
		res, _ := r.Resolve(ctx, StaticLocator{Coords: paris}, nil, sink)
		done <- res
	}()

	deadline := time.After(time.Second)
	for {
		sink.mu.Lock()
		n := len(sink.writes)
		sink.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("location not written while report was pending")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	res := <-done
	close(rep.block)
	if res.Location.ResolvedName != "Paris" || res.ReportStatus != "" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestNominatimReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path: got=%q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("lat") != "48.8566" || q.Get("lon") != "2.3522" || q.Get("format") != "json" {
			t.Errorf("query: got=%q", r.URL.RawQuery)
		}
		if ua := r.Header.Get("User-Agent"); ua != "diary-test" {
			t.Errorf("user agent: got=%q", ua)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"display_name": "Paris, Île-de-France, France"})
	}))
	defer srv.Close()

	name, err := NewNominatim(srv.URL+"/", "diary-test", srv.Client()).Reverse(context.Background(), 48.8566, 2.3522)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if name != "Paris, Île-de-France, France" {
		t.Fatalf("name: got=%q", name)
	}
}

func TestNominatimMissingName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()
	if _, err := NewNominatim(srv.URL, "", srv.Client()).Reverse(context.Background(), 0, 0); err == nil {
		t.Fatalf("expected error for missing display_name")
	}
}

func TestHTTPReporter(t *testing.T) {
	var got types.Coordinates
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/location" {
			t.Errorf("request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": ReceivedStatus})
	}))
	defer srv.Close()

	status, err := NewHTTPReporter(srv.URL, srv.Client()).Report(context.Background(), paris)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if status != ReceivedStatus || got != paris {
		t.Fatalf("status=%q coords=%+v", status, got)
	}
}

func TestPromptConfirmer(t *testing.T) {
	var out strings.Builder
	c := PromptConfirmer{In: strings.NewReader("My Place\n"), Out: &out}
	name, edited := c.Confirm(context.Background(), "Paris")
	if name != "My Place" || !edited {
		t.Fatalf("got=%q edited=%v", name, edited)
	}
	if !strings.Contains(out.String(), "Is this your correct location?\nParis\n") {
		t.Fatalf("prompt: got=%q", out.String())
	}

	name, edited = PromptConfirmer{In: strings.NewReader("")}.Confirm(context.Background(), "Paris")
	if name != "Paris" || edited {
		t.Fatalf("EOF should keep resolved: got=%q edited=%v", name, edited)
	}
}
