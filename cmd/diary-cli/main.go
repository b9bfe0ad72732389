// Command diary-cli collects a diary context on this machine and asks a
// diary server to write the story.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blueplan/diary-go/internal/diary/config"
	"github.com/blueplan/diary-go/internal/diary/events"
	"github.com/blueplan/diary-go/internal/diary/geo"
	logx "github.com/blueplan/diary-go/internal/diary/log"
	"github.com/blueplan/diary-go/internal/diary/orchestrator"
	"github.com/blueplan/diary-go/internal/diary/photos"
	"github.com/blueplan/diary-go/internal/diary/playlist"
	"github.com/blueplan/diary-go/internal/diary/session"
	"github.com/blueplan/diary-go/internal/diary/story"
	"github.com/google/uuid"
)

// printer shows status events the way the browser showed alerts.
type printer struct{}

func (printer) Publish(_ string, ev events.StreamEvent) {
	if ev.Type == events.Result {
		return
	}
	prefix := "•"
	if ev.Type == events.Error {
		prefix = "!"
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", prefix, ev.Message)
}

func main() {
	cfg := config.Load()

	server := flag.String("server", cfg.Client.ServerURL, "diary server base URL")
	lat := flag.Float64("lat", 0, "latitude of the current position (location step runs only when -lat and -lon are given)")
	lon := flag.Float64("lon", 0, "longitude of the current position")
	geoErr := flag.Int("geo-error", 0, "device geolocation error code (1 denied, 2 unavailable, 3 timeout)")
	confirm := flag.Bool("confirm", true, "ask to confirm the resolved place name on stdin")
	withPlaylist := flag.Bool("playlist", true, "fetch songs from the server playlist")
	idea := flag.String("idea", "", "free-form story idea; overrides everything else")
	save := flag.Bool("save", false, "save the story and print the saved list")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [photo ...]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := logx.NewNop()
	if *verbose {
		l, err := logx.NewDevelopment()
		if err != nil {
			log.Fatalf("init logger: %v", err)
		}
		logger = l
	}
	logx.SetGlobalLogger(logger)

	httpClient := &http.Client{Timeout: time.Duration(cfg.API.Timeout) * time.Second}
	geoClient := &http.Client{Timeout: time.Duration(cfg.Geocode.Timeout) * time.Second}

	remote := story.NewRemoteClient(*server, httpClient)
	orch := orchestrator.New(orchestrator.Deps{
		Resolver: geo.NewResolver(
			geo.NewNominatim(cfg.Geocode.BaseURL, cfg.Geocode.UserAgent, geoClient),
			geo.NewHTTPReporter(*server, httpClient),
			logger,
		),
		Playlist:  playlist.NewFetcher(playlist.NewRemoteSource(*server, httpClient), logger),
		Photos:    photos.NewIngestor(photos.NewEncoder(cfg.Photos.MaxDimension), photos.StubDescriptor{}, cfg.Photos.MaxConcurrency, logger),
		Generator: remote,
		Presenter: story.NewPresenter(story.NewInmemJournal()),
		Events:    printer{},
		Logger:    logger,
	})

	ctx := context.Background()
	s := session.New(uuid.NewString(), time.Now())

	if loc, ok := locatorFromFlags(passedFlags(flag.CommandLine), *lat, *lon, *geoErr); ok {
		var c geo.Confirmer = geo.KeepResolved{}
		if *confirm {
			c = geo.PromptConfirmer{In: os.Stdin, Out: os.Stderr}
		}
		// collector failures are already reported as events
		_, _ = orch.RequestLocation(ctx, s, loc, c)
	}

	if *withPlaylist {
		_, _ = orch.FetchPlaylist(ctx, s)
	}

	if paths := flag.Args(); len(paths) > 0 {
		orch.UploadPhotos(ctx, s, photoFiles(paths))
	}

	orch.SetIdea(s, *idea)

	res, err := orch.Generate(ctx, s)
	if err != nil {
		fmt.Println(story.FailureText(err))
		os.Exit(1)
	}
	fmt.Println("Your Story")
	fmt.Println(strings.Join(story.Paragraphs(res.Text), "\n"))

	if !*save {
		return
	}
	if _, err := orch.Save(ctx, s); err != nil {
		fmt.Fprintln(os.Stderr, story.FailureText(err))
		os.Exit(1)
	}
	list, _ := orch.Stories(ctx, s)
	for _, saved := range list {
		fmt.Printf("\n%s\n%s\n", saved.Timestamp, saved.Text)
	}
}

func photoFiles(paths []string) []photos.File {
	files := make([]photos.File, len(paths))
	for i, p := range paths {
		files[i] = photos.File{
			Name: filepath.Base(p),
			Open: func() (io.ReadCloser, error) { return os.Open(p) },
		}
	}
	return files
}
