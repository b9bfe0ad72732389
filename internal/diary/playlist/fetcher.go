// Package playlist pulls a short list of recently played songs from a
// playlist backend.
package playlist

import (
	"context"
	"fmt"

	logx "github.com/blueplan/diary-go/internal/diary/log"
	"github.com/blueplan/diary-go/internal/diary/types"
)

// PageSize is the most tracks a single fetch keeps.
const PageSize = 10

const StatusNoTracks = "No songs found in playlist."

// Source returns tracks in backend order.
type Source interface {
	Tracks(ctx context.Context) ([]types.TrackRef, error)
}

// TrackSink is the session cell the fetcher owns.
type TrackSink interface {
	SetTracks([]types.TrackRef)
}

type Result struct {
	Tracks   []types.TrackRef
	NoTracks bool
	Status   string
}

type Fetcher struct {
	Source Source
	Logger *logx.Logger
}

func NewFetcher(src Source, logger *logx.Logger) *Fetcher {
	return &Fetcher{Source: src, Logger: logger}
}

// Fetch makes exactly one request. On failure the sink keeps whatever it
// held; on success it is replaced wholesale, with an empty list when the
// playlist has no tracks.
func (f *Fetcher) Fetch(ctx context.Context, sink TrackSink) (Result, error) {
	logger := f.Logger
	if logger == nil {
		logger = logx.GetLogger()
	}
	if f.Source == nil {
		err := types.Errorf(types.KindPlaylistFetchFailed, "playlist.fetch", "no playlist source configured")
		return Result{Status: types.UserMessage(types.KindPlaylistFetchFailed)}, err
	}

	tracks, err := f.Source.Tracks(ctx)
	if err != nil {
		logger.Warn(ctx, "获取歌单失败", logx.KV("error", err))
		if types.KindOf(err) != types.KindPlaylistFetchFailed {
			err = types.NewError(types.KindPlaylistFetchFailed, "playlist.fetch", err)
		}
		return Result{Status: types.UserMessage(types.KindPlaylistFetchFailed)}, err
	}

	if len(tracks) > PageSize {
		tracks = tracks[:PageSize]
	}
	out := append([]types.TrackRef{}, tracks...)
	sink.SetTracks(out)

	if len(out) == 0 {
		logger.Info(ctx, "歌单为空")
		return Result{Tracks: out, NoTracks: true, Status: StatusNoTracks}, nil
	}
	logger.Info(ctx, "歌单获取成功", logx.KV("count", len(out)))
	return Result{Tracks: out, Status: fmt.Sprintf("Fetched %d songs from your playlist", len(out))}, nil
}
