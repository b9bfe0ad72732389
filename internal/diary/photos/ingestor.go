package photos

import (
	"context"
	"sync/atomic"

	logx "github.com/blueplan/diary-go/internal/diary/log"
	"github.com/blueplan/diary-go/internal/diary/types"
	"golang.org/x/sync/errgroup"
)

const StatusUploaded = "Photo(s) uploaded successfully and recognition started!"

// PhotoSink is the session cell the ingestor owns.
type PhotoSink interface {
	SetPhotos([]types.PhotoRecord)
}

// Ingestor fans a batch out to the encoder and descriptor.
type Ingestor struct {
	Encoder        Encoder
	Descriptor     Descriptor
	MaxConcurrency int
	MaxUploadBytes int64
	Logger         *logx.Logger

	// OnSettled observes each file as it settles, in settlement order. It
	// may be called from several goroutines at once.
	OnSettled func(index int, rec types.PhotoRecord, err error)
	// OnBatch fires exactly once per Ingest, after every file settled, with
	// the records in selection order.
	OnBatch func(records []types.PhotoRecord)
}

func NewIngestor(enc Encoder, d Descriptor, maxConcurrency int, logger *logx.Logger) *Ingestor {
	return &Ingestor{Encoder: enc, Descriptor: d, MaxConcurrency: maxConcurrency, Logger: logger}
}

// Ingest processes files concurrently and returns one record per file in
// the original order. A failed file still yields a record, with empty tags.
// The sink is replaced with the whole batch once the last file settles; an
// empty selection leaves it alone.
func (in *Ingestor) Ingest(ctx context.Context, files []File, sink PhotoSink) []types.PhotoRecord {
	n := len(files)
	if n == 0 {
		return nil
	}
	logger := in.logger()

	records := make([]types.PhotoRecord, n)
	var settled atomic.Int32

	var g errgroup.Group
	if in.MaxConcurrency > 0 {
		g.SetLimit(in.MaxConcurrency)
	}
	for i, f := range files {
		g.Go(func() error {
			rec, err := in.ingestOne(ctx, f)
			records[i] = rec
			if err != nil {
				logger.Warn(ctx, "照片处理失败", logx.KV("file", f.Name), logx.KV("kind", types.KindOf(err)), logx.KV("error", err))
			}
			if in.OnSettled != nil {
				in.OnSettled(i, rec, err)
			}
			// barrier: the last settlement publishes the batch
			if int(settled.Add(1)) == n {
				batch := copyBatch(records)
				if sink != nil {
					sink.SetPhotos(batch)
				}
				if in.OnBatch != nil {
					in.OnBatch(batch)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info(ctx, "照片批次完成", logx.KV("count", n))
	return copyBatch(records)
}

func (in *Ingestor) ingestOne(ctx context.Context, f File) (types.PhotoRecord, error) {
	rec := types.PhotoRecord{FileName: f.Name, Tags: []string{}}

	data, err := f.read(in.MaxUploadBytes)
	if err != nil {
		return rec, types.NewError(types.KindDecodeFailed, "photos.read", err)
	}
	encoded, err := in.Encoder.Encode(data)
	if err != nil {
		return rec, err
	}
	rec.EncodedImage = encoded

	if in.Descriptor == nil {
		return rec, nil
	}
	tags, err := in.Descriptor.Describe(ctx, encoded)
	if err != nil {
		if types.KindOf(err) == "" {
			err = types.NewError(types.KindDescribeFailed, "photos.describe", err)
		}
		return rec, err
	}
	if tags != nil {
		rec.Tags = tags
	}
	return rec, nil
}

func (in *Ingestor) logger() *logx.Logger {
	if in.Logger != nil {
		return in.Logger
	}
	return logx.GetLogger()
}

func copyBatch(in []types.PhotoRecord) []types.PhotoRecord {
	out := make([]types.PhotoRecord, len(in))
	for i, r := range in {
		out[i] = r
		out[i].Tags = append([]string{}, r.Tags...)
	}
	return out
}
