package geo

import (
	"context"
	"time"

	logx "github.com/blueplan/diary-go/internal/diary/log"
	"github.com/blueplan/diary-go/internal/diary/types"
)

// LocationSink is the session cell the resolver owns.
type LocationSink interface {
	SetLocation(types.LocationInfo)
}

const (
	StatusReportOK     = "Location sent successfully!"
	StatusReportFailed = "Failed to send location."
)

// Resolution describes one finished resolve.
type Resolution struct {
	Location     types.LocationInfo
	Status       string
	ReportStatus string
	// GeocodeErr is set when the name fell back to raw coordinates.
	GeocodeErr error
}

// Resolver runs the location pipeline. Reporter and Geocoder are optional.
type Resolver struct {
	Geocoder      Geocoder
	Reporter      Reporter
	Options       Options
	ReportTimeout time.Duration
	Logger        *logx.Logger
}

func NewResolver(g Geocoder, r Reporter, logger *logx.Logger) *Resolver {
	return &Resolver{
		Geocoder:      g,
		Reporter:      r,
		Options:       DefaultOptions,
		ReportTimeout: 10 * time.Second,
		Logger:        logger,
	}
}

// Resolve locates the device, names the place and writes it to sink. On a
// locate failure the sink is left untouched and the typed error returned.
func (r *Resolver) Resolve(ctx context.Context, l Locator, c Confirmer, sink LocationSink) (Resolution, error) {
	logger := r.logger()

	coords, err := locate(ctx, l, r.Options)
	if err != nil {
		kind := types.KindOf(err)
		logger.Warn(ctx, "获取位置失败", logx.KV("kind", kind), logx.KV("error", err))
		return Resolution{Status: types.UserMessage(kind)}, err
	}

	// report runs on its own; resolution does not wait on it until the
	// location is already written
	reported := r.report(ctx, coords)

	res := Resolution{}
	name := coords.String()
	if r.Geocoder != nil {
		resolved, gerr := r.Geocoder.Reverse(ctx, coords.Latitude, coords.Longitude)
		if gerr != nil {
			res.GeocodeErr = types.NewError(types.KindReverseGeocodeFailed, "geo.reverse", gerr)
			logger.Warn(ctx, "逆地理编码失败，使用坐标", logx.KV("error", gerr))
		} else {
			if c == nil {
				c = KeepResolved{}
			}
			name, _ = c.Confirm(ctx, resolved)
		}
	}

	res.Location = types.LocationInfo{Raw: coords, ResolvedName: name}
	sink.SetLocation(res.Location)
	res.Status = "Location set to: " + name

	if reported != nil {
		select {
		case res.ReportStatus = <-reported:
		case <-ctx.Done():
		}
	}
	logger.Info(ctx, "位置已设置", logx.KV("location", name), logx.KV("report", res.ReportStatus))
	return res, nil
}

func (r *Resolver) report(ctx context.Context, coords types.Coordinates) <-chan string {
	if r.Reporter == nil {
		return nil
	}
	out := make(chan string, 1)
	rctx := context.WithoutCancel(ctx)
	timeout := r.ReportTimeout
	go func() {
		if timeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(rctx, timeout)
			defer cancel()
		}
		if _, err := r.Reporter.Report(rctx, coords); err != nil {
			r.logger().Warn(rctx, "位置上报失败", logx.KV("error", err))
			out <- StatusReportFailed
			return
		}
		out <- StatusReportOK
	}()
	return out
}

func (r *Resolver) logger() *logx.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logx.GetLogger()
}
