// Package geo resolves the user's physical location into a readable place
// name: device fix, fire-and-forget report to the server, reverse geocoding
// and an optional user confirmation.
package geo

import (
	"context"
	"errors"
	"time"

	"github.com/blueplan/diary-go/internal/diary/types"
)

// Options mirrors the device positioning options.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// DefaultOptions asks for a fresh, high accuracy fix within ten seconds.
var DefaultOptions = Options{HighAccuracy: true, Timeout: 10 * time.Second}

// Locator produces a device position fix.
type Locator interface {
	Locate(ctx context.Context, opts Options) (types.Coordinates, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context, opts Options) (types.Coordinates, error)

func (f LocatorFunc) Locate(ctx context.Context, opts Options) (types.Coordinates, error) {
	return f(ctx, opts)
}

// StaticLocator returns coordinates the device already reported.
type StaticLocator struct {
	Coords types.Coordinates
}

func (l StaticLocator) Locate(ctx context.Context, _ Options) (types.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return types.Coordinates{}, err
	}
	return l.Coords, nil
}

// Device error codes as reported by browser geolocation.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// KindForCode maps a device error code to an error kind.
func KindForCode(code int) types.ErrorKind {
	switch code {
	case CodePermissionDenied:
		return types.KindPermissionDenied
	case CodePositionUnavailable:
		return types.KindPositionUnavailable
	case CodeTimeout:
		return types.KindTimeout
	default:
		return types.KindGeoUnknown
	}
}

// FailingLocator replays a device-side failure.
type FailingLocator struct {
	Kind types.ErrorKind
}

// FailingLocatorFromCode builds a FailingLocator from a device error code.
func FailingLocatorFromCode(code int) FailingLocator {
	return FailingLocator{Kind: KindForCode(code)}
}

func (l FailingLocator) Locate(context.Context, Options) (types.Coordinates, error) {
	kind := l.Kind
	if kind == "" {
		kind = types.KindGeoUnknown
	}
	return types.Coordinates{}, types.NewError(kind, "geo.locate", nil)
}

// locate runs the locator under opts.Timeout. A locator that ignores ctx
// still loses the race against the deadline.
func locate(ctx context.Context, l Locator, opts Options) (types.Coordinates, error) {
	if l == nil {
		return types.Coordinates{}, types.Errorf(types.KindGeoUnknown, "geo.locate", "no locator available")
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	type fix struct {
		coords types.Coordinates
		err    error
	}
	done := make(chan fix, 1)
	go func() {
		c, err := l.Locate(ctx, opts)
		done <- fix{c, err}
	}()

	select {
	case f := <-done:
		if f.err != nil {
			return types.Coordinates{}, classify(f.err)
		}
		return f.coords, nil
	case <-ctx.Done():
		return types.Coordinates{}, classify(ctx.Err())
	}
}

func classify(err error) error {
	if types.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.KindTimeout, "geo.locate", err)
	}
	return types.NewError(types.KindGeoUnknown, "geo.locate", err)
}
