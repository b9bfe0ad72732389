package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the pipeline can surface.
type ErrorKind string

const (
	KindPermissionDenied     ErrorKind = "permission_denied"
	KindPositionUnavailable  ErrorKind = "position_unavailable"
	KindTimeout              ErrorKind = "timeout"
	KindGeoUnknown           ErrorKind = "geo_unknown"
	KindReverseGeocodeFailed ErrorKind = "reverse_geocode_failed"
	KindPlaylistFetchFailed  ErrorKind = "playlist_fetch_failed"
	KindDecodeFailed         ErrorKind = "decode_failed"
	KindDescribeFailed       ErrorKind = "describe_failed"
	KindEmptyContext         ErrorKind = "empty_context"
	KindRequestFailed        ErrorKind = "request_failed"
	KindNoCandidate          ErrorKind = "no_candidate"
	KindGenerationBusy       ErrorKind = "generation_busy"
	KindNothingToSave        ErrorKind = "nothing_to_save"
	KindSessionNotFound      ErrorKind = "session_not_found"
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the Err* sentinels below work
// with errors.Is regardless of Op and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds a classified error.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error with a formatted cause.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

var (
	ErrPermissionDenied     = &Error{Kind: KindPermissionDenied}
	ErrPositionUnavailable  = &Error{Kind: KindPositionUnavailable}
	ErrTimeout              = &Error{Kind: KindTimeout}
	ErrGeoUnknown           = &Error{Kind: KindGeoUnknown}
	ErrReverseGeocodeFailed = &Error{Kind: KindReverseGeocodeFailed}
	ErrPlaylistFetchFailed  = &Error{Kind: KindPlaylistFetchFailed}
	ErrDecodeFailed         = &Error{Kind: KindDecodeFailed}
	ErrDescribeFailed       = &Error{Kind: KindDescribeFailed}
	ErrEmptyContext         = &Error{Kind: KindEmptyContext}
	ErrRequestFailed        = &Error{Kind: KindRequestFailed}
	ErrNoCandidate          = &Error{Kind: KindNoCandidate}
	ErrGenerationBusy       = &Error{Kind: KindGenerationBusy}
	ErrNothingToSave        = &Error{Kind: KindNothingToSave}
	ErrSessionNotFound      = &Error{Kind: KindSessionNotFound}
)

// KindOf returns the kind of err, or "" when err is not classified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage is the text shown to the user for a failure kind.
func UserMessage(kind ErrorKind) string {
	switch kind {
	case KindPermissionDenied:
		return "Location permission denied. Please allow access."
	case KindPositionUnavailable:
		return "Location unavailable. Try again in a clear area."
	case KindTimeout:
		return "Location request timed out. Try again."
	case KindGeoUnknown:
		return "Unable to get location."
	case KindReverseGeocodeFailed:
		return "Could not look up a place name, using coordinates."
	case KindPlaylistFetchFailed:
		return "Error fetching playlist."
	case KindDecodeFailed:
		return "Could not read photo."
	case KindDescribeFailed:
		return "Could not recognize photo."
	case KindEmptyContext:
		return "Please provide location, playlist, photo, or write a story idea."
	case KindRequestFailed:
		return "Failed to generate story"
	case KindNoCandidate:
		return "No story generated"
	case KindGenerationBusy:
		return "A story is already being generated."
	case KindNothingToSave:
		return "Generate a story before saving."
	case KindSessionNotFound:
		return "Session not found."
	default:
		return "Something went wrong."
	}
}
