package contextx

import (
	"context"
	"testing"
)

func TestRequestAndSessionIDs(t *testing.T) {
	ctx := WithSessionID(WithRequestID(context.Background(), "req-1"), "sess-1")

	if got, ok := GetRequestID(ctx); !ok || got != "req-1" {
		t.Fatalf("GetRequestID: got=%q ok=%v", got, ok)
	}
	if got, ok := GetSessionID(ctx); !ok || got != "sess-1" {
		t.Fatalf("GetSessionID: got=%q ok=%v", got, ok)
	}
	if _, ok := GetRequestID(context.Background()); ok {
		t.Fatalf("GetRequestID on empty context should report false")
	}
}
