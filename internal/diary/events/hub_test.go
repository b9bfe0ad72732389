package events

import "testing"

func TestHubDeliversPerSession(t *testing.T) {
	h := NewHub(4)
	a, cancelA := h.Subscribe("a")
	defer cancelA()
	b, cancelB := h.Subscribe("b")
	defer cancelB()

	h.Publish("a", StreamEvent{Type: Status, Content: ContentPlaylist, Message: "Fetched 3 songs from your playlist"})

	select {
	case ev := <-a:
		if ev.Message != "Fetched 3 songs from your playlist" || ev.Timestamp.IsZero() {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatalf("session a did not receive its event")
	}
	select {
	case ev := <-b:
		t.Fatalf("session b received a foreign event: %+v", ev)
	default:
	}
}

func TestHubDropsWhenFullAndCancelCloses(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe("s")
	h.Publish("s", StreamEvent{Message: "one"})
	h.Publish("s", StreamEvent{Message: "two"})

	if ev := <-ch; ev.Message != "one" {
		t.Fatalf("first event: got=%q", ev.Message)
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after cancel")
	}
	if n := h.Subscribers("s"); n != 0 {
		t.Fatalf("subscribers after cancel: got=%d", n)
	}
}
