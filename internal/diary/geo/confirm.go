package geo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Confirmer lets the user accept or override the resolved name. It returns
// the final name and whether the user changed it; an empty or cancelled
// answer keeps resolved.
type Confirmer interface {
	Confirm(ctx context.Context, resolved string) (string, bool)
}

// KeepResolved accepts the geocoder's answer as is.
type KeepResolved struct{}

func (KeepResolved) Confirm(_ context.Context, resolved string) (string, bool) {
	return resolved, false
}

// FixedConfirmer applies an override supplied up front, e.g. in a request body.
type FixedConfirmer struct {
	Value string
}

func (c FixedConfirmer) Confirm(_ context.Context, resolved string) (string, bool) {
	return override(resolved, c.Value)
}

// PromptConfirmer asks on Out and reads one line from In.
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (c PromptConfirmer) Confirm(ctx context.Context, resolved string) (string, bool) {
	if c.Out != nil {
		fmt.Fprintf(c.Out, "Is this your correct location?\n%s\nIf not, enter manually: ", resolved)
	}
	if c.In == nil {
		return resolved, false
	}

	line := make(chan string, 1)
	go func() {
		s, _ := bufio.NewReader(c.In).ReadString('\n')
		line <- s
	}()
	select {
	case s := <-line:
		return override(resolved, s)
	case <-ctx.Done():
		return resolved, false
	}
}

func override(resolved, answer string) (string, bool) {
	answer = strings.TrimSpace(answer)
	if answer == "" || answer == resolved {
		return resolved, false
	}
	return answer, true
}
