package notify

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{Loading("Preparing receipt..."), false},
		{Success("Shared successfully!", ShortDuration), true},
		{Error("Failed to generate image.", LongDuration), true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%v.Terminal() = %v, want %v", tt.status.Kind, got, tt.want)
		}
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	if _, ok := r.Last(); ok {
		t.Error("Last() on empty recorder should report false")
	}

	ctx := context.Background()
	r.Notify(ctx, Loading("Preparing receipt..."))
	r.Notify(ctx, Success("Image downloaded successfully!", ShortDuration))

	got := r.Statuses()
	if len(got) != 2 {
		t.Fatalf("len(Statuses()) = %d, want 2", len(got))
	}
	last, ok := r.Last()
	if !ok || last.Kind != KindSuccess {
		t.Errorf("Last() = %v, %v, want success", last, ok)
	}

	got[0].Message = "mutated"
	if r.Statuses()[0].Message == "mutated" {
		t.Error("Statuses() should return a copy")
	}
}

func TestMulti(t *testing.T) {
	var a, b Recorder
	n := Multi(&a, nil, &b)
	n.Notify(context.Background(), Loading("Generating image..."))

	if len(a.Statuses()) != 1 || len(b.Statuses()) != 1 {
		t.Errorf("Multi should deliver to every notifier, got %d and %d",
			len(a.Statuses()), len(b.Statuses()))
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	l := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	n := NewLogNotifier(l)

	ctx := context.Background()
	n.Notify(ctx, Loading("Processing download..."))
	n.Notify(ctx, Error("Couldn't deliver the image.", LongDuration))

	out := buf.String()
	for _, want := range []string{"Processing download...", "Couldn't deliver the image."} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestDiscard(t *testing.T) {
	Discard.Notify(context.Background(), Loading("x"))
}
