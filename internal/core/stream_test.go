package core

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestResultStream_FanOut(t *testing.T) {
	s := NewResultStream(4)
	defer s.Close()

	a, cancelA := s.Subscribe()
	defer cancelA()
	b, cancelB := s.Subscribe()
	defer cancelB()
	assert.Equal(t, 2, s.Subscribers())

	ctx := context.Background()
	s.Emit(ctx, ImageResult{Filename: "a.png", MediaType: "image/png"})
	s.Notify(ctx, Notice{Filename: "x.xyz", Message: UserMessage{Code: "FILE001"}})

	for _, ch := range []<-chan Event{a, b} {
		ev := receive(t, ch)
		assert.Equal(t, EventResult, ev.Kind)
		assert.Equal(t, "a.png", ev.Result.FileName())

		ev = receive(t, ch)
		assert.Equal(t, EventNotice, ev.Kind)
		assert.Equal(t, "FILE001", ev.Notice.Message.Code)
	}
}

func TestResultStream_CancelDetaches(t *testing.T) {
	s := NewResultStream(1)
	defer s.Close()

	_, cancel := s.Subscribe()
	cancel()
	cancel()
	assert.Equal(t, 0, s.Subscribers())

	// Nobody is listening; publishing must not block.
	done := make(chan struct{})
	go func() {
		s.Emit(context.Background(), PDFResult{Filename: "a.pdf"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked with no subscribers")
	}
}

func TestResultStream_EvictsStalledSubscriber(t *testing.T) {
	s := NewResultStream(1)
	defer s.Close()

	stalled, cancelStalled := s.Subscribe()
	defer cancelStalled()
	live, cancelLive := s.Subscribe()
	defer cancelLive()

	ctx := context.Background()
	s.Emit(ctx, ImageResult{Filename: "1.png"})
	assert.Equal(t, "1.png", receive(t, live).Result.FileName())

	done := make(chan struct{})
	go func() {
		s.Emit(ctx, ImageResult{Filename: "2.png"})
		s.Emit(ctx, ImageResult{Filename: "3.png"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a subscriber that stopped reading")
	}

	assert.Equal(t, "2.png", receive(t, live).Result.FileName())
	assert.Equal(t, "3.png", receive(t, live).Result.FileName())
	assert.Equal(t, 1, s.Subscribers())
	assert.Equal(t, uint64(1), s.Evicted())

	// The evicted subscriber drains what it had buffered, then sees close.
	assert.Equal(t, "1.png", receive(t, stalled).Result.FileName())
	_, ok := <-stalled
	assert.False(t, ok)
}

func TestResultStream_StalledSubscriberDoesNotBlockPipeline(t *testing.T) {
	s := NewResultStream(1)
	_, cancel := s.Subscribe()
	defer cancel()

	p, err := NewPipeline(Options{Uploader: &fakeUploader{}, Emitter: s, Notifier: s})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, name := range []string{"a.png", "b.png", "c.png"} {
			p.Process(context.Background(), NewBytesFile(name, "image/png", pngHeader))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline stalled behind a subscriber that never reads")
	}

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked")
	}
}

func TestResultStream_Close(t *testing.T) {
	s := NewResultStream(1)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Close()
	s.Close()

	_, ok := <-ch
	assert.False(t, ok, "channel closed on Close")

	late, _ := s.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed stream yields a closed channel")

	s.Emit(context.Background(), ImageResult{})
}

func TestEvent_MarshalJSON(t *testing.T) {
	ev := Event{
		Kind:   EventResult,
		At:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Result: PDFResult{Filename: "a.pdf", MediaType: MediaTypePDF, SavedPath: "/u/a.pdf"},
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "result", out["kind"])
	assert.Equal(t, "pdf", out["category"])
	result := out["result"].(map[string]any)
	assert.Equal(t, "/u/a.pdf", result["saved_path"])

	n := Event{Kind: EventNotice, Notice: &Notice{Filename: "x", Category: CategoryImage, Message: UserMessage{Code: "FILE002"}}}
	data, err = json.Marshal(n)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "notice", out["kind"])
	assert.Equal(t, "image", out["category"])
	notice := out["notice"].(map[string]any)
	assert.Equal(t, "FILE002", notice["message"].(map[string]any)["code"])
}

func TestTee(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	tee := Tee{Emitters: []Emitter{a, b}, Notifiers: []Notifier{a}}

	tee.Emit(context.Background(), DocumentResult{Filename: "d.txt"})
	tee.Notify(context.Background(), Notice{Filename: "n"})

	assert.Len(t, a.results, 1)
	assert.Len(t, b.results, 1)
	assert.Len(t, a.notices, 1)
	assert.Empty(t, b.notices)
}
