package dropzone

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/JonMunkholm/dropzone/internal/core"
)

// Overlay is the visual drop target shown while files are dragged over the page.
// Methods are called with the tracker's lock held and must not call back into it.
type Overlay interface {
	Show()
	Hide()
}

// OverlayFuncs adapts a pair of functions to Overlay. Nil fields are skipped.
type OverlayFuncs struct {
	OnShow func()
	OnHide func()
}

func (o OverlayFuncs) Show() {
	if o.OnShow != nil {
		o.OnShow()
	}
}

func (o OverlayFuncs) Hide() {
	if o.OnHide != nil {
		o.OnHide()
	}
}

// BatchRunner processes a group of dropped files. *core.Batch implements it.
type BatchRunner interface {
	ProcessAll(ctx context.Context, files []core.FileHandle) core.BatchReport
}

// EventType is a browser drag event name.
type EventType string

const (
	EventDragEnter EventType = "dragenter"
	EventDragOver  EventType = "dragover"
	EventDragLeave EventType = "dragleave"
	EventDrop      EventType = "drop"
)

// ParseEventType validates a drag event name.
func ParseEventType(s string) (EventType, error) {
	switch ev := EventType(strings.ToLower(strings.TrimSpace(s))); ev {
	case EventDragEnter, EventDragOver, EventDragLeave, EventDrop:
		return ev, nil
	default:
		return "", fmt.Errorf("unknown drag event %q", s)
	}
}

// Feedback tells the page what to do after an event.
type Feedback struct {
	Overlay        bool `json:"overlay"`
	Depth          int  `json:"depth"`
	PreventDefault bool `json:"prevent_default"`
}

// Tracker is the drag-and-drop state machine for one page.
//
// Nested elements re-fire dragenter and dragleave as the pointer moves, so
// the tracker counts them: the overlay is shown on the 0->1 edge and hidden
// when the count returns to zero. The count is never negative and can only
// change through the event methods.
type Tracker struct {
	runner  BatchRunner
	overlay Overlay

	mu      sync.Mutex
	depth   int
	visible bool
}

// NewTracker creates a tracker feeding drops to runner. overlay may be nil.
func NewTracker(runner BatchRunner, overlay Overlay) *Tracker {
	if overlay == nil {
		overlay = OverlayFuncs{}
	}
	return &Tracker{runner: runner, overlay: overlay}
}

// Enter records a dragenter.
func (t *Tracker) Enter() Feedback {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.depth++
	if t.depth == 1 && !t.visible {
		t.visible = true
		t.overlay.Show()
	}
	return t.feedbackLocked()
}

// Over records a dragover. It changes nothing but the browser default must
// still be prevented for the drop to be delivered.
func (t *Tracker) Over() Feedback {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.feedbackLocked()
}

// Leave records a dragleave. Extra leaves at zero are ignored.
func (t *Tracker) Leave() Feedback {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.depth > 0 {
		t.depth--
	}
	if t.depth == 0 && t.visible {
		t.visible = false
		t.overlay.Hide()
	}
	return t.feedbackLocked()
}

// Reset clears the drag state and hides the overlay unconditionally.
func (t *Tracker) Reset() Feedback {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.depth = 0
	t.visible = false
	t.overlay.Hide()
	return t.feedbackLocked()
}

// Drop resets the drag state, then processes every file and waits for all
// of them. A failed file does not stop the rest.
func (t *Tracker) Drop(ctx context.Context, files []core.FileHandle) core.BatchReport {
	t.Reset()
	return t.runner.ProcessAll(core.ContextWithChannel(ctx, core.ChannelDrop), files)
}

// Handle dispatches a relayed browser event. A drop event only resets the
// state; the dropped files arrive separately through Drop.
func (t *Tracker) Handle(ev EventType) (Feedback, error) {
	switch ev {
	case EventDragEnter:
		return t.Enter(), nil
	case EventDragOver:
		return t.Over(), nil
	case EventDragLeave:
		return t.Leave(), nil
	case EventDrop:
		return t.Reset(), nil
	default:
		return Feedback{}, fmt.Errorf("unknown drag event %q", ev)
	}
}

// Depth returns the current nesting count.
func (t *Tracker) Depth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.depth
}

// Visible reports whether the overlay is shown.
func (t *Tracker) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

func (t *Tracker) feedbackLocked() Feedback {
	return Feedback{Overlay: t.visible, Depth: t.depth, PreventDefault: true}
}
