package dropzone

import (
	"context"
	"strings"

	"github.com/JonMunkholm/dropzone/internal/core"
)

// ClipboardItem is one entry of a paste event.
type ClipboardItem struct {
	Type   string // Item media type, e.g. "image/png" or "text/plain"
	Name   string // Filename if the item is a file; often empty for screenshots
	Size   int64
	Source core.Source
}

// IsImage reports whether the item is an image.
func (i ClipboardItem) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(i.Type)), "image/")
}

// File converts the item to a FileHandle. Unnamed images get a name derived
// from their subtype, e.g. "pasted-image.png".
func (i ClipboardItem) File() core.FileHandle {
	name := strings.TrimSpace(i.Name)
	if name == "" {
		mt, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(i.Type)), ";")
		subtype := strings.TrimPrefix(mt, "image/")
		if subtype == "" || subtype == mt {
			subtype = "bin"
		}
		name = "pasted-image." + subtype
	}
	return core.FileHandle{
		Name:      name,
		MediaType: i.Type,
		Size:      i.Size,
		Source:    i.Source,
	}
}

// ImageProcessor runs a file through the image pipeline. *core.Pipeline implements it.
type ImageProcessor interface {
	ProcessImage(ctx context.Context, file core.FileHandle) bool
}

// PasteOutcome reports what a paste did.
type PasteOutcome struct {
	Items          int  `json:"items"`
	Images         int  `json:"images"`
	Succeeded      int  `json:"succeeded"`
	PreventDefault bool `json:"prevent_default"`
}

// PasteHandler extracts images from clipboard pastes.
type PasteHandler struct {
	images ImageProcessor
}

// NewPasteHandler creates a PasteHandler sending images to p.
func NewPasteHandler(p ImageProcessor) *PasteHandler {
	return &PasteHandler{images: p}
}

// HandlePaste sends every image item through the image pipeline, one at a
// time in item order. Non-image items are left alone; the default paste is
// suppressed only when at least one image was found.
func (h *PasteHandler) HandlePaste(ctx context.Context, items []ClipboardItem) PasteOutcome {
	ctx = core.ContextWithChannel(ctx, core.ChannelPaste)
	out := PasteOutcome{Items: len(items)}

	for _, item := range items {
		if !item.IsImage() {
			continue
		}
		out.Images++
		if h.images.ProcessImage(ctx, item.File()) {
			out.Succeeded++
		}
	}

	out.PreventDefault = out.Images > 0
	return out
}
