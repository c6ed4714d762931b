package dropzone

import (
	"context"
	"testing"

	"github.com/JonMunkholm/dropzone/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type imageRecorder struct {
	files   []core.FileHandle
	channel string
	ok      bool
}

func (r *imageRecorder) ProcessImage(ctx context.Context, f core.FileHandle) bool {
	r.channel = core.ChannelFromContext(ctx)
	r.files = append(r.files, f)
	return r.ok
}

func TestPasteHandler_ImageAndText(t *testing.T) {
	rec := &imageRecorder{ok: true}
	h := NewPasteHandler(rec)

	out := h.HandlePaste(context.Background(), []ClipboardItem{
		{Type: "image/png", Size: 3, Source: core.BytesSource("png")},
		{Type: "text/plain", Size: 5, Source: core.BytesSource("hello")},
	})

	assert.Equal(t, PasteOutcome{Items: 2, Images: 1, Succeeded: 1, PreventDefault: true}, out)
	require.Len(t, rec.files, 1)
	assert.Equal(t, "pasted-image.png", rec.files[0].Name)
	assert.Equal(t, "image/png", rec.files[0].MediaType)
	assert.Equal(t, core.ChannelPaste, rec.channel)
}

func TestPasteHandler_TextOnlyKeepsDefault(t *testing.T) {
	rec := &imageRecorder{ok: true}
	out := NewPasteHandler(rec).HandlePaste(context.Background(), []ClipboardItem{
		{Type: "text/plain"},
		{Type: "text/html"},
	})

	assert.False(t, out.PreventDefault)
	assert.Zero(t, out.Images)
	assert.Empty(t, rec.files)
}

func TestPasteHandler_FailedImageStillSuppressesDefault(t *testing.T) {
	rec := &imageRecorder{ok: false}
	out := NewPasteHandler(rec).HandlePaste(context.Background(), []ClipboardItem{
		{Type: "image/jpeg", Name: "holiday.jpg"},
		{Type: "image/gif"},
	})

	assert.True(t, out.PreventDefault)
	assert.Equal(t, 2, out.Images)
	assert.Zero(t, out.Succeeded)
	require.Len(t, rec.files, 2)
	assert.Equal(t, "holiday.jpg", rec.files[0].Name)
	assert.Equal(t, "pasted-image.gif", rec.files[1].Name)
}

func TestClipboardItem_File(t *testing.T) {
	tests := []struct {
		item ClipboardItem
		want string
	}{
		{ClipboardItem{Type: "image/webp"}, "pasted-image.webp"},
		{ClipboardItem{Type: "IMAGE/JPEG; q=1"}, "pasted-image.jpeg"},
		{ClipboardItem{Type: "image/"}, "pasted-image.bin"},
		{ClipboardItem{Type: "image/png", Name: " shot.png "}, "shot.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.item.File().Name, "type %q", tt.item.Type)
	}
}

func TestPasteHandler_RealPipeline(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	var results []core.Result
	p, err := core.NewPipeline(core.Options{
		Uploader: uploaderFunc(func(context.Context, core.FileHandle) (core.UploadReceipt, error) {
			t.Fatal("paste never uploads")
			return core.UploadReceipt{}, nil
		}),
		Emitter: core.EmitterFunc(func(_ context.Context, r core.Result) { results = append(results, r) }),
	})
	require.NoError(t, err)

	out := NewPasteHandler(p).HandlePaste(context.Background(), []ClipboardItem{
		{Type: "image/png", Size: int64(len(png)), Source: core.BytesSource(png)},
		{Type: "text/plain", Source: core.BytesSource("caption")},
	})

	assert.True(t, out.PreventDefault)
	assert.Equal(t, 1, out.Succeeded)
	require.Len(t, results, 1)
	img, ok := results[0].(core.ImageResult)
	require.True(t, ok)
	assert.Equal(t, "pasted-image.png", img.Filename)
	assert.Equal(t, "image/png", img.MediaType)
}
