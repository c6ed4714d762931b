package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects everything the pipeline publishes.
type recorder struct {
	mu      sync.Mutex
	results []Result
	notices []Notice
}

func (r *recorder) Emit(_ context.Context, res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

type fakeUploader struct {
	mu    sync.Mutex
	calls []string
	path  string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, file FileHandle) (UploadReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, file.Name)
	if f.err != nil {
		return UploadReceipt{}, f.err
	}
	return UploadReceipt{Path: f.path + file.Name}, nil
}

type countingEncoder struct {
	mu    sync.Mutex
	calls int
	err   error
	inner *Encoder
}

func (c *countingEncoder) Encode(ctx context.Context, file FileHandle) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	return c.inner.Encode(ctx, file)
}

type fixture struct {
	pipeline *Pipeline
	rec      *recorder
	uploader *fakeUploader
	encoder  *countingEncoder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		rec:      &recorder{},
		uploader: &fakeUploader{path: "/uploads/"},
		encoder:  &countingEncoder{inner: NewEncoder()},
	}
	p, err := NewPipeline(Options{
		Uploader: f.uploader,
		Encoder:  f.encoder,
		Emitter:  f.rec,
		Notifier: f.rec,
	})
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func TestPipeline_Image(t *testing.T) {
	f := newFixture(t)

	ok := f.pipeline.Process(context.Background(), NewBytesFile("shot.png", "image/png", pngHeader))
	require.True(t, ok)

	require.Len(t, f.rec.results, 1)
	img, isImage := f.rec.results[0].(ImageResult)
	require.True(t, isImage, "got %T", f.rec.results[0])
	assert.Equal(t, "image/png", img.MediaType)
	assert.Equal(t, "shot.png", img.Filename)
	assert.Equal(t, int64(len(pngHeader)), img.Size)
	assert.NotContains(t, img.Payload, "data:")
	assert.Empty(t, f.uploader.calls, "images are never uploaded")
	assert.Empty(t, f.rec.notices)
}

func TestPipeline_OversizedImage(t *testing.T) {
	f := newFixture(t)
	file := FileHandle{Name: "big.png", MediaType: "image/png", Size: 6_000_000, Source: BytesSource(pngHeader)}

	ok := f.pipeline.Process(context.Background(), file)
	assert.False(t, ok)

	assert.Empty(t, f.rec.results)
	require.Len(t, f.rec.notices, 1)
	var sizeErr *SizeExceededError
	require.ErrorAs(t, f.rec.notices[0].Err, &sizeErr)
	assert.Equal(t, DefaultImageMaxBytes, sizeErr.Limit)
	assert.Equal(t, "FILE002", f.rec.notices[0].Message.Code)
	assert.Zero(t, f.encoder.calls, "oversized files are not read")
}

func TestPipeline_PDFWithoutMediaType(t *testing.T) {
	f := newFixture(t)

	ok := f.pipeline.Process(context.Background(), NewBytesFile("invoice.pdf", "", pdfHeader))
	require.True(t, ok)

	assert.Equal(t, []string{"invoice.pdf"}, f.uploader.calls)
	assert.Equal(t, 1, f.encoder.calls)
	require.Len(t, f.rec.results, 1)
	pdf, isPDF := f.rec.results[0].(PDFResult)
	require.True(t, isPDF, "got %T", f.rec.results[0])
	assert.Equal(t, "/uploads/invoice.pdf", pdf.SavedPath)
	assert.Equal(t, MediaTypePDF, pdf.MediaType)
	assert.NotEmpty(t, pdf.Payload)
}

func TestPipeline_PDFEncodeFailsAfterUpload(t *testing.T) {
	f := newFixture(t)
	f.encoder.err = &ReadError{Filename: "invoice.pdf", Err: errors.New("disk gone")}

	ok := f.pipeline.Process(context.Background(), NewBytesFile("invoice.pdf", "application/pdf", pdfHeader))
	assert.False(t, ok)

	assert.Len(t, f.uploader.calls, 1, "upload happened first")
	assert.Empty(t, f.rec.results)
	require.Len(t, f.rec.notices, 1)
	assert.Equal(t, "READ001", f.rec.notices[0].Message.Code)
}

func TestPipeline_Document(t *testing.T) {
	f := newFixture(t)
	mt := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	ok := f.pipeline.Process(context.Background(), NewBytesFile("q3.xlsx", mt, []byte("PK\x03\x04")))
	require.True(t, ok)

	assert.Zero(t, f.encoder.calls, "documents are never encoded")
	require.Len(t, f.rec.results, 1)
	doc, isDoc := f.rec.results[0].(DocumentResult)
	require.True(t, isDoc, "got %T", f.rec.results[0])
	assert.Equal(t, "/uploads/q3.xlsx", doc.SavedPath)
	assert.Equal(t, mt, doc.MediaType)
	assert.Equal(t, int64(4), doc.Size)
}

func TestPipeline_DocumentUploadFails(t *testing.T) {
	f := newFixture(t)
	f.uploader.err = &UploadError{StatusCode: 500}

	ok := f.pipeline.Process(context.Background(), NewBytesFile("notes.txt", "text/plain", []byte("hi")))
	assert.False(t, ok)

	assert.Empty(t, f.rec.results)
	require.Len(t, f.rec.notices, 1)
	assert.Equal(t, "UPL001", f.rec.notices[0].Message.Code)
	assert.Contains(t, f.rec.notices[0].Message.Message, "500")
	assert.Equal(t, CategoryDocument, f.rec.notices[0].Category)
}

func TestPipeline_Unsupported(t *testing.T) {
	f := newFixture(t)

	ok := f.pipeline.Process(context.Background(), NewBytesFile("data.xyz", "", []byte("?")))
	assert.False(t, ok)

	assert.Empty(t, f.rec.results)
	assert.Empty(t, f.uploader.calls)
	require.Len(t, f.rec.notices, 1)
	assert.Equal(t, "FILE001", f.rec.notices[0].Message.Code)
	assert.Equal(t, CategoryUnknown, f.rec.notices[0].Category)
}

func TestPipeline_ImageContentNotAllowed(t *testing.T) {
	f := newFixture(t)

	ok := f.pipeline.Process(context.Background(), NewBytesFile("fake.png", "image/png", []byte("plain text pretending\n")))
	assert.False(t, ok)

	assert.Empty(t, f.rec.results)
	require.Len(t, f.rec.notices, 1)
	assert.ErrorIs(t, f.rec.notices[0].Err, ErrRejectedMediaType)
	assert.Equal(t, "FILE003", f.rec.notices[0].Message.Code)
}

func TestPipeline_ProcessImageSkipsClassification(t *testing.T) {
	f := newFixture(t)

	// No name and no extension: Process would reject it as Unknown.
	ok := f.pipeline.ProcessImage(context.Background(), NewBytesFile("", "image/png", pngHeader))
	require.True(t, ok)
	require.Len(t, f.rec.results, 1)
	assert.Equal(t, CategoryImage, f.rec.results[0].Category())
}

func TestNewPipeline_Validation(t *testing.T) {
	rec := &recorder{}

	_, err := NewPipeline(Options{Uploader: &fakeUploader{}})
	assert.Error(t, err, "emitter is required")

	_, err = NewPipeline(Options{Emitter: rec})
	assert.Error(t, err, "uploader is required")

	_, err = NewPipeline(Options{Emitter: rec, Uploader: &fakeUploader{}, Policy: SizePolicy{Image: 1}})
	assert.Error(t, err, "partial policy is rejected")

	p, err := NewPipeline(Options{Emitter: rec, Uploader: &fakeUploader{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultSizePolicy(), p.Policy())
}
