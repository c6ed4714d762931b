package core

// encoder.go turns file bytes into a base64 data URL off the caller's goroutine.
//
// The data URL header carries the media type the encoder observed for the
// bytes, which may differ from what the file declared. For images that
// observed type is the one that ends up in the result.

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// EncodeOutcome is delivered once per EncodeAsync call.
type EncodeOutcome struct {
	DataURL string
	Err     error
}

// Encoder produces base64 data URLs for files.
// It has no shared state; concurrent calls are independent.
type Encoder struct{}

// NewEncoder creates an Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// EncodeAsync starts encoding file on a new goroutine and returns a channel
// that receives exactly one outcome and is then closed.
func (e *Encoder) EncodeAsync(ctx context.Context, file FileHandle) <-chan EncodeOutcome {
	out := make(chan EncodeOutcome, 1)
	go func() {
		defer close(out)
		dataURL, err := e.encode(ctx, file)
		out <- EncodeOutcome{DataURL: dataURL, Err: err}
	}()
	return out
}

// Encode waits for EncodeAsync, giving up when ctx is done. Cancellation is
// returned as ctx.Err(), unwrapped, so it is not reported as a read failure.
func (e *Encoder) Encode(ctx context.Context, file FileHandle) (string, error) {
	select {
	case o := <-e.EncodeAsync(ctx, file):
		return o.DataURL, o.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *Encoder) encode(ctx context.Context, file FileHandle) (string, error) {
	if file.Source == nil {
		return "", &ReadError{Filename: file.Name, Err: fmt.Errorf("no byte source")}
	}
	rc, err := file.Source.Open()
	if err != nil {
		return "", &ReadError{Filename: file.Name, Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(contextReader{ctx: ctx, r: rc})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &ReadError{Filename: file.Name, Err: err}
	}

	mediaType := detectMediaType(data, file.MediaType)
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mediaType) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mediaType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String(), nil
}

// detectMediaType sniffs data and falls back to the declared type when the
// sniffer cannot tell (generic octet-stream).
func detectMediaType(data []byte, declared string) string {
	m := mimetype.Detect(data)
	if m != nil && !m.Is("application/octet-stream") {
		return normalizeMediaType(m.String())
	}
	if d := normalizeMediaType(declared); d != "" {
		return d
	}
	return "application/octet-stream"
}

// ParseDataURL splits a base64 data URL into its media type and payload.
func ParseDataURL(dataURL string) (mediaType, payload string, err error) {
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return "", "", fmt.Errorf("invalid data URL")
	}

	meta := strings.TrimPrefix(header, "data:")
	base64Encoded := false
	for _, segment := range strings.Split(meta, ";") {
		segment = strings.TrimSpace(segment)
		switch {
		case segment == "base64":
			base64Encoded = true
		case strings.Contains(segment, "/"):
			mediaType = strings.ToLower(segment)
		}
	}
	if !base64Encoded {
		return "", "", fmt.Errorf("data URL is not base64 encoded")
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return mediaType, payload, nil
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
