package core

// uploader.go sends one file per request to the upload endpoint.
//
// The endpoint accepts a multipart POST with a single file field and answers
// with JSON containing the server-side path. Every attempt re-opens the file
// source and streams it through a pipe, so memory stays flat regardless of
// file size. Attempts share one X-Request-ID so the server can correlate them.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultUploadTimeout bounds a single upload attempt.
const DefaultUploadTimeout = 30 * time.Second

// DefaultUploadField is the multipart field the endpoint reads.
const DefaultUploadField = "file"

// maxResponseBytes caps how much of the endpoint's response is read.
const maxResponseBytes = 1 << 20

// UploadReceipt is the endpoint's answer for a stored file.
type UploadReceipt struct {
	Path string `json:"path"`
}

// UploaderConfig configures an Uploader.
type UploaderConfig struct {
	Endpoint  string        // Absolute URL of the upload endpoint (required)
	FieldName string        // Multipart field name (default: "file")
	Timeout   time.Duration // Per-attempt timeout (default: 30s)
	Retry     RetryPolicy
	Limiter   *UploadLimiter // Optional concurrency gate
	Client    *http.Client   // Optional; Timeout is applied to a copy
	Observer  Observer       // Optional metrics
}

// Uploader transmits files to the upload endpoint.
type Uploader struct {
	endpoint  string
	fieldName string
	retry     RetryPolicy
	limiter   *UploadLimiter
	client    *http.Client
	observer  Observer
}

// NewUploader validates cfg and builds an Uploader.
func NewUploader(cfg UploaderConfig) (*Uploader, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("upload endpoint is required")
	}
	if cfg.FieldName == "" {
		cfg.FieldName = DefaultUploadField
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultUploadTimeout
	}

	client := &http.Client{}
	if cfg.Client != nil {
		c := *cfg.Client
		client = &c
	}
	client.Timeout = cfg.Timeout

	return &Uploader{
		endpoint:  endpoint,
		fieldName: cfg.FieldName,
		retry:     cfg.Retry,
		limiter:   cfg.Limiter,
		client:    client,
		observer:  observerOrNoop(cfg.Observer),
	}, nil
}

// Upload sends file to the endpoint and returns the server-assigned path.
// Errors are *UploadError, *NetworkError, *ReadError, or ErrTooManyUploads.
func (u *Uploader) Upload(ctx context.Context, file FileHandle) (UploadReceipt, error) {
	requestID := uuid.NewString()
	logger := slog.Default().With("file", file.Name, "upload_request_id", requestID)

	var receipt UploadReceipt
	run := func(ctx context.Context) error {
		start := time.Now()
		r, err := retry(ctx, u.retry, logger, func(ctx context.Context) (UploadReceipt, error) {
			return u.attempt(ctx, file, requestID)
		})
		u.observer.ObserveUpload(time.Since(start), file.Size, err)
		receipt = r
		return err
	}

	var err error
	if u.limiter != nil {
		err = u.limiter.Do(ctx, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return UploadReceipt{}, err
	}
	return receipt, nil
}

func (u *Uploader) attempt(ctx context.Context, file FileHandle, requestID string) (UploadReceipt, error) {
	if file.Source == nil {
		return UploadReceipt{}, &ReadError{Filename: file.Name, Err: fmt.Errorf("no byte source")}
	}
	src, err := file.Source.Open()
	if err != nil {
		return UploadReceipt{}, &ReadError{Filename: file.Name, Err: err}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	readErr := make(chan error, 1)
	go func() {
		defer src.Close()
		err := writePart(mw, u.fieldName, file, src)
		if err == nil {
			err = mw.Close()
		}
		readErr <- err
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, pr)
	if err != nil {
		pr.Close()
		return UploadReceipt{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := u.client.Do(req)
	if err != nil {
		// Closing the reader unblocks the writer goroutine.
		pr.Close()
		var re *ReadError
		if errors.As(<-readErr, &re) {
			return UploadReceipt{}, re
		}
		return UploadReceipt{}, &NetworkError{Err: err}
	}
	defer pr.Close()
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return UploadReceipt{}, &NetworkError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return UploadReceipt{}, &UploadError{StatusCode: resp.StatusCode, Status: statusText(resp)}
	}

	var receipt UploadReceipt
	if err := json.Unmarshal(body, &receipt); err != nil || strings.TrimSpace(receipt.Path) == "" {
		return UploadReceipt{}, &UploadError{StatusCode: resp.StatusCode, Status: "response has no path"}
	}
	return receipt, nil
}

// writePart copies src into a single file part of mw.
func writePart(mw *multipart.Writer, field string, file FileHandle, src io.Reader) error {
	contentType := strings.TrimSpace(file.MediaType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(field), escapeQuotes(file.Name)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	sr := &sourceReader{r: src}
	if _, err := io.Copy(part, sr); err != nil {
		if sr.err != nil {
			return &ReadError{Filename: file.Name, Err: sr.err}
		}
		return err
	}
	return nil
}

// sourceReader remembers the error of the underlying reader so local read
// failures can be told apart from a closed request pipe.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// statusText returns the reason phrase of resp without the numeric code.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
