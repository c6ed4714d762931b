package core

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"
)

// UnsupportedTypeError is returned for files that classify as Unknown.
// MediaType is the raw declared type, kept for diagnostics.
type UnsupportedTypeError struct {
	Filename  string
	MediaType string
}

func (e *UnsupportedTypeError) Error() string {
	mt := e.MediaType
	if mt == "" {
		mt = "none"
	}
	return fmt.Sprintf("unsupported file type: %s (declared media type: %s)", e.Filename, mt)
}

// SizeExceededError is returned when a file is larger than its category allows.
type SizeExceededError struct {
	Category Category
	Limit    int64
	Size     int64
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("file too large: %s of %s exceeds the %s limit",
		e.Category, humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(e.Limit)))
}

// UploadError is returned when the endpoint answers with a non-success status
// or with a body that carries no usable path.
type UploadError struct {
	StatusCode int
	Status     string
}

func (e *UploadError) Error() string {
	status := e.Status
	if status == "" {
		status = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("upload rejected: status %d %s", e.StatusCode, status)
}

// Retryable reports whether the endpoint may accept the same file later.
func (e *UploadError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// NetworkError wraps a transport failure talking to the upload endpoint.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "upload network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// ReadError wraps a failure reading the local bytes of a file.
type ReadError struct {
	Filename string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read error: %s: %v", e.Filename, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// ErrRejectedMediaType is wrapped when an image's sniffed media type is not allowed.
var ErrRejectedMediaType = errors.New("media type not allowed")

// isTransient reports whether an upload failure is worth retrying.
func isTransient(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var upErr *UploadError
	if errors.As(err, &upErr) {
		return upErr.Retryable()
	}
	return false
}
