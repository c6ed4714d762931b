package core

import (
	"bytes"
	"io"
	"mime/multipart"

	"github.com/spf13/afero"
)

// Source opens the bytes behind a FileHandle.
// Each call must return a fresh reader positioned at the start.
type Source interface {
	Open() (io.ReadCloser, error)
}

// BytesSource serves an in-memory buffer.
type BytesSource []byte

func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// FSSource reads a file from an afero filesystem.
type FSSource struct {
	Fs   afero.Fs
	Path string
}

func (s FSSource) Open() (io.ReadCloser, error) {
	return s.Fs.Open(s.Path)
}

// MultipartSource reads an uploaded multipart part held by the request.
type MultipartSource struct {
	Header *multipart.FileHeader
}

func (s MultipartSource) Open() (io.ReadCloser, error) {
	return s.Header.Open()
}

// FileHandle is a reference to one file for a single processing pass.
type FileHandle struct {
	Name      string // Filename as reported by the environment
	MediaType string // Declared media type; may be empty or wrong
	Size      int64  // Size in bytes
	Source    Source // Where the bytes come from
}

// NewBytesFile builds a FileHandle over an in-memory buffer.
func NewBytesFile(name, mediaType string, data []byte) FileHandle {
	return FileHandle{
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		Source:    BytesSource(data),
	}
}

// NewFSFile builds a FileHandle for a path on fs, stat-ing it for size.
func NewFSFile(fs afero.Fs, path, mediaType string) (FileHandle, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return FileHandle{}, &ReadError{Filename: path, Err: err}
	}
	return FileHandle{
		Name:      info.Name(),
		MediaType: mediaType,
		Size:      info.Size(),
		Source:    FSSource{Fs: fs, Path: path},
	}, nil
}

// NewMultipartFile builds a FileHandle from a parsed multipart file header.
func NewMultipartFile(h *multipart.FileHeader) FileHandle {
	return FileHandle{
		Name:      h.Filename,
		MediaType: h.Header.Get("Content-Type"),
		Size:      h.Size,
		Source:    MultipartSource{Header: h},
	}
}

// Category is the classification outcome for a file.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryImage
	CategoryPDF
	CategoryDocument
)

func (c Category) String() string {
	switch c {
	case CategoryImage:
		return "image"
	case CategoryPDF:
		return "pdf"
	case CategoryDocument:
		return "document"
	default:
		return "unknown"
	}
}

// MarshalText encodes the category as its lowercase name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Size limit defaults.
const (
	DefaultImageMaxBytes    int64 = 5 << 20
	DefaultPDFMaxBytes      int64 = 32 << 20
	DefaultDocumentMaxBytes int64 = 100 << 20
)

// SizePolicy maps each uploadable category to its maximum byte size.
type SizePolicy struct {
	Image    int64
	PDF      int64
	Document int64
}

// DefaultSizePolicy returns the built-in thresholds.
func DefaultSizePolicy() SizePolicy {
	return SizePolicy{
		Image:    DefaultImageMaxBytes,
		PDF:      DefaultPDFMaxBytes,
		Document: DefaultDocumentMaxBytes,
	}
}

// Limit returns the threshold for c. Unknown has none.
func (p SizePolicy) Limit(c Category) (int64, bool) {
	switch c {
	case CategoryImage:
		return p.Image, true
	case CategoryPDF:
		return p.PDF, true
	case CategoryDocument:
		return p.Document, true
	default:
		return 0, false
	}
}

// MediaTypePDF is the only media type a PDF result ever carries.
const MediaTypePDF = "application/pdf"

// DefaultAllowedImageTypes are the image media types accepted inline.
var DefaultAllowedImageTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
}

// Result is a normalized record for one successfully ingested file.
// The concrete type is one of ImageResult, PDFResult or DocumentResult.
type Result interface {
	Category() Category
	FileName() string
	isResult()
}

// ImageResult is an image carried inline as base64.
type ImageResult struct {
	Payload   string `json:"payload"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	Filename  string `json:"filename"`
}

// PDFResult is a PDF that was uploaded and also carried inline.
type PDFResult struct {
	Payload   string `json:"payload"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	Filename  string `json:"filename"`
	SavedPath string `json:"saved_path"`
}

// DocumentResult is an office/text document that was only uploaded.
type DocumentResult struct {
	Filename  string `json:"filename"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	SavedPath string `json:"saved_path"`
}

func (ImageResult) Category() Category    { return CategoryImage }
func (PDFResult) Category() Category      { return CategoryPDF }
func (DocumentResult) Category() Category { return CategoryDocument }

func (r ImageResult) FileName() string    { return r.Filename }
func (r PDFResult) FileName() string      { return r.Filename }
func (r DocumentResult) FileName() string { return r.Filename }

func (ImageResult) isResult()    {}
func (PDFResult) isResult()      {}
func (DocumentResult) isResult() {}
