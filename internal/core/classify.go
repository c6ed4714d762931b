package core

import (
	"path"
	"strings"
)

// documentExtensions are the file extensions routed to the upload-only pipeline.
var documentExtensions = map[string]bool{
	"doc":  true,
	"docx": true,
	"xls":  true,
	"xlsx": true,
	"ppt":  true,
	"pptx": true,
	"txt":  true,
	"csv":  true,
	"md":   true,
}

// Classifier maps a file's declared media type and name to a Category.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	allowedImages map[string]bool
}

// NewClassifier creates a classifier accepting the given image media types.
// A nil or empty list falls back to DefaultAllowedImageTypes.
func NewClassifier(allowedImageTypes []string) *Classifier {
	if len(allowedImageTypes) == 0 {
		allowedImageTypes = DefaultAllowedImageTypes
	}
	allowed := make(map[string]bool, len(allowedImageTypes))
	for _, t := range allowedImageTypes {
		allowed[normalizeMediaType(t)] = true
	}
	return &Classifier{allowedImages: allowed}
}

// Classify returns the category for file. The checks run in a fixed order:
// image (declared type only), then PDF (type or ".pdf" name), then document
// (extension), else Unknown. A ".png" file with no declared type is Unknown.
func (c *Classifier) Classify(file FileHandle) Category {
	mediaType := normalizeMediaType(file.MediaType)
	name := strings.ToLower(strings.TrimSpace(file.Name))

	if strings.HasPrefix(mediaType, "image/") && c.allowedImages[mediaType] {
		return CategoryImage
	}
	if mediaType == MediaTypePDF || strings.HasSuffix(name, ".pdf") {
		return CategoryPDF
	}
	if documentExtensions[extension(name)] {
		return CategoryDocument
	}
	return CategoryUnknown
}

// AllowsImage reports whether mediaType is in the allowed image set.
func (c *Classifier) AllowsImage(mediaType string) bool {
	mt := normalizeMediaType(mediaType)
	return strings.HasPrefix(mt, "image/") && c.allowedImages[mt]
}

// normalizeMediaType lowercases a media type and drops any parameters.
func normalizeMediaType(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

// extension returns the lowercase extension of name without the dot.
func extension(name string) string {
	return strings.TrimPrefix(path.Ext(name), ".")
}
