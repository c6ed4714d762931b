package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		name      string
		file      string
		mediaType string
		want      Category
	}{
		{"png image", "photo.png", "image/png", CategoryImage},
		{"jpeg with parameters", "photo.jpg", "image/jpeg; q=0.9", CategoryImage},
		{"uppercase media type", "photo.gif", "IMAGE/GIF", CategoryImage},
		{"webp", "sticker.webp", "image/webp", CategoryImage},
		{"disallowed image type", "scan.tiff", "image/tiff", CategoryUnknown},
		{"image extension without media type", "photo.png", "", CategoryUnknown},
		{"pdf by media type", "report", "application/pdf", CategoryPDF},
		{"pdf by name without media type", "invoice.pdf", "", CategoryPDF},
		{"pdf by uppercase name", "INVOICE.PDF", "application/octet-stream", CategoryPDF},
		{"image type wins over pdf name", "odd.pdf", "image/png", CategoryImage},
		{"pdf type wins over document extension", "notes.txt", "application/pdf", CategoryPDF},
		{"docx", "plan.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", CategoryDocument},
		{"csv without media type", "rows.csv", "", CategoryDocument},
		{"markdown", "README.MD", "text/markdown", CategoryDocument},
		{"legacy office formats", "budget.xls", "", CategoryDocument},
		{"slides", "deck.pptx", "", CategoryDocument},
		{"unknown extension", "data.xyz", "", CategoryUnknown},
		{"no extension", "Makefile", "text/plain", CategoryUnknown},
		{"empty name and type", "", "", CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(FileHandle{Name: tt.file, MediaType: tt.mediaType})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifier_CustomAllowList(t *testing.T) {
	c := NewClassifier([]string{"image/avif", "Image/PNG"})

	assert.Equal(t, CategoryImage, c.Classify(FileHandle{Name: "a.avif", MediaType: "image/avif"}))
	assert.Equal(t, CategoryImage, c.Classify(FileHandle{Name: "a.png", MediaType: "image/png"}))
	assert.Equal(t, CategoryUnknown, c.Classify(FileHandle{Name: "a.gif", MediaType: "image/gif"}))

	assert.True(t, c.AllowsImage("image/avif"))
	assert.False(t, c.AllowsImage("image/jpeg"))
	assert.False(t, c.AllowsImage("text/plain"))
}

func TestCategory_MarshalText(t *testing.T) {
	want := map[Category]string{
		CategoryUnknown:  "unknown",
		CategoryImage:    "image",
		CategoryPDF:      "pdf",
		CategoryDocument: "document",
	}
	for c, name := range want {
		text, err := c.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, name, string(text))
	}
}
