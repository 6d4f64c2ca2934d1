package parser

import (
	"context"
	"errors"
	"testing"

	"parsely-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePDF struct {
	text string
	err  error
	uris []string
}

func (f *fakePDF) ExtractText(_ context.Context, _ []byte, uri string) (string, error) {
	f.uris = append(f.uris, uri)
	return f.text, f.err
}

func TestDetectKind(t *testing.T) {
	cases := []struct {
		filename, mime, want string
	}{
		{"resume.pdf", "", "pdf"},
		{"resume.bin", "application/pdf", "pdf"},
		{"resume", "text/plain; charset=utf-8", "text"},
		{"RESUME.TXT", "application/octet-stream", "text"},
		{"notes.md", "", "text"},
		{"photo.png", "image/png", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectKind(tc.filename, tc.mime), "%s %s", tc.filename, tc.mime)
	}
}

func TestExtractPlainText(t *testing.T) {
	d := NewDocumentExtractor(nil)
	doc, err := d.Extract(context.Background(), []byte("\xEF\xBB\xBFJane Roe\nEngineer"), "cv.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe\nEngineer", doc.Text)
	assert.Equal(t, "text/plain", doc.MimeType)
	assert.Equal(t, "cv.txt", doc.Filename)
}

func TestExtractWindows1252Fallback(t *testing.T) {
	d := NewDocumentExtractor(nil)
	doc, err := d.Extract(context.Background(), []byte("Jos\xe9 Garc\xeda, caf\xe9"), "cv.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "José García, café", doc.Text)
}

func TestExtractPDFDelegates(t *testing.T) {
	pdf := &fakePDF{text: "Jane Roe\nEXPERIENCE"}
	d := NewDocumentExtractor(pdf)
	doc, err := d.Extract(context.Background(), []byte("%PDF-1.7 ..."), "cv.bin", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe\nEXPERIENCE", doc.Text)
	assert.Equal(t, "application/pdf", doc.MimeType)
	assert.Equal(t, []string{"cv.bin"}, pdf.uris)
}

func TestExtractInputErrors(t *testing.T) {
	ctx := context.Background()

	cases := map[string]struct {
		extractor *DocumentExtractor
		data      string
		filename  string
		mime      string
	}{
		"too small":        {NewDocumentExtractor(nil), "abc", "cv.txt", ""},
		"unsupported":      {NewDocumentExtractor(nil), "binary-ish content", "cv.docx", ""},
		"pdf unconfigured": {NewDocumentExtractor(nil), "%PDF-1.7 ...", "cv.pdf", ""},
		"whitespace only":  {NewDocumentExtractor(nil), "   \n\t  a ", "cv.txt", ""},
		"pdf failure":      {NewDocumentExtractor(&fakePDF{err: errors.New("corrupt xref")}), "%PDF-1.7 ...", "cv.pdf", ""},
		"pdf empty text":   {NewDocumentExtractor(&fakePDF{text: "  "}), "%PDF-1.7 ...", "cv.pdf", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.extractor.Extract(ctx, []byte(tc.data), tc.filename, tc.mime)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrInput)
		})
	}
}
