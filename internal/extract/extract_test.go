package extract

import (
	"archive/zip"
	"bytes"
	goerrors "errors"
	"os"
	"path/filepath"
	"testing"

	"resumatch/internal/errors"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write document.xml: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestTextFromTXTFile(t *testing.T) {
	content := "Jane Doe\nBackend Engineer"
	path := filepath.Join(t.TempDir(), "resume.txt")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	extractor := New(nil)
	got, err := extractor.Text(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != content {
		t.Errorf("Expected %q, got %q", content, got)
	}
}

func TestTextFileNotFound(t *testing.T) {
	extractor := New(nil)
	_, err := extractor.Text(filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Fatal("Expected an error for a missing file")
	}

	var appErr *errors.AppError
	if !goerrors.As(err, &appErr) {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeFileNotFound {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeFileNotFound, appErr.Code)
	}
}

func TestTextFromBytesDOCX(t *testing.T) {
	tests := []struct {
		name        string
		documentXML string
		expected    string
	}{
		{
			name: "paragraphs end with newlines",
			documentXML: `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
				`<w:body><w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p><w:p><w:r><w:t>Engineer</w:t></w:r></w:p></w:body></w:document>`,
			expected: "Jane Doe\nEngineer\n",
		},
		{
			name: "tabs and breaks are honored",
			documentXML: `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
				`<w:body><w:p><w:r><w:t>A</w:t><w:tab/><w:t>B</w:t><w:br/><w:t>C</w:t></w:r></w:p></w:body></w:document>`,
			expected: "A\tB\nC\n",
		},
		{
			name: "table rows produce lines",
			documentXML: `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
				`<w:body><w:tbl><w:tr><w:tc><w:p><w:r><w:t>Name</w:t></w:r></w:p></w:tc>` +
				`<w:tc><w:p><w:r><w:t>Jane</w:t></w:r></w:p></w:tc></w:tr></w:tbl></w:body></w:document>`,
			expected: "Name\nJane\n",
		},
	}

	extractor := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractor.TextFromBytes(buildDOCX(t, tt.documentXML), ".docx")
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestTextFromBytesDOCXFallback(t *testing.T) {
	// Not a ZIP archive at all; the printable scrape should salvage the text.
	extractor := New(nil)
	got, err := extractor.TextFromBytes([]byte("just plain text"), ".docx")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != "just plain text" {
		t.Errorf("Expected salvaged text, got %q", got)
	}
}

func TestTextFromBytesPDFFallback(t *testing.T) {
	extractor := New(nil)
	got, err := extractor.TextFromBytes([]byte("Not really a PDF\x00\x01 but it has text"), ".pdf")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != "Not really a PDF but it has text" {
		t.Errorf("Expected control bytes stripped, got %q", got)
	}
}

func TestTextFromBytesUnsupportedFormat(t *testing.T) {
	extractor := New(nil)
	_, err := extractor.TextFromBytes([]byte("{\\rtf1}"), ".rtf")
	if err == nil {
		t.Fatal("Expected an error for an unsupported format")
	}

	var appErr *errors.AppError
	if !goerrors.As(err, &appErr) {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeUnsupportedFormat {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeUnsupportedFormat, appErr.Code)
	}
}

func TestTextFromBytesExtensionCase(t *testing.T) {
	extractor := New(nil)
	got, err := extractor.TextFromBytes([]byte("plain"), ".TXT")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != "plain" {
		t.Errorf("Expected %q, got %q", "plain", got)
	}
}

func TestTextFromBytesEmptyDocuments(t *testing.T) {
	extractor := New(nil)
	for _, ext := range []string{".pdf", ".docx", ".txt"} {
		got, err := extractor.TextFromBytes(nil, ext)
		if err != nil {
			t.Fatalf("Expected no error for empty %s content, got %v", ext, err)
		}
		if got != "" {
			t.Errorf("Expected empty text for empty %s content, got %q", ext, got)
		}
	}
}
