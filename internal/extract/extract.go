package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"resumatch/internal/errors"
	"resumatch/internal/utils"
)

// Extractor pulls plain text out of resume files. PDF and DOCX extraction is
// fail-soft: an unparsable document degrades to a printable-character scrape,
// and the caller decides whether the remaining text is usable.
type Extractor struct {
	logger *errors.Logger
}

// New creates a new text extractor instance
func New(logger *errors.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Text reads filename and extracts its plain text based on the file extension.
func (e *Extractor) Text(filename string) (string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}

	return e.TextFromBytes(data, utils.GetFileExtension(filename))
}

// TextFromBytes extracts plain text from in-memory file content. The ext
// parameter selects the decoder and includes the leading dot.
func (e *Extractor) TextFromBytes(data []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return e.pdfText(data), nil
	case ".docx":
		return e.docxText(data), nil
	case ".txt":
		return string(data), nil
	default:
		return "", errors.NewValidationError(errors.ErrCodeUnsupportedFormat,
			fmt.Sprintf("Unsupported resume format: %s", ext), nil)
	}
}

func (e *Extractor) pdfText(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	out, err := parsePDF(data)
	if err == nil && len(out) > 0 {
		return string(out)
	}
	if err != nil && e.logger != nil {
		e.logger.Warn("PDF parse failed, using printable text fallback", "error", err)
	}

	return string(printableText(data))
}

func parsePDF(data []byte) ([]byte, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, err
	}
	return io.ReadAll(plain)
}

func (e *Extractor) docxText(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	if out := docxBodyText(data); len(out) > 0 {
		return string(out)
	}
	if e.logger != nil {
		e.logger.Warn("DOCX parse produced no text, using printable text fallback")
	}

	return string(printableText(data))
}

// docxBodyText locates word/document.xml inside the DOCX archive and renders
// its text. A nil return means the archive or the document part is unusable.
func docxBodyText(data []byte) []byte {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil
	}

	for _, f := range reader.File {
		if !strings.EqualFold(f.Name, "word/document.xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer func() { _ = rc.Close() }()
		return wordMLText(rc)
	}

	return nil
}

// wordMLText walks a WordprocessingML document and renders its text runs.
// Explicit tabs and breaks are honored, paragraph and table-row ends emit
// newlines, and table cells are separated with tabs.
func wordMLText(r io.Reader) []byte {
	decoder := xml.NewDecoder(r)

	var buf bytes.Buffer
	atLineStart := true
	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		switch tok := token.(type) {
		case xml.StartElement:
			switch tok.Name.Local {
			case "t", "instrText":
				var text string
				if err := decoder.DecodeElement(&text, &tok); err == nil {
					buf.WriteString(text)
					atLineStart = false
				}
			case "tab":
				buf.WriteByte('\t')
				atLineStart = false
			case "br", "cr":
				buf.WriteByte('\n')
				atLineStart = true
			}
		case xml.EndElement:
			switch tok.Name.Local {
			case "p", "tr":
				if !atLineStart {
					buf.WriteByte('\n')
					atLineStart = true
				}
			case "tc":
				if !atLineStart {
					buf.WriteByte('\t')
					atLineStart = false
				}
			}
		}
	}

	return buf.Bytes()
}

// printableText keeps printable runes and standard whitespace from raw bytes,
// salvaging whatever readable content a malformed document still carries.
func printableText(in []byte) []byte {
	var out bytes.Buffer
	for len(in) > 0 {
		r, size := utf8.DecodeRune(in)
		if r == utf8.RuneError && size == 1 {
			if b := in[0]; b == '\n' || b == '\r' || b == '\t' || (b >= 32 && b < 127) {
				out.WriteByte(b)
			}
			in = in[1:]
			continue
		}
		in = in[size:]
		if r == '\n' || r == '\r' || r == '\t' || r >= 32 {
			out.WriteRune(r)
		}
	}
	return out.Bytes()
}
