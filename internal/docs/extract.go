package docs

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var ErrUnsupportedFile = errors.New("unsupported file type")

// ExtractText returns the plain text of an uploaded file. PDFs are read page
// by page with a page marker; other files must be UTF-8 text.
func ExtractText(name string, data []byte) (string, error) {
	if strings.EqualFold(filepath.Ext(name), ".pdf") || bytes.HasPrefix(data, []byte("%PDF-")) {
		return extractPDF(data)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: %w", name, ErrUnsupportedFile)
	}
	return string(data), nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var out strings.Builder
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		fmt.Fprintf(&out, "--- Page %d ---\n%s\n\n", pageNum, text)
	}
	return out.String(), nil
}
