package dataproc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

type PDFResult struct {
	Pages int    `json:"pages"`
	Text  string `json:"text"`
}

// ExtractPDFText pulls plain text out of a PDF, pages joined by blank
// lines. Pages that fail to decode are skipped, best effort.
func ExtractPDFText(data []byte) (PDFResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return PDFResult{}, fmt.Errorf("pdf extraction failed: %w", err)
	}

	result := PDFResult{Pages: reader.NumPage()}
	var texts []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		texts = append(texts, text)
	}
	result.Text = strings.TrimSpace(strings.Join(texts, "\n\n"))
	return result, nil
}
