// Package pdfinfo validates uploaded PDFs before they are stored or
// pushed to the analysis provider.
package pdfinfo

import (
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

type Inspector struct{}

func New() *Inspector {
	return &Inspector{}
}

// PageCount parses the document structure and returns the page count.
// A file that does not parse as a PDF is rejected here rather than after
// a wasted provider upload.
func (i *Inspector) PageCount(r io.ReaderAt, size int64) (int, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("parse pdf structure: %w", err)
	}
	pages := reader.NumPage()
	if pages <= 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return pages, nil
}
