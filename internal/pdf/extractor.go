package pdf

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_extractor.go -package=mocks thinkr-chatbot/internal/pdf Extractor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
)

// ErrCorrupt is returned when a PDF cannot be parsed.
var ErrCorrupt = errors.New("corrupt or unreadable pdf")

// Metadata holds document-level information extracted from a PDF.
type Metadata struct {
	Title    string
	Author   string
	Subject  string
	Filename string
	Pages    int
}

// Page is the plain text of one PDF page. Number starts at 1.
type Page struct {
	Number int
	Text   string
}

// Document is the extracted content of a PDF.
type Document struct {
	Metadata Metadata
	Pages    []Page
}

// Extractor extracts text and metadata from a PDF file.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Document, error)
}

// LedongthucExtractor extracts PDFs with github.com/ledongthuc/pdf.
type LedongthucExtractor struct{}

// NewExtractor returns the default Extractor.
func NewExtractor() *LedongthucExtractor {
	return &LedongthucExtractor{}
}

// Extract reads every page of the PDF at path. Parser failures, including panics
// inside the PDF library, are reported as ErrCorrupt.
func (e *LedongthucExtractor) Extract(ctx context.Context, path string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: %s: %v", ErrCorrupt, filepath.Base(path), r)
		}
	}()

	f, r, err := lpdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, filepath.Base(path), err)
	}
	defer func() {
		_ = f.Close()
	}()

	filename := filepath.Base(path)
	numPages := r.NumPage()
	doc = &Document{
		Metadata: Metadata{
			Filename: filename,
			Pages:    numPages,
		},
		Pages: make([]Page, 0, numPages),
	}

	info := r.Trailer().Key("Info")
	if !info.IsNull() {
		doc.Metadata.Title = strings.TrimSpace(info.Key("Title").Text())
		doc.Metadata.Author = strings.TrimSpace(info.Key("Author").Text())
		doc.Metadata.Subject = strings.TrimSpace(info.Key("Subject").Text())
	}
	if doc.Metadata.Title == "" {
		doc.Metadata.Title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	fonts := make(map[string]*lpdf.Font)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := p.Font(name)
				fonts[name] = &font
			}
		}

		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("%w: %s page %d: %v", ErrCorrupt, filename, i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		doc.Pages = append(doc.Pages, Page{Number: i, Text: text})
	}

	return doc, nil
}
