package quizbuilder

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// Upload is a file received from a form, held in memory
type Upload struct {
	Name string
	Data []byte
}

// DocumentProcessor turns PDF files into page records
type DocumentProcessor struct {
	pages []Page
}

func NewDocumentProcessor() *DocumentProcessor {
	return &DocumentProcessor{}
}

// Pages returns every page ingested so far
func (dp *DocumentProcessor) Pages() []Page {
	return dp.pages
}

// IngestFiles reads PDFs from disk
func (dp *DocumentProcessor) IngestFiles(paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := dp.ingest(filepath.Base(path), data); err != nil {
			return err
		}
	}
	return nil
}

// IngestUploads reads PDFs that were uploaded through the web form
func (dp *DocumentProcessor) IngestUploads(files []Upload) error {
	for _, f := range files {
		if err := dp.ingest(f.Name, f.Data); err != nil {
			return err
		}
	}
	return nil
}

func (dp *DocumentProcessor) ingest(name string, data []byte) error {
	if strings.ToLower(filepath.Ext(name)) != ".pdf" {
		return fmt.Errorf("unsupported file format for %s: only PDF files are accepted", name)
	}

	pages, err := readPDFPages(name, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}

	log.Info().Str("file", name).Int("pages", len(pages)).Msg("Ingested document")
	dp.pages = append(dp.pages, pages...)
	return nil
}

func readPDFPages(source string, r io.ReaderAt, size int64) (pages []Page, err error) {
	// the parser panics on some malformed files
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed PDF: %v", p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			log.Warn().Err(err).Str("file", source).Int("page", i).Msg("Skipping unreadable page")
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{
			Content:  text,
			Metadata: PageMetadata{Source: source, Page: i},
		})
	}
	return pages, nil
}
