// Package document resolves document sources into page-level text.
package document

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/docqa/pkg/textextract"
)

// Source identifies one document to ingest: either a filesystem path or an
// in-memory byte buffer with a logical name. Path wins when both are set.
type Source struct {
	Name string
	Path string
	Data []byte
}

// FromPath builds a Source backed by a file on disk.
func FromPath(path string) Source {
	return Source{Name: filepath.Base(path), Path: path}
}

// FromBytes builds a Source backed by an in-memory buffer.
func FromBytes(name string, data []byte) Source {
	return Source{Name: name, Data: data}
}

func (s Source) fileType() string {
	ext := filepath.Ext(s.Name)
	if ext == "" && s.Path != "" {
		ext = filepath.Ext(s.Path)
	}
	if ext == "" {
		ext = ".pdf"
	}
	return ext
}

// Page is the ordered text of one document page.
type Page struct {
	DocumentID uuid.UUID
	Document   string
	Number     int
	Text       string
}

// LoadError reports a document that could not be loaded: missing file,
// unparseable content, or no extractable text.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load document %q: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

type Loader struct{}

func NewLoader() *Loader { return &Loader{} }

// Load turns a Source into its ordered pages. It returns either all pages of
// the document or a LoadError; there are no partial results.
func (l *Loader) Load(ctx context.Context, src Source) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := src.Data
	if src.Path != "" {
		var err error
		data, err = os.ReadFile(src.Path)
		if err != nil {
			return nil, &LoadError{Name: src.Name, Err: err}
		}
	}
	if len(data) == 0 {
		return nil, &LoadError{Name: src.Name, Err: fmt.Errorf("empty document")}
	}

	extracted, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), src.fileType())
	if err != nil {
		return nil, &LoadError{Name: src.Name, Err: err}
	}

	docID := uuid.New()
	pages := make([]Page, 0, len(extracted.Pages))
	empty := true
	for _, p := range extracted.Pages {
		if strings.TrimSpace(p.Content) != "" {
			empty = false
		}
		pages = append(pages, Page{
			DocumentID: docID,
			Document:   src.Name,
			Number:     p.Number,
			Text:       p.Content,
		})
	}
	if empty {
		return nil, &LoadError{Name: src.Name, Err: fmt.Errorf("no extractable text")}
	}

	return pages, nil
}
