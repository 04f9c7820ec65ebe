package extract

import (
    "context"
    "fmt"

    "github.com/gen2brain/go-fitz"
    "github.com/rs/zerolog/log"
)

// FitzEngine mines tables out of PDF page text using go-fitz (MuPDF).
type FitzEngine struct{}

func NewFitzEngine() *FitzEngine { return &FitzEngine{} }

func (e *FitzEngine) Open(ctx context.Context, path string) (Document, error) {
    doc, err := fitz.New(path)
    if err != nil {
        return nil, fmt.Errorf("open document: %w", err)
    }
    if doc.NumPage() == 0 {
        _ = doc.Close()
        return nil, fmt.Errorf("open document: %s has no pages", path)
    }
    return &fitzDocument{doc: doc, path: path}, nil
}

type fitzDocument struct {
    doc  *fitz.Document
    path string
}

func (d *fitzDocument) TotalPages() int { return d.doc.NumPage() }

func (d *fitzDocument) Close() error { return d.doc.Close() }

// Tables scans the page interval for table blocks. A page whose text
// cannot be read contributes a single error item; the scan continues
// with the next page.
func (d *fitzDocument) Tables(ctx context.Context, startPage, endPage int) (Sequence, int, error) {
    if startPage < 1 || endPage > d.doc.NumPage() || startPage > endPage {
        return nil, 0, fmt.Errorf("page range %d-%d outside document (%d pages)", startPage, endPage, d.doc.NumPage())
    }

    var items []Item
    total := 0
    for p := startPage; p <= endPage; p++ {
        if err := ctx.Err(); err != nil {
            return nil, 0, err
        }
        // go-fitz pages are 0-based
        text, err := d.doc.Text(p - 1)
        if err != nil {
            items = append(items, Item{Page: p, Err: fmt.Errorf("read page %d: %w", p, err)})
            continue
        }
        tables := MineTables(text)
        if len(tables) == 0 {
            log.Debug().Int("page", p).Msg("no tables on page")
            continue
        }
        for i, rows := range tables {
            items = append(items, Item{Page: p, Table: Table{Page: p, Index: i, Rows: rows}})
            total++
        }
    }
    return &sliceSequence{items: items}, total, nil
}

// sliceSequence yields pre-detected items one at a time.
type sliceSequence struct {
    items []Item
    pos   int
}

func (s *sliceSequence) Next(ctx context.Context) (Item, bool) {
    if ctx.Err() != nil || s.pos >= len(s.items) {
        return Item{}, false
    }
    it := s.items[s.pos]
    s.pos++
    return it, true
}
