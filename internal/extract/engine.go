package extract

import "context"

// Table is one artifact produced by the engine: a rectangular grid of
// cells mined from a single page.
type Table struct {
    Page  int // 1-based source page
    Index int // position of the table on its page
    Rows  [][]string
}

// Item is one attempt from the engine's lazy sequence. Either Table is
// populated or Err describes why this candidate could not be produced.
type Item struct {
    Page  int
    Table Table
    Err   error
}

// Sequence is a finite, page-ordered, non-restartable stream of
// extraction attempts. Next blocks while the engine works on the next
// candidate and returns false once the bounded range is exhausted.
type Sequence interface {
    Next(ctx context.Context) (Item, bool)
}

// Document is an opened, page-addressable document.
type Document interface {
    TotalPages() int
    // Tables detects tables over the inclusive page interval and returns
    // a sequence of extraction attempts plus the number of artifacts the
    // sequence is expected to produce. Detection is cheap; the expensive
    // per-artifact work happens as the sequence is consumed.
    Tables(ctx context.Context, startPage, endPage int) (Sequence, int, error)
    Close() error
}

// Engine is the external extraction capability. Open failures are fatal
// for the run; per-item failures inside a sequence are not.
type Engine interface {
    Open(ctx context.Context, path string) (Document, error)
}
