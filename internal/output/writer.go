package output

import (
    "context"
    "encoding/csv"
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"

    "github.com/rs/zerolog/log"

    "github.com/local/tableminer/internal/extract"
    "github.com/local/tableminer/internal/runner"
    "github.com/local/tableminer/internal/snapshot"
)

// Kind selects which artifact files a run produces.
type Kind string

const (
    KindJSON Kind = "json"
    KindCSV  Kind = "csv"
    KindBoth Kind = "both"
)

// ParseKind validates a requested output kind, defaulting to json.
func ParseKind(s string) (Kind, error) {
    switch Kind(s) {
    case KindJSON, KindCSV, KindBoth:
        return Kind(s), nil
    case "":
        return KindJSON, nil
    }
    return "", fmt.Errorf("invalid output kind %q", s)
}

// Writer persists extracted tables for one run: JSON and/or CSV per
// table plus a JPEG snapshot of the source page. Page snapshots are
// rendered once and shared by every table on that page.
type Writer struct {
    dir     string
    kind    Kind
    docPath string
    dpi     int
    quality int

    pageImages map[int]string
}

func NewWriter(dir string, kind Kind, docPath string, dpi, quality int) (*Writer, error) {
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return nil, fmt.Errorf("create output dir: %w", err)
    }
    return &Writer{dir: dir, kind: kind, docPath: docPath, dpi: dpi, quality: quality, pageImages: make(map[int]string)}, nil
}

// Write implements runner.Sink.
func (w *Writer) Write(ctx context.Context, runID string, t extract.Table) (runner.Artifact, error) {
    if err := ctx.Err(); err != nil {
        return runner.Artifact{}, err
    }
    base := fmt.Sprintf("%s_page%d_table%d", runID, t.Page, t.Index)
    art := runner.Artifact{Page: t.Page, Index: t.Index}

    if w.kind == KindJSON || w.kind == KindBoth {
        name := base + ".json"
        b, err := json.MarshalIndent(t.Rows, "", "  ")
        if err != nil {
            return runner.Artifact{}, fmt.Errorf("marshal table: %w", err)
        }
        if err := os.WriteFile(filepath.Join(w.dir, name), b, 0o644); err != nil {
            return runner.Artifact{}, fmt.Errorf("write json artifact: %w", err)
        }
        art.JSONFile = name
    }

    if w.kind == KindCSV || w.kind == KindBoth {
        name := base + ".csv"
        if err := w.writeCSV(filepath.Join(w.dir, name), t.Rows); err != nil {
            return runner.Artifact{}, err
        }
        art.CSVFile = name
    }

    img, err := w.pageImage(runID, t.Page)
    if err != nil {
        // snapshot failure does not invalidate the table data
        log.Warn().Err(err).Int("page", t.Page).Msg("page snapshot failed")
    } else {
        art.ImageFile = img
    }

    return art, nil
}

func (w *Writer) writeCSV(path string, rows [][]string) error {
    f, err := os.Create(path)
    if err != nil {
        return fmt.Errorf("write csv artifact: %w", err)
    }
    cw := csv.NewWriter(f)
    if err := cw.WriteAll(rows); err != nil {
        _ = f.Close()
        return fmt.Errorf("write csv artifact: %w", err)
    }
    return f.Close()
}

func (w *Writer) pageImage(runID string, page int) (string, error) {
    if name, ok := w.pageImages[page]; ok {
        return name, nil
    }
    b, err := snapshot.RenderPageJPEG(w.docPath, page, w.dpi, w.quality)
    if err != nil {
        return "", err
    }
    name := fmt.Sprintf("%s_page%d.jpg", runID, page)
    if err := os.WriteFile(filepath.Join(w.dir, name), b, 0o644); err != nil {
        return "", err
    }
    w.pageImages[page] = name
    return name, nil
}
