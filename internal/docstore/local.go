package docstore

import (
    "errors"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "strings"

    "github.com/gabriel-vasile/mimetype"
    "github.com/pdfcpu/pdfcpu/pkg/api"
    "github.com/rs/zerolog/log"
)

// ErrNotFound is returned for unknown document names.
var ErrNotFound = errors.New("document not found")

// ErrNotPDF is returned when a file fails the PDF signature check.
var ErrNotPDF = errors.New("file is not a valid PDF")

// Local stores uploaded documents as flat files under one directory.
type Local struct {
    dir string
}

func NewLocal(dir string) (*Local, error) {
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return nil, fmt.Errorf("create upload dir: %w", err)
    }
    return &Local{dir: dir}, nil
}

// Path maps a document name to its filesystem location. Names with path
// separators are rejected so callers cannot escape the upload dir.
func (s *Local) Path(name string) (string, error) {
    if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
        return "", fmt.Errorf("%w: bad document name %q", ErrNotFound, name)
    }
    return filepath.Join(s.dir, name), nil
}

func (s *Local) Exists(name string) bool {
    p, err := s.Path(name)
    if err != nil {
        return false
    }
    info, err := os.Stat(p)
    return err == nil && info.Mode().IsRegular()
}

func (s *Local) Readable(name string) bool {
    p, err := s.Path(name)
    if err != nil {
        return false
    }
    f, err := os.Open(p)
    if err != nil {
        return false
    }
    _ = f.Close()
    return true
}

// Save persists an uploaded document and validates its signature before
// accepting it.
func (s *Local) Save(name string, r io.Reader) (string, error) {
    p, err := s.Path(name)
    if err != nil {
        return "", err
    }
    f, err := os.Create(p)
    if err != nil {
        return "", fmt.Errorf("save upload: %w", err)
    }
    if _, err := io.Copy(f, r); err != nil {
        _ = f.Close()
        _ = os.Remove(p)
        return "", fmt.Errorf("write upload: %w", err)
    }
    if err := f.Close(); err != nil {
        return "", err
    }
    if err := ValidatePDF(p); err != nil {
        _ = os.Remove(p)
        return "", err
    }
    return p, nil
}

// ValidatePDF checks the magic-byte signature and that pdfcpu can count
// at least one page. Run before handing any path to the extraction
// engine.
func ValidatePDF(path string) error {
    mtype, err := mimetype.DetectFile(path)
    if err != nil {
        return fmt.Errorf("detect file type: %w", err)
    }
    if !mtype.Is("application/pdf") {
        log.Debug().Str("mime", mtype.String()).Str("file", path).Msg("rejected non-pdf upload")
        return fmt.Errorf("%w: detected %s", ErrNotPDF, mtype.String())
    }
    n, err := api.PageCountFile(path)
    if err != nil {
        return fmt.Errorf("%w: %v", ErrNotPDF, err)
    }
    if n <= 0 {
        return fmt.Errorf("%w: zero pages", ErrNotPDF)
    }
    return nil
}

// PageCount returns the pdfcpu page count for a stored document.
func PageCount(path string) (int, error) {
    n, err := api.PageCountFile(path)
    if err != nil {
        return 0, fmt.Errorf("pdf page count failed: %w", err)
    }
    return n, nil
}
