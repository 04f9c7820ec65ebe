// Package pdftest builds small valid PDF files for tests, so tests do
// not need binary fixtures checked into the repo.
package pdftest

import (
    "bytes"
    "fmt"
    "os"
    "path/filepath"
    "testing"
)

// WriteMinimalPDF writes a syntactically valid PDF with the given number
// of empty pages into dir and returns its path. The xref table offsets
// are computed while writing, so the file passes strict parsers.
func WriteMinimalPDF(t *testing.T, dir string, pages int) string {
    t.Helper()
    if pages < 1 {
        pages = 1
    }

    var buf bytes.Buffer
    offsets := make([]int, 0, pages+3)
    obj := func(body string) {
        offsets = append(offsets, buf.Len())
        buf.WriteString(body)
    }

    buf.WriteString("%PDF-1.4\n")

    kids := ""
    for i := 0; i < pages; i++ {
        if i > 0 {
            kids += " "
        }
        kids += fmt.Sprintf("%d 0 R", 3+i)
    }
    obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
    obj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", kids, pages))
    for i := 0; i < pages; i++ {
        obj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n", 3+i))
    }

    xrefAt := buf.Len()
    fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
    buf.WriteString("0000000000 65535 f \n")
    for _, off := range offsets {
        fmt.Fprintf(&buf, "%010d 00000 n \n", off)
    }
    fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefAt)

    path := filepath.Join(dir, fmt.Sprintf("fixture_%dp.pdf", pages))
    if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
        t.Fatalf("write pdf fixture: %v", err)
    }
    return path
}
