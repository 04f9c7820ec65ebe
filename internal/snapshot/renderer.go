package snapshot

import (
    "bytes"
    "fmt"
    "image/jpeg"

    "github.com/gen2brain/go-fitz"
    "github.com/rs/zerolog/log"
)

// RenderPageJPEG renders one PDF page as an in-memory JPEG. Pages are
// 1-based; go-fitz indexes from zero.
func RenderPageJPEG(pdfPath string, page, dpi, quality int) ([]byte, error) {
    doc, err := fitz.New(pdfPath)
    if err != nil {
        return nil, fmt.Errorf("open pdf: %w", err)
    }
    defer doc.Close()

    if page < 1 || page > doc.NumPage() {
        return nil, fmt.Errorf("page %d outside document (%d pages)", page, doc.NumPage())
    }

    img, err := doc.ImageDPI(page-1, float64(dpi))
    if err != nil {
        return nil, fmt.Errorf("render page %d: %w", page, err)
    }

    var buf bytes.Buffer
    if quality <= 0 || quality > 100 {
        quality = 85
    }
    if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
        return nil, fmt.Errorf("encode jpeg: %w", err)
    }

    log.Debug().Int("page", page).Int("dpi", dpi).Int("bytes", buf.Len()).Msg("rendered page snapshot")
    return buf.Bytes(), nil
}
