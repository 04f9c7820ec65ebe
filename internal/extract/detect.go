package extract

import (
    "regexp"
    "strings"
)

// colSplit breaks a line into cells on tabs or runs of 2+ spaces.
var colSplit = regexp.MustCompile(`\t+| {2,}`)

// MineTables finds table-like blocks in extracted page text: two or more
// consecutive lines that all split into at least two columns. Rows are
// padded to the widest row of their block so every table is rectangular.
func MineTables(text string) [][][]string {
    var tables [][][]string
    var block [][]string

    flush := func() {
        if len(block) >= 2 {
            tables = append(tables, squareOff(block))
        }
        block = nil
    }

    for _, line := range strings.Split(text, "\n") {
        cells := splitColumns(line)
        if len(cells) >= 2 {
            block = append(block, cells)
            continue
        }
        flush()
    }
    flush()
    return tables
}

func splitColumns(line string) []string {
    line = strings.TrimRight(line, " \t\r")
    if strings.TrimSpace(line) == "" {
        return nil
    }
    parts := colSplit.Split(strings.TrimLeft(line, " \t"), -1)
    cells := parts[:0]
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" {
            cells = append(cells, p)
        }
    }
    return cells
}

func squareOff(rows [][]string) [][]string {
    width := 0
    for _, r := range rows {
        if len(r) > width {
            width = len(r)
        }
    }
    for i, r := range rows {
        for len(r) < width {
            r = append(r, "")
        }
        rows[i] = r
    }
    return rows
}
