package pagerange

import (
    "errors"
    "fmt"
)

var (
    // ErrInvalidRange is returned when start > end.
    ErrInvalidRange = errors.New("invalid page range")
    // ErrOutOfBounds is returned when the requested start lies past the document.
    ErrOutOfBounds = errors.New("start page out of bounds")
    // ErrQuotaExceeded is returned when no quota remains for the request.
    ErrQuotaExceeded = errors.New("monthly page quota exceeded")
)

// Decision is the resolved, quota-consistent page interval for one run.
// Pages are 1-based and the interval is inclusive.
type Decision struct {
    Start          int
    End            int
    PagesToProcess int
    Truncated      bool
    Warning        string
}

// Request carries the optional user-requested bounds. Zero means "not given".
type Request struct {
    Start int
    End   int
}

// Resolve computes the authoritative page interval from the document size,
// the requested bounds, and the pages the user has left this month.
// With hasOverride set the computed range is returned as-is and quota is
// ignored entirely.
func Resolve(totalPages int, req Request, pagesLeft int, hasOverride bool) (Decision, error) {
    if totalPages <= 0 {
        return Decision{}, fmt.Errorf("%w: document has no pages", ErrOutOfBounds)
    }

    var d Decision
    switch {
    case req.Start > 0 && req.End > 0:
        if req.Start > req.End {
            return Decision{}, fmt.Errorf("%w: start %d > end %d", ErrInvalidRange, req.Start, req.End)
        }
        if req.Start > totalPages {
            return Decision{}, fmt.Errorf("%w: start %d, document has %d pages", ErrOutOfBounds, req.Start, totalPages)
        }
        end := req.End
        if end > totalPages { end = totalPages }
        d = Decision{Start: req.Start, End: end}
    case req.Start > 0:
        // single page
        if req.Start > totalPages {
            return Decision{}, fmt.Errorf("%w: start %d, document has %d pages", ErrOutOfBounds, req.Start, totalPages)
        }
        d = Decision{Start: req.Start, End: req.Start}
    case req.End > 0:
        d = Decision{Start: 1, End: min(req.End, totalPages)}
    default:
        d = Decision{Start: 1, End: totalPages}
    }
    d.PagesToProcess = d.End - d.Start + 1

    if hasOverride {
        return d, nil
    }

    if d.PagesToProcess > pagesLeft {
        if pagesLeft <= 0 {
            return Decision{}, fmt.Errorf("%w: 0 pages left this month", ErrQuotaExceeded)
        }
        requested := d.PagesToProcess
        d.End = d.Start + pagesLeft - 1
        d.PagesToProcess = pagesLeft
        d.Truncated = true
        d.Warning = fmt.Sprintf("requested %d pages but only %d left this month; processing pages %d-%d", requested, pagesLeft, d.Start, d.End)
    }
    return d, nil
}
