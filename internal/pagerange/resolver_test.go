package pagerange

import (
    "errors"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
    tests := []struct {
        name       string
        totalPages int
        req        Request
        pagesLeft  int
        override   bool
        want       Decision
        wantErr    error
    }{
        {
            name:       "full document fits quota",
            totalPages: 10, pagesLeft: 30,
            want: Decision{Start: 1, End: 10, PagesToProcess: 10},
        },
        {
            name:       "full document clamped to quota",
            totalPages: 50, pagesLeft: 5,
            want: Decision{Start: 1, End: 5, PagesToProcess: 5, Truncated: true},
        },
        {
            name:       "start after end",
            totalPages: 10, req: Request{Start: 3, End: 1}, pagesLeft: 30,
            wantErr: ErrInvalidRange,
        },
        {
            name:       "start past document",
            totalPages: 10, req: Request{Start: 11, End: 12}, pagesLeft: 30,
            wantErr: ErrOutOfBounds,
        },
        {
            name:       "single page from start only",
            totalPages: 10, req: Request{Start: 4}, pagesLeft: 30,
            want: Decision{Start: 4, End: 4, PagesToProcess: 1},
        },
        {
            name:       "end clamped to document",
            totalPages: 10, req: Request{Start: 8, End: 99}, pagesLeft: 30,
            want: Decision{Start: 8, End: 10, PagesToProcess: 3},
        },
        {
            name:       "explicit range clamped to quota preserves start",
            totalPages: 20, req: Request{Start: 5, End: 14}, pagesLeft: 3,
            want: Decision{Start: 5, End: 7, PagesToProcess: 3, Truncated: true},
        },
        {
            name:       "no quota left",
            totalPages: 10, pagesLeft: 0,
            wantErr: ErrQuotaExceeded,
        },
        {
            name:       "negative quota",
            totalPages: 10, pagesLeft: -2,
            wantErr: ErrQuotaExceeded,
        },
        {
            name:       "override bypasses quota entirely",
            totalPages: 50, pagesLeft: 0, override: true,
            want: Decision{Start: 1, End: 50, PagesToProcess: 50},
        },
        {
            name:       "override never truncates",
            totalPages: 20, req: Request{Start: 2, End: 19}, pagesLeft: 1, override: true,
            want: Decision{Start: 2, End: 19, PagesToProcess: 18},
        },
        {
            name:       "empty document",
            totalPages: 0, pagesLeft: 30,
            wantErr: ErrOutOfBounds,
        },
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            got, err := Resolve(tt.totalPages, tt.req, tt.pagesLeft, tt.override)
            if tt.wantErr != nil {
                require.Error(t, err)
                assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
                return
            }
            require.NoError(t, err)
            if tt.want.Truncated {
                assert.NotEmpty(t, got.Warning)
                got.Warning = ""
            }
            assert.Equal(t, tt.want, got)
        })
    }
}

// The resolver must never grant more pages than remain unless overridden.
func TestResolveNeverExceedsQuota(t *testing.T) {
    for total := 1; total <= 12; total++ {
        for left := 1; left <= 15; left++ {
            d, err := Resolve(total, Request{}, left, false)
            require.NoError(t, err)
            assert.LessOrEqual(t, d.PagesToProcess, left)
            assert.Equal(t, d.End-d.Start+1, d.PagesToProcess)
        }
    }
}
