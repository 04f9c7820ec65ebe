package quota

import (
    "context"
    "time"
)

// Record is one user's monthly page ledger.
type Record struct {
    UserID           string    `json:"user_id"`
    MonthlyPageLimit int       `json:"monthly_page_limit"`
    PagesProcessed   int       `json:"pages_processed_this_month"`
    LastResetAt      time.Time `json:"last_reset_at"`
}

// Remaining is the pages the user may still consume this month.
func (r Record) Remaining() int { return r.MonthlyPageLimit - r.PagesProcessed }

// Ledger owns the per-user counters. Debit must be atomic with respect
// to concurrent settlements for the same user.
type Ledger interface {
    Get(ctx context.Context, userID string) (Record, error)
    Debit(ctx context.Context, userID string, pages int) error
    // ResetAll zeroes every user's counter. A failure for one record is
    // counted as skipped and must not abort the sweep.
    ResetAll(ctx context.Context) (reset, skipped int, err error)
}

// Promotions answers whether a user currently holds an unlimited
// processing grant.
type Promotions interface {
    HasActiveOverride(ctx context.Context, userID string) (bool, error)
}
