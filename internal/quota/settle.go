package quota

import (
    "context"

    "github.com/rs/zerolog/log"

    "github.com/local/tableminer/internal/metrics"
)

// Outcome reports how settlement ended.
type Outcome struct {
    Debited int
    // Degraded is set when the ledger write failed after a retry; the
    // run result is still delivered but with a settlement warning.
    Degraded bool
}

// Settle debits the ledger for one finished or cancelled run. The debit
// is the count of distinct pages that yielded at least one artifact,
// never pages merely attempted. With an active override nothing is
// debited. A run that was cancelled pays for what it already produced.
func Settle(ctx context.Context, ledger Ledger, userID string, distinctPages int, hasOverride bool) Outcome {
    if hasOverride {
        metrics.AddDebited(0, true)
        return Outcome{}
    }
    if distinctPages <= 0 {
        return Outcome{}
    }

    err := ledger.Debit(ctx, userID, distinctPages)
    if err != nil {
        log.Warn().Err(err).Str("user", userID).Int("pages", distinctPages).Msg("ledger debit failed; retrying once")
        err = ledger.Debit(ctx, userID, distinctPages)
    }
    if err != nil {
        log.Error().Err(err).Str("user", userID).Int("pages", distinctPages).Msg("ledger debit failed after retry; degrading response")
        return Outcome{Degraded: true}
    }
    metrics.AddDebited(distinctPages, false)
    return Outcome{Debited: distinctPages}
}
