package quota

import (
    "context"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/tableminer/internal/metrics"
)

// ResetLoop zeroes every user's counter on a fixed period, for the
// lifetime of the process, independent of request traffic.
type ResetLoop struct {
    ledger Ledger
    period time.Duration
    stop   chan struct{}
    done   chan struct{}
}

func NewResetLoop(ledger Ledger, period time.Duration) *ResetLoop {
    if period <= 0 {
        period = 168 * time.Hour
    }
    return &ResetLoop{ledger: ledger, period: period, stop: make(chan struct{}), done: make(chan struct{})}
}

func (l *ResetLoop) Start() {
    go l.run()
}

func (l *ResetLoop) Stop() {
    close(l.stop)
    <-l.done
}

func (l *ResetLoop) run() {
    defer close(l.done)
    log.Info().Dur("period", l.period).Msg("quota reset loop started")
    ticker := time.NewTicker(l.period)
    defer ticker.Stop()
    for {
        select {
        case <-l.stop:
            log.Info().Msg("quota reset loop stopped")
            return
        case <-ticker.C:
            l.sweep()
        }
    }
}

func (l *ResetLoop) sweep() {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
    defer cancel()
    reset, skipped, err := l.ledger.ResetAll(ctx)
    if err != nil {
        log.Error().Err(err).Msg("quota reset sweep failed")
        return
    }
    for i := 0; i < reset; i++ {
        metrics.IncReset("reset")
    }
    for i := 0; i < skipped; i++ {
        metrics.IncReset("skipped")
    }
    log.Info().Int("reset", reset).Int("skipped", skipped).Msg("quota reset sweep complete")
}
