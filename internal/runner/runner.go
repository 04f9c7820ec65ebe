package runner

import (
    "context"

    "github.com/rs/zerolog/log"

    "github.com/local/tableminer/internal/extract"
    "github.com/local/tableminer/internal/registry"
)

// Artifact describes one materialized table: where it came from and the
// files the sink produced for it.
type Artifact struct {
    Page      int    `json:"page"`
    Index     int    `json:"table_index"`
    JSONFile  string `json:"json_file,omitempty"`
    CSVFile   string `json:"csv_file,omitempty"`
    ImageFile string `json:"image_file,omitempty"`
}

// Sink persists one extracted table and returns its descriptor.
type Sink interface {
    Write(ctx context.Context, runID string, t extract.Table) (Artifact, error)
}

// Result is what one run accumulated before it finished or was cancelled.
type Result struct {
    Artifacts      []Artifact
    ProcessedPages map[int]struct{}
    Cancelled      bool
}

// DistinctPages is the number of pages that yielded at least one
// artifact. This, not pages attempted, is what settlement debits.
func (r Result) DistinctPages() int { return len(r.ProcessedPages) }

// Runner drives an extraction sequence to completion, checking the job's
// cancellation flag between items.
type Runner struct {
    sink Sink
}

func New(sink Sink) *Runner { return &Runner{sink: sink} }

// Run consumes the sequence item by item. A cancel request observed
// before pulling an item stops the run with whatever has accumulated;
// the in-progress item is never half-applied. Per-item failures are
// logged and skipped.
func (r *Runner) Run(ctx context.Context, seq extract.Sequence, h *registry.Handle) Result {
    res := Result{ProcessedPages: make(map[int]struct{})}
    runID := h.RunID()

    for {
        if h.CancelRequested() {
            log.Info().Str("run_id", runID).Int("artifacts", len(res.Artifacts)).Msg("cancel requested; stopping run")
            res.Cancelled = true
            return res
        }
        item, ok := seq.Next(ctx)
        if !ok {
            return res
        }
        if item.Err != nil {
            log.Warn().Err(item.Err).Str("run_id", runID).Int("page", item.Page).Msg("skipping failed extraction item")
            continue
        }
        art, err := r.sink.Write(ctx, runID, item.Table)
        if err != nil {
            log.Warn().Err(err).Str("run_id", runID).Int("page", item.Page).Int("table", item.Table.Index).Msg("artifact write failed; skipping table")
            continue
        }
        res.ProcessedPages[item.Page] = struct{}{}
        res.Artifacts = append(res.Artifacts, art)
        h.Tick()
    }
}
