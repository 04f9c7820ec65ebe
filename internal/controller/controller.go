package controller

import (
    "context"
    "encoding/json"
    "net/http"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/tableminer/internal/ai"
    "github.com/local/tableminer/internal/config"
    "github.com/local/tableminer/internal/docstore"
    "github.com/local/tableminer/internal/extract"
    "github.com/local/tableminer/internal/limiter"
    "github.com/local/tableminer/internal/metrics"
    "github.com/local/tableminer/internal/output"
    "github.com/local/tableminer/internal/pagerange"
    "github.com/local/tableminer/internal/quota"
    "github.com/local/tableminer/internal/registry"
    "github.com/local/tableminer/internal/runner"
    "github.com/local/tableminer/internal/statuscheck"
)

// Dependencies are the controller's collaborators.
type Dependencies struct {
    Ledger   quota.Ledger
    Promos   quota.Promotions
    Registry *registry.Registry
    Engine   extract.Engine
    Docs     *docstore.Local
    Runs     *limiter.Runs

    // Q&A providers; either may be nil when unconfigured.
    AskPrimary   ai.Client
    AskSecondary ai.Client

    Health *statuscheck.Checker
}

type Controller struct {
    cfg     config.Config
    deps    Dependencies
    breaker *ai.Breaker
}

func New(cfg config.Config, deps Dependencies) *Controller {
    return &Controller{cfg: cfg, deps: deps, breaker: ai.NewBreaker(30*time.Second, 5*time.Minute)}
}

func (c *Controller) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); _, _ = w.Write([]byte("ok")) })
    mux.HandleFunc("/health/deps", c.handleHealthDeps)
    mux.HandleFunc("/upload", c.handleUpload)
    mux.HandleFunc("/process", c.handleProcess)
    mux.HandleFunc("/cancel", c.handleCancel)
    mux.HandleFunc("/status", c.handleStatus)
    mux.HandleFunc("/download/", c.handleDownload)
    mux.HandleFunc("/v1/usage", c.handleUsage)
    mux.HandleFunc("/ask", c.handleAsk)
}

type processReq struct {
    DocumentID string `json:"document_id"`
    OutputKind string `json:"output_kind"`
    StartPage  int    `json:"start_page,omitempty"`
    EndPage    int    `json:"end_page,omitempty"`
    UserID     string `json:"user_id"`
}

type processResp struct {
    Artifacts         []runner.Artifact `json:"artifacts"`
    TotalPages        int               `json:"total_pages"`
    ProcessedPages    int               `json:"processed_pages"`
    ProcessedTables   int               `json:"processed_tables"`
    Truncated         bool              `json:"truncated"`
    Warning           string            `json:"warning,omitempty"`
    Cancelled         bool              `json:"cancelled,omitempty"`
    Debited           int               `json:"debited"`
    SettlementWarning string            `json:"settlement_warning,omitempty"`
    Message           string            `json:"message,omitempty"`
}

func (c *Controller) handleProcess(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    defer r.Body.Close()
    var req processReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeErr(w, http.StatusBadRequest, "bad_request", "invalid json")
        return
    }
    if req.UserID == "" || req.DocumentID == "" {
        writeErr(w, http.StatusBadRequest, "bad_request", "missing user_id or document_id")
        return
    }
    kind, err := output.ParseKind(req.OutputKind)
    if err != nil {
        writeErr(w, http.StatusBadRequest, "bad_request", err.Error())
        return
    }

    release, ok := c.deps.Runs.Allow()
    if !ok {
        writeErr(w, http.StatusServiceUnavailable, "busy", "too many extraction runs in flight; retry shortly")
        return
    }
    defer release()

    ctx := r.Context()

    // Locate and validate the document before touching quota state.
    docPath, cleanup, err := c.materialize(ctx, req.DocumentID)
    if err != nil {
        writeTaxonomyErr(w, err, 0)
        return
    }
    defer cleanup()
    if err := docstore.ValidatePDF(docPath); err != nil {
        writeTaxonomyErr(w, err, 0)
        return
    }

    override, err := c.deps.Promos.HasActiveOverride(ctx, req.UserID)
    if err != nil {
        log.Warn().Err(err).Str("user", req.UserID).Msg("promotion lookup failed; treating as no override")
        override = false
    }
    rec, err := c.deps.Ledger.Get(ctx, req.UserID)
    if err != nil {
        writeErr(w, http.StatusInternalServerError, "ledger_unavailable", err.Error())
        return
    }

    doc, err := c.deps.Engine.Open(ctx, docPath)
    if err != nil {
        writeTaxonomyErr(w, err, 0)
        return
    }
    defer doc.Close()

    dec, err := pagerange.Resolve(doc.TotalPages(), pagerange.Request{Start: req.StartPage, End: req.EndPage}, rec.Remaining(), override)
    if err != nil {
        writeTaxonomyErr(w, err, rec.Remaining())
        return
    }

    key := registry.Key{UserID: req.UserID, DocumentID: req.DocumentID}
    h, err := c.deps.Registry.Begin(key, 0)
    if err != nil {
        writeTaxonomyErr(w, err, 0)
        return
    }
    metrics.JobStarted()
    defer metrics.JobDone()

    started := time.Now()
    log.Info().Str("run_id", h.RunID()).Str("user", req.UserID).Str("doc", req.DocumentID).
        Int("start", dec.Start).Int("end", dec.End).Bool("override", override).Bool("truncated", dec.Truncated).
        Msg("extraction run started")

    seq, tablesTotal, err := doc.Tables(ctx, dec.Start, dec.End)
    if err != nil {
        h.Finish(registry.StateFailed)
        c.deps.Registry.Retire(key)
        metrics.ObserveRun("failed", time.Since(started))
        writeTaxonomyErr(w, err, 0)
        return
    }
    h.SetTotal(tablesTotal)

    writer, err := output.NewWriter(c.cfg.Extractor.OutputDir, kind, docPath, c.cfg.Extractor.SnapshotDPI, c.cfg.Extractor.SnapshotJPEGQ)
    if err != nil {
        h.Finish(registry.StateFailed)
        c.deps.Registry.Retire(key)
        metrics.ObserveRun("failed", time.Since(started))
        writeErr(w, http.StatusInternalServerError, "output_unavailable", err.Error())
        return
    }

    res := runner.New(writer).Run(ctx, seq, h)

    outcome := registry.StateFinished
    if res.Cancelled {
        outcome = registry.StateCancelled
    }
    h.Finish(outcome)

    settle := quota.Settle(context.WithoutCancel(ctx), c.deps.Ledger, req.UserID, res.DistinctPages(), override)
    metrics.IncTables(len(res.Artifacts))
    metrics.ObserveRun(runOutcomeLabel(outcome, res), time.Since(started))

    if c.cfg.Extractor.UploadResults && len(res.Artifacts) > 0 {
        if err := output.UploadResults(ctx, c.cfg.Extractor.S3Bucket, c.cfg.Extractor.OutputDir, h.RunID(), artifactFiles(res.Artifacts)); err != nil {
            log.Warn().Err(err).Str("run_id", h.RunID()).Msg("result upload incomplete")
        }
    }

    resp := processResp{
        Artifacts:       res.Artifacts,
        TotalPages:      doc.TotalPages(),
        ProcessedPages:  res.DistinctPages(),
        ProcessedTables: len(res.Artifacts),
        Truncated:       dec.Truncated,
        Warning:         dec.Warning,
        Cancelled:       res.Cancelled,
        Debited:         settle.Debited,
    }
    if resp.Artifacts == nil {
        resp.Artifacts = []runner.Artifact{}
    }
    if settle.Degraded {
        resp.SettlementWarning = "usage could not be recorded; it will be reconciled later"
    }
    if len(res.Artifacts) == 0 && !res.Cancelled {
        resp.Message = "no tables were found in the requested pages"
    }

    log.Info().Str("run_id", h.RunID()).Str("outcome", outcome.String()).
        Int("tables", len(res.Artifacts)).Int("pages_debited", settle.Debited).
        Dur("took", time.Since(started)).Msg("extraction run settled")

    // The terminal state travels in this response, so the entry can go.
    c.deps.Registry.Retire(key)

    writeJSON(w, http.StatusOK, resp)
}

// materialize resolves a document reference to a local path. Plain names
// are served from the upload store; s3:// and http(s):// references are
// fetched to a temp file.
func (c *Controller) materialize(ctx context.Context, documentID string) (string, func(), error) {
    if isRemoteRef(documentID) {
        return docstore.Fetch(ctx, documentID)
    }
    if !c.deps.Docs.Exists(documentID) {
        return "", func() {}, docstore.ErrNotFound
    }
    if !c.deps.Docs.Readable(documentID) {
        return "", func() {}, docstore.ErrNotFound
    }
    p, err := c.deps.Docs.Path(documentID)
    return p, func() {}, err
}

func isRemoteRef(ref string) bool {
    for _, p := range []string{"s3://", "http://", "https://", "file://"} {
        if len(ref) > len(p) && ref[:len(p)] == p {
            return true
        }
    }
    return false
}

func runOutcomeLabel(outcome registry.State, res runner.Result) string {
    if outcome == registry.StateCancelled {
        return "cancelled"
    }
    if len(res.Artifacts) == 0 {
        return "empty"
    }
    return "finished"
}

func artifactFiles(arts []runner.Artifact) []string {
    var files []string
    seen := map[string]bool{}
    add := func(n string) {
        if n != "" && !seen[n] {
            seen[n] = true
            files = append(files, n)
        }
    }
    for _, a := range arts {
        add(a.JSONFile)
        add(a.CSVFile)
        add(a.ImageFile)
    }
    return files
}
