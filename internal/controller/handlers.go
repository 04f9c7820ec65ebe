package controller

import (
    "encoding/json"
    "net/http"
    "os"
    "path/filepath"
    "strings"

    "github.com/rs/zerolog/log"

    "github.com/local/tableminer/internal/ai"
    "github.com/local/tableminer/internal/docstore"
    "github.com/local/tableminer/internal/registry"
)

func (c *Controller) handleCancel(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var req struct {
        UserID     string `json:"user_id"`
        DocumentID string `json:"document_id"`
    }
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.DocumentID == "" {
        writeErr(w, http.StatusBadRequest, "bad_request", "missing user_id or document_id")
        return
    }
    key := registry.Key{UserID: req.UserID, DocumentID: req.DocumentID}
    accepted := c.deps.Registry.RequestCancel(key)
    if accepted {
        log.Info().Str("user", req.UserID).Str("doc", req.DocumentID).Msg("cancellation requested")
    }
    writeJSON(w, http.StatusOK, map[string]bool{"accepted": accepted})
}

func (c *Controller) handleStatus(w http.ResponseWriter, r *http.Request) {
    userID := r.URL.Query().Get("user_id")
    docID := r.URL.Query().Get("document_id")
    if userID == "" || docID == "" {
        writeErr(w, http.StatusBadRequest, "bad_request", "user_id and document_id query params are required")
        return
    }
    snap, ok := c.deps.Registry.Status(registry.Key{UserID: userID, DocumentID: docID})
    if !ok {
        writeErr(w, http.StatusNotFound, "not_found", "no run for this document")
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{
        "run_id":   snap.RunID,
        "status":   snap.State.String(),
        "progress": snap.Progress,
        "total":    snap.Total,
    })
}

// maxUploadBytes caps a single document upload at 100 MB.
const maxUploadBytes = 100 << 20

func (c *Controller) handleUpload(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
    if err := r.ParseMultipartForm(32 << 20); err != nil {
        writeErr(w, http.StatusBadRequest, "bad_request", "expected multipart form with a file field")
        return
    }
    file, hdr, err := r.FormFile("file")
    if err != nil {
        writeErr(w, http.StatusBadRequest, "bad_request", "file field is required")
        return
    }
    defer file.Close()

    name := filepath.Base(hdr.Filename)
    saved, err := c.deps.Docs.Save(name, file)
    if err != nil {
        writeTaxonomyErr(w, err, 0)
        return
    }
    pages, err := docstore.PageCount(saved)
    if err != nil {
        writeErr(w, http.StatusInternalServerError, "extraction_failure", err.Error())
        return
    }
    log.Info().Str("doc", name).Int("pages", pages).Msg("document uploaded")
    writeJSON(w, http.StatusOK, map[string]any{"document_id": name, "total_pages": pages})
}

func (c *Controller) handleDownload(w http.ResponseWriter, r *http.Request) {
    name := strings.TrimPrefix(r.URL.Path, "/download/")
    if name == "" || name != filepath.Base(name) {
        writeErr(w, http.StatusBadRequest, "bad_request", "invalid file name")
        return
    }
    path := filepath.Join(c.cfg.Extractor.OutputDir, name)
    if _, err := os.Stat(path); err != nil {
        writeErr(w, http.StatusNotFound, "not_found", "no such artifact")
        return
    }
    http.ServeFile(w, r, path)
}

func (c *Controller) handleUsage(w http.ResponseWriter, r *http.Request) {
    userID := r.URL.Query().Get("user_id")
    if userID == "" {
        writeErr(w, http.StatusBadRequest, "bad_request", "user_id query param is required")
        return
    }
    rec, err := c.deps.Ledger.Get(r.Context(), userID)
    if err != nil {
        writeErr(w, http.StatusInternalServerError, "ledger_unavailable", err.Error())
        return
    }
    override, err := c.deps.Promos.HasActiveOverride(r.Context(), userID)
    if err != nil {
        override = false
    }
    writeJSON(w, http.StatusOK, map[string]any{
        "user_id":                    rec.UserID,
        "monthly_page_limit":         rec.MonthlyPageLimit,
        "pages_processed_this_month": rec.PagesProcessed,
        "pages_left":                 rec.Remaining(),
        "last_reset_at":              rec.LastResetAt,
        "unlimited_override":         override,
    })
}

func (c *Controller) handleHealthDeps(w http.ResponseWriter, r *http.Request) {
    if c.deps.Health == nil {
        writeErr(w, http.StatusServiceUnavailable, "unavailable", "dependency checker not configured")
        return
    }
    writeJSON(w, http.StatusOK, c.deps.Health.Summary(r.Context()))
}

type askReq struct {
    Question  string `json:"question"`
    TableFile string `json:"table_file"` // a JSON artifact name from a prior run
}

func (c *Controller) handleAsk(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var req askReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" || req.TableFile == "" {
        writeErr(w, http.StatusBadRequest, "bad_request", "question and table_file are required")
        return
    }
    if req.TableFile != filepath.Base(req.TableFile) || !strings.HasSuffix(req.TableFile, ".json") {
        writeErr(w, http.StatusBadRequest, "bad_request", "table_file must be a json artifact name")
        return
    }
    tableJSON, err := os.ReadFile(filepath.Join(c.cfg.Extractor.OutputDir, req.TableFile))
    if err != nil {
        writeErr(w, http.StatusNotFound, "not_found", "no such table artifact")
        return
    }

    fo := ai.NewFailover(
        c.deps.AskPrimary, c.modelsFor(c.deps.AskPrimary),
        c.deps.AskSecondary, c.modelsFor(c.deps.AskSecondary),
        c.cfg.AI.RequestTimeout, c.breaker,
    )
    resp, provider, err := fo.Ask(req.Question, string(tableJSON))
    if err != nil {
        writeErr(w, http.StatusBadGateway, "ai_unavailable", err.Error())
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{
        "answer":     resp.Text,
        "provider":   provider,
        "tokens_in":  resp.TokensIn,
        "tokens_out": resp.TokensOut,
    })
}

func (c *Controller) modelsFor(client ai.Client) ai.ModelPair {
    if client == nil {
        return ai.ModelPair{}
    }
    switch client.Name() {
    case "anthropic":
        return ai.ModelPair{Primary: c.cfg.AI.Anthropic.Primary, Secondary: c.cfg.AI.Anthropic.Secondary}
    default:
        return ai.ModelPair{Primary: c.cfg.AI.OpenAI.Primary, Secondary: c.cfg.AI.OpenAI.Secondary}
    }
}
