package controller

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "net/http/httptest"
    "os"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/local/tableminer/internal/ai"
    "github.com/local/tableminer/internal/config"
    "github.com/local/tableminer/internal/docstore"
    "github.com/local/tableminer/internal/extract"
    "github.com/local/tableminer/internal/limiter"
    "github.com/local/tableminer/internal/pdftest"
    "github.com/local/tableminer/internal/quota"
    "github.com/local/tableminer/internal/registry"
)

type fakeLedger struct {
    recs       map[string]quota.Record
    failDebits int
    debited    map[string]int
}

func newFakeLedger() *fakeLedger {
    return &fakeLedger{recs: map[string]quota.Record{}, debited: map[string]int{}}
}

func (l *fakeLedger) Get(_ context.Context, userID string) (quota.Record, error) {
    r, ok := l.recs[userID]
    if !ok {
        r = quota.Record{UserID: userID, MonthlyPageLimit: 30}
    }
    return r, nil
}

func (l *fakeLedger) Debit(_ context.Context, userID string, pages int) error {
    if l.failDebits > 0 {
        l.failDebits--
        return errors.New("ledger write refused")
    }
    l.debited[userID] += pages
    return nil
}

func (l *fakeLedger) ResetAll(context.Context) (int, int, error) { return 0, 0, nil }

type fakePromos struct{ override bool }

func (p *fakePromos) HasActiveOverride(context.Context, string) (bool, error) {
    return p.override, nil
}

type fakeSeq struct {
    items []extract.Item
    i     int
}

func (s *fakeSeq) Next(context.Context) (extract.Item, bool) {
    if s.i >= len(s.items) {
        return extract.Item{}, false
    }
    it := s.items[s.i]
    s.i++
    return it, true
}

type fakeDoc struct {
    total    int
    items    []extract.Item
    gotStart int
    gotEnd   int
    openErr  error
}

func (d *fakeDoc) TotalPages() int { return d.total }

func (d *fakeDoc) Tables(_ context.Context, start, end int) (extract.Sequence, int, error) {
    d.gotStart, d.gotEnd = start, end
    var in []extract.Item
    for _, it := range d.items {
        if it.Page >= start && it.Page <= end {
            in = append(in, it)
        }
    }
    return &fakeSeq{items: in}, len(in), nil
}

func (d *fakeDoc) Close() error { return nil }

type fakeEngine struct {
    doc *fakeDoc
}

func (e *fakeEngine) Open(context.Context, string) (extract.Document, error) {
    if e.doc.openErr != nil {
        return nil, e.doc.openErr
    }
    return e.doc, nil
}

func tableItem(page, idx int) extract.Item {
    return extract.Item{Page: page, Table: extract.Table{Page: page, Index: idx, Rows: [][]string{{"h1", "h2"}, {"a", "b"}}}}
}

type harness struct {
    ctrl   *Controller
    reg    *registry.Registry
    ledger *fakeLedger
    promos *fakePromos
    doc    *fakeDoc
}

func newHarness(t *testing.T) *harness {
    t.Helper()
    cfg := config.Config{
        Extractor: config.ExtractorConfig{
            UploadDir:     t.TempDir(),
            OutputDir:     t.TempDir(),
            SnapshotDPI:   150,
            SnapshotJPEGQ: 85,
        },
        AI: config.AIConfig{RequestTimeout: time.Second},
    }
    docs, err := docstore.NewLocal(cfg.Extractor.UploadDir)
    require.NoError(t, err)

    fixture := pdftest.WriteMinimalPDF(t, t.TempDir(), 3)
    f, err := os.Open(fixture)
    require.NoError(t, err)
    defer f.Close()
    _, err = docs.Save("doc.pdf", f)
    require.NoError(t, err)

    h := &harness{
        reg:    registry.New(),
        ledger: newFakeLedger(),
        promos: &fakePromos{},
        doc:    &fakeDoc{total: 3, items: []extract.Item{tableItem(1, 0), tableItem(2, 0)}},
    }
    h.ctrl = New(cfg, Dependencies{
        Ledger:   h.ledger,
        Promos:   h.promos,
        Registry: h.reg,
        Engine:   &fakeEngine{doc: h.doc},
        Docs:     docs,
        Runs:     limiter.NewRuns(2),
    })
    return h
}

func (h *harness) process(t *testing.T, req processReq) (*httptest.ResponseRecorder, processResp) {
    t.Helper()
    body, err := json.Marshal(req)
    require.NoError(t, err)
    rec := httptest.NewRecorder()
    h.ctrl.handleProcess(rec, httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(body)))
    var resp processResp
    if rec.Code == http.StatusOK {
        require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    }
    return rec, resp
}

func TestProcessHappyPath(t *testing.T) {
    h := newHarness(t)

    rec, resp := h.process(t, processReq{UserID: "u1", DocumentID: "doc.pdf"})
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

    assert.Len(t, resp.Artifacts, 2)
    assert.Equal(t, 3, resp.TotalPages)
    assert.Equal(t, 2, resp.ProcessedPages)
    assert.Equal(t, 2, resp.ProcessedTables)
    assert.Equal(t, 2, resp.Debited)
    assert.False(t, resp.Truncated)
    assert.Equal(t, 2, h.ledger.debited["u1"])

    _, ok := h.reg.Status(registry.Key{UserID: "u1", DocumentID: "doc.pdf"})
    assert.False(t, ok, "entry is retired once the result is delivered")
}

func TestProcessQuotaExceeded(t *testing.T) {
    h := newHarness(t)
    h.ledger.recs["u1"] = quota.Record{UserID: "u1", MonthlyPageLimit: 30, PagesProcessed: 30}

    rec, _ := h.process(t, processReq{UserID: "u1", DocumentID: "doc.pdf"})
    require.Equal(t, http.StatusForbidden, rec.Code)

    var body struct {
        Error     string `json:"error"`
        PagesLeft *int   `json:"pages_left"`
    }
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
    assert.Equal(t, "quota_exceeded", body.Error)
    require.NotNil(t, body.PagesLeft)
    assert.Equal(t, 0, *body.PagesLeft)
    assert.Zero(t, h.ledger.debited["u1"])
}

func TestProcessTruncatesToRemainingQuota(t *testing.T) {
    h := newHarness(t)
    h.ledger.recs["u1"] = quota.Record{UserID: "u1", MonthlyPageLimit: 30, PagesProcessed: 29}

    rec, resp := h.process(t, processReq{UserID: "u1", DocumentID: "doc.pdf", StartPage: 1, EndPage: 3})
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

    assert.True(t, resp.Truncated)
    assert.NotEmpty(t, resp.Warning)
    assert.Equal(t, 1, h.doc.gotStart)
    assert.Equal(t, 1, h.doc.gotEnd)
    assert.LessOrEqual(t, resp.Debited, 1)
}

func TestProcessOverrideSkipsClampAndDebit(t *testing.T) {
    h := newHarness(t)
    h.promos.override = true
    h.ledger.recs["u1"] = quota.Record{UserID: "u1", MonthlyPageLimit: 30, PagesProcessed: 30}

    rec, resp := h.process(t, processReq{UserID: "u1", DocumentID: "doc.pdf"})
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

    assert.Equal(t, 1, h.doc.gotStart)
    assert.Equal(t, 3, h.doc.gotEnd)
    assert.Zero(t, resp.Debited)
    assert.Zero(t, h.ledger.debited["u1"])
}

func TestProcessConflictWhileRunning(t *testing.T) {
    h := newHarness(t)
    _, err := h.reg.Begin(registry.Key{UserID: "u1", DocumentID: "doc.pdf"}, 5)
    require.NoError(t, err)

    rec, _ := h.process(t, processReq{UserID: "u1", DocumentID: "doc.pdf"})
    assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProcessInvalidRange(t *testing.T) {
    h := newHarness(t)

    rec, _ := h.process(t, processReq{UserID: "u1", DocumentID: "doc.pdf", StartPage: 3, EndPage: 1})
    assert.Equal(t, http.StatusBadRequest, rec.Code)

    rec, _ = h.process(t, processReq{UserID: "u1", DocumentID: "doc.pdf", StartPage: 9})
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessUnknownDocument(t *testing.T) {
    h := newHarness(t)

    rec, _ := h.process(t, processReq{UserID: "u1", DocumentID: "missing.pdf"})
    assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcessDegradesWhenSettlementFails(t *testing.T) {
    h := newHarness(t)
    h.ledger.failDebits = 2 // first try and the retry

    rec, resp := h.process(t, processReq{UserID: "u1", DocumentID: "doc.pdf"})
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

    assert.Len(t, resp.Artifacts, 2)
    assert.Zero(t, resp.Debited)
    assert.NotEmpty(t, resp.SettlementWarning)
}

func TestProcessNoTablesFound(t *testing.T) {
    h := newHarness(t)
    h.doc.items = nil

    rec, resp := h.process(t, processReq{UserID: "u1", DocumentID: "doc.pdf"})
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

    assert.Empty(t, resp.Artifacts)
    assert.Zero(t, resp.Debited)
    assert.NotEmpty(t, resp.Message)
}

func TestProcessBusyWhenLimiterFull(t *testing.T) {
    h := newHarness(t)
    h.ctrl.deps.Runs = limiter.NewRuns(1)
    release, ok := h.ctrl.deps.Runs.Allow()
    require.True(t, ok)
    defer release()

    rec, _ := h.process(t, processReq{UserID: "u1", DocumentID: "doc.pdf"})
    assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCancelWithoutRun(t *testing.T) {
    h := newHarness(t)

    body := []byte(`{"user_id":"u1","document_id":"doc.pdf"}`)
    rec := httptest.NewRecorder()
    h.ctrl.handleCancel(rec, httptest.NewRequest(http.MethodPost, "/cancel", bytes.NewReader(body)))
    require.Equal(t, http.StatusOK, rec.Code)

    var resp map[string]bool
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    assert.False(t, resp["accepted"])
}

func TestCancelRunningJob(t *testing.T) {
    h := newHarness(t)
    _, err := h.reg.Begin(registry.Key{UserID: "u1", DocumentID: "doc.pdf"}, 5)
    require.NoError(t, err)

    body := []byte(`{"user_id":"u1","document_id":"doc.pdf"}`)
    rec := httptest.NewRecorder()
    h.ctrl.handleCancel(rec, httptest.NewRequest(http.MethodPost, "/cancel", bytes.NewReader(body)))

    var resp map[string]bool
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    assert.True(t, resp["accepted"])
}

func TestStatusLifecycle(t *testing.T) {
    h := newHarness(t)

    rec := httptest.NewRecorder()
    h.ctrl.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status?user_id=u1&document_id=doc.pdf", nil))
    assert.Equal(t, http.StatusNotFound, rec.Code)

    hd, err := h.reg.Begin(registry.Key{UserID: "u1", DocumentID: "doc.pdf"}, 4)
    require.NoError(t, err)
    hd.Tick()

    rec = httptest.NewRecorder()
    h.ctrl.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status?user_id=u1&document_id=doc.pdf", nil))
    require.Equal(t, http.StatusOK, rec.Code)

    var resp struct {
        Status   string `json:"status"`
        Progress int    `json:"progress"`
        Total    int    `json:"total"`
    }
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    assert.Equal(t, "running", resp.Status)
    assert.Equal(t, 1, resp.Progress)
    assert.Equal(t, 4, resp.Total)
}

func TestUsageReportsLedger(t *testing.T) {
    h := newHarness(t)
    h.ledger.recs["u1"] = quota.Record{UserID: "u1", MonthlyPageLimit: 30, PagesProcessed: 12}

    rec := httptest.NewRecorder()
    h.ctrl.handleUsage(rec, httptest.NewRequest(http.MethodGet, "/v1/usage?user_id=u1", nil))
    require.Equal(t, http.StatusOK, rec.Code)

    var resp map[string]any
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    assert.Equal(t, float64(18), resp["pages_left"])
}

type fakeAI struct {
    name  string
    calls []string // models asked for
    errs  []error  // popped per call; nil means success
}

func (c *fakeAI) Name() string { return c.name }

func (c *fakeAI) Do(_ context.Context, req ai.Request) (ai.Response, error) {
    c.calls = append(c.calls, req.Model)
    var err error
    if len(c.errs) > 0 {
        err, c.errs = c.errs[0], c.errs[1:]
    }
    if err != nil {
        return ai.Response{}, err
    }
    return ai.Response{Text: "42 widgets"}, nil
}

func TestAskFailsOverOnRateLimit(t *testing.T) {
    h := newHarness(t)
    h.ctrl.cfg.AI = config.AIConfig{
        RequestTimeout: time.Second,
        OpenAI:         config.ProviderModels{Primary: "gpt-a", Secondary: "gpt-b"},
        Anthropic:      config.ProviderModels{Primary: "claude-a"},
    }
    primary := &fakeAI{name: "openai", errs: []error{ai.ErrRateLimited, ai.ErrRateLimited}}
    secondary := &fakeAI{name: "anthropic"}
    h.ctrl.deps.AskPrimary = primary
    h.ctrl.deps.AskSecondary = secondary

    require.NoError(t, os.WriteFile(
        h.ctrl.cfg.Extractor.OutputDir+"/doc_page1_table0.json",
        []byte(`[["h1","h2"],["a","b"]]`), 0o644))

    body := []byte(`{"question":"how many widgets?","table_file":"doc_page1_table0.json"}`)
    rec := httptest.NewRecorder()
    h.ctrl.handleAsk(rec, httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader(body)))
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

    var resp map[string]any
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    assert.Equal(t, "anthropic", resp["provider"])
    assert.Equal(t, []string{"gpt-a", "gpt-b"}, primary.calls)
    assert.Equal(t, []string{"claude-a"}, secondary.calls)
}

func TestAskRejectsTraversalInTableFile(t *testing.T) {
    h := newHarness(t)

    body := []byte(`{"question":"q","table_file":"../secrets.json"}`)
    rec := httptest.NewRecorder()
    h.ctrl.handleAsk(rec, httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader(body)))
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}
