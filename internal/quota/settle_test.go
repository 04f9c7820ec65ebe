package quota

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

// memLedger is an in-memory Ledger for tests. failDebits makes the next
// N Debit calls fail; failUsers poisons ResetAll for specific users.
type memLedger struct {
    mu         sync.Mutex
    records    map[string]*Record
    limit      int
    failDebits int
    failUsers  map[string]bool
    sweeps     int
}

func newMemLedger(limit int) *memLedger {
    return &memLedger{records: map[string]*Record{}, limit: limit}
}

func (m *memLedger) get(userID string) *Record {
    r, ok := m.records[userID]
    if !ok {
        r = &Record{UserID: userID, MonthlyPageLimit: m.limit, LastResetAt: time.Now()}
        m.records[userID] = r
    }
    return r
}

func (m *memLedger) Get(ctx context.Context, userID string) (Record, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    return *m.get(userID), nil
}

func (m *memLedger) Debit(ctx context.Context, userID string, pages int) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.failDebits > 0 {
        m.failDebits--
        return errors.New("ledger write refused")
    }
    m.get(userID).PagesProcessed += pages
    return nil
}

func (m *memLedger) ResetAll(ctx context.Context) (int, int, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.sweeps++
    reset, skipped := 0, 0
    for id, r := range m.records {
        if m.failUsers[id] {
            skipped++
            continue
        }
        r.PagesProcessed = 0
        r.LastResetAt = time.Now()
        reset++
    }
    return reset, skipped, nil
}

func TestSettleDebitsDistinctPages(t *testing.T) {
    l := newMemLedger(30)
    out := Settle(context.Background(), l, "u1", 2, false)
    assert.Equal(t, 2, out.Debited)
    assert.False(t, out.Degraded)

    rec, err := l.Get(context.Background(), "u1")
    require.NoError(t, err)
    assert.Equal(t, 2, rec.PagesProcessed)
    assert.Equal(t, 28, rec.Remaining())
}

func TestSettleOverrideSkipsDebit(t *testing.T) {
    l := newMemLedger(30)
    out := Settle(context.Background(), l, "u1", 50, true)
    assert.Equal(t, 0, out.Debited)

    rec, _ := l.Get(context.Background(), "u1")
    assert.Equal(t, 0, rec.PagesProcessed)
}

func TestSettleNothingProduced(t *testing.T) {
    l := newMemLedger(30)
    out := Settle(context.Background(), l, "u1", 0, false)
    assert.Equal(t, 0, out.Debited)
    rec, _ := l.Get(context.Background(), "u1")
    assert.Equal(t, 0, rec.PagesProcessed)
}

func TestSettleRetriesOnce(t *testing.T) {
    l := newMemLedger(30)
    l.failDebits = 1
    out := Settle(context.Background(), l, "u1", 3, false)
    assert.Equal(t, 3, out.Debited)
    assert.False(t, out.Degraded)

    rec, _ := l.Get(context.Background(), "u1")
    assert.Equal(t, 3, rec.PagesProcessed)
}

func TestSettleDegradesAfterRetry(t *testing.T) {
    l := newMemLedger(30)
    l.failDebits = 2
    out := Settle(context.Background(), l, "u1", 3, false)
    assert.True(t, out.Degraded)

    rec, _ := l.Get(context.Background(), "u1")
    assert.Equal(t, 0, rec.PagesProcessed, "must not silently pretend the debit landed")
}

func TestSettleConcurrentSameUser(t *testing.T) {
    l := newMemLedger(1000)
    var wg sync.WaitGroup
    for i := 0; i < 20; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            Settle(context.Background(), l, "u1", 2, false)
        }()
    }
    wg.Wait()
    rec, _ := l.Get(context.Background(), "u1")
    assert.Equal(t, 40, rec.PagesProcessed)
}
