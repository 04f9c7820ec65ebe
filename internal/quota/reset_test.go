package quota

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestResetLoopSweeps(t *testing.T) {
    l := newMemLedger(30)
    require.NoError(t, l.Debit(context.Background(), "u1", 5))
    require.NoError(t, l.Debit(context.Background(), "u2", 7))

    loop := NewResetLoop(l, 20*time.Millisecond)
    loop.Start()
    defer loop.Stop()

    assert.Eventually(t, func() bool {
        l.mu.Lock()
        defer l.mu.Unlock()
        return l.sweeps >= 1
    }, time.Second, 5*time.Millisecond)

    assert.Eventually(t, func() bool {
        r1, _ := l.Get(context.Background(), "u1")
        r2, _ := l.Get(context.Background(), "u2")
        return r1.PagesProcessed == 0 && r2.PagesProcessed == 0
    }, time.Second, 5*time.Millisecond)
}

func TestResetSkipsBadRecordContinuesSweep(t *testing.T) {
    l := newMemLedger(30)
    _ = l.Debit(context.Background(), "good", 3)
    _ = l.Debit(context.Background(), "bad", 9)
    l.failUsers = map[string]bool{"bad": true}

    reset, skipped, err := l.ResetAll(context.Background())
    require.NoError(t, err)
    assert.Equal(t, 1, reset)
    assert.Equal(t, 1, skipped)

    good, _ := l.Get(context.Background(), "good")
    bad, _ := l.Get(context.Background(), "bad")
    assert.Equal(t, 0, good.PagesProcessed)
    assert.Equal(t, 9, bad.PagesProcessed, "bad record left as-is")
}

func TestResetLoopStops(t *testing.T) {
    l := newMemLedger(30)
    loop := NewResetLoop(l, time.Hour)
    loop.Start()
    done := make(chan struct{})
    go func() { loop.Stop(); close(done) }()
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatal("reset loop did not stop")
    }
}
