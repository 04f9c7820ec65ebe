package ai

import (
    "sync"
    "time"

    "github.com/rs/zerolog/log"
)

type breakerState int

const (
    breakerClosed breakerState = iota
    breakerOpen
    breakerHalfOpen
)

type breakerEntry struct {
    state    breakerState
    retryAt  time.Time
    failures int
}

// Breaker tracks per provider:model cooldowns with exponential backoff,
// so a rate-limited model is not hammered on every request.
type Breaker struct {
    mu          sync.Mutex
    entries     map[string]*breakerEntry
    baseBackoff time.Duration
    maxBackoff  time.Duration
}

func NewBreaker(baseBackoff, maxBackoff time.Duration) *Breaker {
    return &Breaker{
        entries:     make(map[string]*breakerEntry),
        baseBackoff: baseBackoff,
        maxBackoff:  maxBackoff,
    }
}

// Open records a failure and puts the provider:model in cooldown.
// Backoff doubles per consecutive failure up to maxBackoff.
func (b *Breaker) Open(provider, model string) {
    b.mu.Lock()
    defer b.mu.Unlock()

    key := provider + ":" + model
    e := b.entries[key]
    if e == nil {
        e = &breakerEntry{}
        b.entries[key] = e
    }
    e.failures++

    backoff := b.baseBackoff
    for i := 1; i < e.failures; i++ {
        backoff *= 2
        if backoff > b.maxBackoff {
            backoff = b.maxBackoff
            break
        }
    }
    e.state = breakerOpen
    e.retryAt = time.Now().Add(backoff)

    log.Warn().Str("provider", provider).Str("model", model).
        Dur("cooldown", backoff).Int("failures", e.failures).
        Msg("circuit breaker opened")
}

// IsOpen reports whether the provider:model is still in cooldown. When
// the cooldown has expired the breaker moves to half-open and lets one
// probe request through.
func (b *Breaker) IsOpen(provider, model string) bool {
    b.mu.Lock()
    defer b.mu.Unlock()

    e := b.entries[provider+":"+model]
    if e == nil || e.state != breakerOpen {
        return false
    }
    if time.Now().After(e.retryAt) {
        e.state = breakerHalfOpen
        log.Info().Str("provider", provider).Str("model", model).Msg("circuit breaker half-open")
        return false
    }
    return true
}

// Close resets the breaker after a successful request.
func (b *Breaker) Close(provider, model string) {
    b.mu.Lock()
    defer b.mu.Unlock()

    key := provider + ":" + model
    if e := b.entries[key]; e != nil && e.state != breakerClosed {
        delete(b.entries, key)
        log.Info().Str("provider", provider).Str("model", model).Msg("circuit breaker closed")
    }
}
