package ai

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/tableminer/internal/metrics"
)

// HTTPError represents an HTTP status error from an AI provider.
type HTTPError struct {
    StatusCode int
    Body       string
    Provider   string
}

func (e *HTTPError) Error() string {
    return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.Provider, e.Body)
}

// ModelPair is a provider's primary model and its cheaper fallback.
type ModelPair struct {
    Primary   string
    Secondary string
}

// Failover runs a question through up to three attempts: the primary
// provider's primary model, its secondary model, then the secondary
// provider. Attempts whose circuit breaker is open are skipped.
type Failover struct {
    primary         Client
    secondary       Client
    primaryModels   ModelPair
    secondaryModels ModelPair
    timeout         time.Duration
    breaker         *Breaker
}

func NewFailover(primary Client, pm ModelPair, secondary Client, sm ModelPair, timeout time.Duration, br *Breaker) *Failover {
    return &Failover{
        primary:         primary,
        secondary:       secondary,
        primaryModels:   pm,
        secondaryModels: sm,
        timeout:         timeout,
        breaker:         br,
    }
}

var ErrNoProviders = errors.New("no ai providers configured")

// Ask returns the answer and the provider name that produced it.
func (f *Failover) Ask(question, tableJSON string) (Response, string, error) {
    type attempt struct {
        client Client
        model  string
    }
    var attempts []attempt
    if f.primary != nil {
        attempts = append(attempts, attempt{f.primary, f.primaryModels.Primary})
        if f.primaryModels.Secondary != "" {
            attempts = append(attempts, attempt{f.primary, f.primaryModels.Secondary})
        }
    }
    if f.secondary != nil {
        attempts = append(attempts, attempt{f.secondary, f.secondaryModels.Primary})
    }
    if len(attempts) == 0 {
        return Response{}, "", ErrNoProviders
    }

    var lastErr error
    for _, a := range attempts {
        provider := a.client.Name()
        if f.breaker != nil && f.breaker.IsOpen(provider, a.model) {
            log.Debug().Str("provider", provider).Str("model", a.model).Msg("skipping attempt, breaker open")
            continue
        }

        // Each attempt gets a fresh context so a timed-out attempt cannot
        // poison the next one.
        cctx, cancel := context.WithTimeout(context.Background(), f.timeout)
        resp, err := a.client.Do(cctx, Request{
            Question:  question,
            TableJSON: tableJSON,
            Model:     a.model,
            Timeout:   f.timeout,
        })
        cancel()

        if err == nil {
            if f.breaker != nil {
                f.breaker.Close(provider, a.model)
            }
            metrics.ObserveAsk(provider, "ok")
            return resp, provider, nil
        }

        lastErr = err
        switch {
        case isFatal(err):
            metrics.ObserveAsk(provider, "fatal")
            log.Error().Err(err).Str("provider", provider).Str("model", a.model).Msg("ask failed with non-retryable error")
            return Response{}, "", err
        case IsRateLimited(err):
            metrics.ObserveAsk(provider, "rate_limited")
        default:
            metrics.ObserveAsk(provider, "error")
        }
        if f.breaker != nil {
            f.breaker.Open(provider, a.model)
        }
        log.Warn().Err(err).Str("provider", provider).Str("model", a.model).Msg("ask attempt failed, trying next")
    }
    if lastErr == nil {
        lastErr = errors.New("all providers in cooldown")
    }
    return Response{}, "", lastErr
}

// isTransient reports whether an error should trigger failover.
func isTransient(err error) bool {
    if err == nil {
        return false
    }
    if IsRateLimited(err) || errors.Is(err, context.DeadlineExceeded) {
        return true
    }
    var httpErr *HTTPError
    if errors.As(err, &httpErr) {
        if httpErr.StatusCode >= 500 || httpErr.StatusCode == 429 {
            return true
        }
    }
    s := strings.ToLower(err.Error())
    return strings.Contains(s, "connection refused") ||
        strings.Contains(s, "connection reset") ||
        strings.Contains(s, "timeout") ||
        strings.Contains(s, "eof")
}

// isFatal reports whether an error makes retrying pointless.
func isFatal(err error) bool {
    if err == nil || isTransient(err) {
        return false
    }
    var httpErr *HTTPError
    if errors.As(err, &httpErr) {
        return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != 429
    }
    s := strings.ToLower(err.Error())
    return strings.Contains(s, "invalid request") ||
        strings.Contains(s, "bad request") ||
        strings.Contains(s, "malformed")
}
