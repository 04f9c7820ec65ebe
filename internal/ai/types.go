package ai

import (
    "context"
    "errors"
    "time"
)

// Request is one table Q&A inference request.
type Request struct {
    Question  string
    TableJSON string // the extracted table the question is about
    Model     string
    Timeout   time.Duration
}

type Response struct {
    Text      string
    TokensIn  int
    TokensOut int
}

// Client interface for providers like OpenAI, Anthropic.
type Client interface {
    Name() string
    Do(ctx context.Context, req Request) (Response, error)
}

var ErrRateLimited = errors.New("rate_limited")

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

const systemPrompt = "You answer questions about a data table. The table is provided as JSON rows. Answer concisely using only the table contents; say so when the table does not contain the answer."
