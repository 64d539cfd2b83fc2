package nl2sql

import (
	"context"
	"fmt"
)

// Options are optional sampling controls; nil fields keep provider defaults.
type Options struct {
	Temperature *float64
	TopP        *float64
	TopK        *int
	MaxTokens   *int
	Stop        []string
}

// Oracle is a synchronous text-completion endpoint.
type Oracle interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// GenerationError reports a failed or empty SQL generation.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate sql: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
