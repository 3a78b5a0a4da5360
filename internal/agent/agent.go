// Package agent defines the boundary to the conversational agent runtime.
// The engine treats the runtime as an opaque prompt-in, text-out service;
// how it reaches a model or which tools it spins up is its business.
package agent

import "context"

// Request is one execution handed to the runtime.
type Request struct {
	// JobName is empty for interactive (non-scheduled) requests.
	JobName string
	Prompt  string

	// Isolated asks for a fresh session instead of the shared main one.
	Isolated bool

	Skills     []string
	MCPServers []string
	MCPTools   []string
}

type Result struct {
	Output string
}

// Runtime executes one request at a time. Callers serialize access; the
// runtime itself makes no concurrency promises. Cancellation of ctx must
// abort the run.
type Runtime interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// RuntimeFunc adapts a function to the Runtime interface.
type RuntimeFunc func(ctx context.Context, req Request) (Result, error)

func (f RuntimeFunc) Execute(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
