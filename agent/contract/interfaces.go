package contract

import "context"

// Generator is the free-text generation backend bound to one handler role.
// Implementations keep per-thread history on their side; this core only
// carries the thread id.
type Generator interface {
	// NewThread allocates a durable thread in the backend and returns its id.
	NewThread(ctx context.Context, title string) (string, error)
	// Generate produces a reply for prompt under the given thread.
	Generate(ctx context.Context, threadID string, prompt string) (string, error)
}

// Registry resolves the Generator for a handler name.
type Registry interface {
	Generator(h Handler) (Generator, error)
}
