package agent

import (
	"strings"
	"sync"
)

// Sink receives partial agent output as it is produced. An error from Emit
// aborts the invocation.
type Sink interface {
	Emit(chunk string) error
}

type SinkFunc func(chunk string) error

func (f SinkFunc) Emit(chunk string) error { return f(chunk) }

type discard struct{}

func (discard) Emit(string) error { return nil }

// Discard drops every chunk.
var Discard Sink = discard{}

// Buffer keeps every chunk; safe for concurrent use.
type Buffer struct {
	mu     sync.Mutex
	b      strings.Builder
	chunks int
}

func (b *Buffer) Emit(chunk string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.b.WriteString(chunk)
	b.chunks++
	return nil
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

func (b *Buffer) Chunks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chunks
}
