package testutil

import (
	"fmt"
	"sync"
)

// SequenceTokenGenerator hands out "<prefix>-0001", "<prefix>-0002", ...
//
// It stands in for the UUIDv7 generator so that golden event traces are
// byte-identical across runs.
type SequenceTokenGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceTokenGenerator creates a generator. An empty prefix becomes "tx".
func NewSequenceTokenGenerator(prefix string) *SequenceTokenGenerator {
	if prefix == "" {
		prefix = "tx"
	}
	return &SequenceTokenGenerator{prefix: prefix}
}

// Generate returns the next token.
func (g *SequenceTokenGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
