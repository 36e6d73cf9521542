package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/kobzar/internal/ident"
)

// UidGenerator issues fresh uids for threads, shared messages and other
// environment resources. domain is one of the ident.Domain* constants.
type UidGenerator interface {
	Next(domain string) ident.Uid
}

// UUIDv7Generator derives uids from time-sortable UUIDv7 seeds.
//
// Safe for concurrent use.
type UUIDv7Generator struct{}

// Next derives a uid from a fresh UUIDv7.
// Panics if UUID generation fails.
func (UUIDv7Generator) Next(domain string) ident.Uid {
	id := uuid.Must(uuid.NewV7())
	return ident.DeriveUid(domain, id[:])
}

// SeqGenerator derives uids from a counter so runs are reproducible.
// Two generators with the same prefix issue the same uids in the same order.
type SeqGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSeqGenerator creates a deterministic generator.
func NewSeqGenerator(prefix string) *SeqGenerator {
	return &SeqGenerator{prefix: prefix}
}

// Next returns the uid for the next counter value.
func (g *SeqGenerator) Next(domain string) ident.Uid {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return ident.DeriveUid(domain, []byte(fmt.Sprintf("%s-%d", g.prefix, g.n)))
}

// FixedGenerator returns predetermined uids, for tests that need to name
// threads before they exist.
type FixedGenerator struct {
	mu   sync.Mutex
	uids []ident.Uid
	idx  int
}

// NewFixedGenerator creates a generator that returns uids in order.
func NewFixedGenerator(uids ...ident.Uid) *FixedGenerator {
	return &FixedGenerator{uids: uids}
}

// Next returns the next predetermined uid regardless of domain.
//
// Panics if all uids have been consumed. A test that creates more resources
// than it planned for is misconfigured.
func (g *FixedGenerator) Next(string) ident.Uid {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.uids) {
		panic("FixedGenerator: all uids exhausted")
	}
	uid := g.uids[g.idx]
	g.idx++
	return uid
}
