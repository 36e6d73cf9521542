package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/kobzar/internal/ident"
)

func TestUUIDv7Generator_Unique(t *testing.T) {
	var g UUIDv7Generator
	seen := make(map[ident.Uid]bool)
	for i := 0; i < 100; i++ {
		uid := g.Next(ident.DomainThread)
		assert.False(t, uid.IsZero())
		assert.False(t, seen[uid], "uid issued twice")
		seen[uid] = true
	}
}

func TestSeqGenerator_Deterministic(t *testing.T) {
	a := NewSeqGenerator("run")
	b := NewSeqGenerator("run")
	for i := 0; i < 5; i++ {
		assert.Equal(t, a.Next(ident.DomainThread), b.Next(ident.DomainThread))
	}

	c := NewSeqGenerator("other")
	assert.NotEqual(t, NewSeqGenerator("run").Next(ident.DomainThread), c.Next(ident.DomainThread))
}

func TestSeqGenerator_DomainSeparated(t *testing.T) {
	a := NewSeqGenerator("run")
	b := NewSeqGenerator("run")
	assert.NotEqual(t, a.Next(ident.DomainThread), b.Next(ident.DomainMessage))
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator(testUid("x"), testUid("y"))
	assert.Equal(t, testUid("x"), g.Next(ident.DomainThread))
	assert.Equal(t, testUid("y"), g.Next(ident.DomainMessage))
	assert.Panics(t, func() { g.Next(ident.DomainThread) })
}
