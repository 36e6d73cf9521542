// Package env composes the per-layer boundaries into the Environment a
// thread talks to.
//
// An Environment value is scoped to one calling thread: the engine hands
// each thread body its own value, and every call made through it acts on
// behalf of that thread.
package env

import (
	"github.com/roach88/kobzar/internal/discovery"
	"github.com/roach88/kobzar/internal/handle"
	"github.com/roach88/kobzar/internal/msg"
	"github.com/roach88/kobzar/internal/thread"
)

// Network is discovery, thread control and messaging.
type Network interface {
	discovery.Finder
	thread.Controller
	msg.Transport
}

// Environment is the full boundary consumed by client code.
//
// handle.Source covers snapshot download and resource release; Network
// covers everything else.
type Environment interface {
	handle.Source
	Network() Network
}
