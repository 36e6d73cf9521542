package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/kobzar/internal/compiler"
	"github.com/roach88/kobzar/internal/engine"
	"github.com/roach88/kobzar/internal/env"
	"github.com/roach88/kobzar/internal/msg"
)

// pollInterval bounds how long a behavior waits between checkpoints.
const pollInterval = 5 * time.Millisecond

// Body returns the thread body for a behavior name. Sink threads have
// no body.
func Body(behavior string) (engine.Body, error) {
	switch behavior {
	case compiler.BehaviorEcho:
		return echo, nil
	case compiler.BehaviorIdle:
		return idle, nil
	case compiler.BehaviorSink, "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown behavior %q", behavior)
}

// echo replies to every message with its payload, under the interface it
// arrived on.
func echo(ctx context.Context, e env.Environment) error {
	net := e.Network()
	for {
		if err := net.Checkpoint(ctx); err != nil {
			return ceased(err)
		}
		in, err := net.Receive(ctx, msg.Filter{}, pollInterval)
		if err != nil {
			return ceased(err)
		}
		if in == nil {
			continue
		}
		got, err := msg.AcceptUnchecked(in, msg.Bytes)
		if err != nil {
			return err
		}
		got.Release()

		reply := msg.NewSender(net, got.From, got.Interface, msg.Bytes)
		if err := reply.SendWhenAvailable(ctx, got.Value); err != nil {
			if msg.IsLiveness(err) {
				continue
			}
			return ceased(err)
		}
	}
}

// idle does nothing but honor pause and cease requests.
func idle(ctx context.Context, e env.Environment) error {
	net := e.Network()
	for {
		if err := net.Checkpoint(ctx); err != nil {
			return ceased(err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(pollInterval):
		}
	}
}

// ceased maps the end-of-life errors a body sees to a clean return.
func ceased(err error) error {
	if engine.IsCeased(err) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
