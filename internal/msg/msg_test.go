package msg

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kobzar/internal/ident"
)

var (
	echoV1  = ident.MustInterface("svc/echo@1.0.0")
	notifyV = ident.MustInterface("svc/notify@1.0.0")
)

func TestSender_SecondSendIsPending(t *testing.T) {
	ctx := context.Background()
	net := newMemNet()
	alice, bob := net.port("alice"), net.port("bob")

	s := NewSender(alice, bob.self, echoV1, String)
	require.NoError(t, s.Send(ctx, "one"))

	err := s.Send(ctx, "two")
	require.Error(t, err)
	assert.True(t, IsPending(err))
	assert.ErrorIs(t, err, ErrPending)
	assert.False(t, IsLiveness(err))

	// A different interface uses a different slot.
	require.NoError(t, NewSender(alice, bob.self, notifyV, Signal).Send(ctx, struct{}{}))

	r := ReceiverFrom(bob, alice.self, echoV1, String)
	got, ok, err := r.Recv(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "one", got)

	require.NoError(t, s.Send(ctx, "two"), "slot is free after receipt")
}

func TestReceiver_BindsToOldestSender(t *testing.T) {
	ctx := context.Background()
	net := newMemNet()
	alice, bob, carol := net.port("alice"), net.port("bob"), net.port("carol")

	_, ok, err := NewReceiver(ctx, carol, echoV1, String)
	require.NoError(t, err)
	assert.False(t, ok, "empty mailbox yields no receiver")

	require.NoError(t, NewSender(bob, carol.self, echoV1, String).Send(ctx, "from bob"))
	require.NoError(t, NewSender(alice, carol.self, echoV1, String).Send(ctx, "from alice"))

	r, ok, err := NewReceiver(ctx, carol, echoV1, String)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bob.self, r.Peer())

	got, err := r.RecvSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from bob", got)

	_, ok, err = r.Recv(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "alice's message is not bob's")
}

func TestReceive_FIFOAcrossSenders(t *testing.T) {
	ctx := context.Background()
	net := newMemNet()
	a, b, c := net.port("a"), net.port("b"), net.port("c")

	require.NoError(t, NewSender(a, c.self, echoV1, String).Send(ctx, "1"))
	require.NoError(t, NewSender(b, c.self, echoV1, String).Send(ctx, "2"))
	require.NoError(t, NewSender(a, c.self, notifyV, String).Send(ctx, "3"))

	assert.True(t, HasIncoming(ctx, c))

	var order []string
	for {
		env, err := Receive(ctx, c)
		require.NoError(t, err)
		if env == nil {
			break
		}
		got, err := AcceptUnchecked(env, String)
		require.NoError(t, err)
		order = append(order, got.Value)
	}
	assert.Equal(t, []string{"1", "2", "3"}, order)
	assert.True(t, IsEmpty(ctx, c))
}

func TestReceiveFrom_SkipsOtherSenders(t *testing.T) {
	ctx := context.Background()
	net := newMemNet()
	a, b, c := net.port("a"), net.port("b"), net.port("c")

	require.NoError(t, NewSender(a, c.self, echoV1, String).Send(ctx, "a"))
	require.NoError(t, NewSender(b, c.self, echoV1, String).Send(ctx, "b"))

	env, err := ReceiveFrom(ctx, c, b.self)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, b.self, env.From)
	assert.Equal(t, "b", string(env.Payload))
}

func TestAccept_ChecksInterfaceTag(t *testing.T) {
	ctx := context.Background()
	net := newMemNet()
	a, b := net.port("a"), net.port("b")

	require.NoError(t, NewSender(a, b.self, echoV1, String).Send(ctx, "hi"))
	env, err := Receive(ctx, b)
	require.NoError(t, err)
	require.NotNil(t, env)

	_, err = Accept(env, notifyV, String)
	assert.True(t, IsUnsupported(err))

	got, err := Accept(env, echoV1, String)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Value)
	assert.Equal(t, a.self, got.From)
	assert.False(t, got.Shared())

	_, err = AcceptUnchecked(env, String)
	assert.Error(t, err, "an envelope is accepted once")
}

func TestSignal_CarriesNoPayload(t *testing.T) {
	ctx := context.Background()
	net := newMemNet()
	a, b := net.port("a"), net.port("b")

	s := NewSender(a, b.self, notifyV, Signal)
	require.NoError(t, s.SendMessage(ctx, NewSignal(notifyV)))

	ok, err := WaitAnyFor(ctx, b, 0, notifyV)
	require.NoError(t, err)
	assert.True(t, ok)

	env, err := Receive(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, env.Payload)
	_, err = Accept(env, notifyV, Signal)
	require.NoError(t, err)

	_, err = Signal.Decode([]byte("x"))
	assert.Error(t, err)
}

func TestSender_SendMessageRejectsWrongTag(t *testing.T) {
	net := newMemNet()
	a, b := net.port("a"), net.port("b")

	err := NewSender(a, b.self, echoV1, String).SendMessage(context.Background(), NewMessage(notifyV, "x"))
	assert.True(t, IsUnsupported(err))
	assert.True(t, IsEmpty(context.Background(), b))
}

func TestSharedMessage_UidAssignedOnFirstSend(t *testing.T) {
	ctx := context.Background()
	net := newMemNet()
	a, b, c := net.port("a"), net.port("b"), net.port("c")

	m := NewSharedMessage(echoV1, "shared")
	assert.False(t, m.Sent())
	assert.True(t, m.Uid().IsZero())

	require.NoError(t, NewSender(a, b.self, echoV1, String).SendShared(ctx, m))
	require.True(t, m.Sent())
	uid := m.Uid()
	assert.Equal(t, 2, net.liveRefs(uid), "sender and mailbox each hold one")

	env, err := Receive(ctx, b)
	require.NoError(t, err)
	got, err := Accept(env, echoV1, String)
	require.NoError(t, err)
	require.True(t, got.Shared())
	assert.Equal(t, uid, got.Uid())

	require.NoError(t, got.Reshare(ctx, NewSender(b, c.self, echoV1, String)))
	fwd, err := Receive(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, uid, fwd.Uid)

	m.Release()
	got.Release()
	fwd.Release()
	fwd.Release()
	assert.Equal(t, 0, net.liveRefs(uid))
}

func TestReshare_PlainMessageUnsupported(t *testing.T) {
	r := &Received[string]{From: threadUid("x"), Interface: echoV1, Value: "v"}
	net := newMemNet()
	err := r.Reshare(context.Background(), NewSender(net.port("y"), threadUid("z"), echoV1, String))
	assert.True(t, IsUnsupported(err))
}

func TestPipe_PeekDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	net := newMemNet()
	a, b := net.port("a"), net.port("b")

	ab := NewPipe(a, b.self, echoV1, Bytes)
	ba := NewPipe(b, a.self, echoV1, Bytes)

	_, ok, err := ba.Peek(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ab.Send(ctx, []byte("ping")))

	v, ok, err := ba.Peek(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("ping"), v)

	v, ok, err = ba.TryRecv(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("ping"), v)

	_, ok, err = ba.TryRecv(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestError_MatchesByCode(t *testing.T) {
	peer := threadUid("peer")
	err := fmt.Errorf("send: %w", NewError(CodeDied, peer, echoV1, "thread ceased"))

	assert.True(t, IsDied(err))
	assert.True(t, IsLiveness(err))
	assert.False(t, IsPending(err))

	var me *Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, peer, me.Peer)
	assert.Contains(t, err.Error(), "DIED: thread ceased")
	assert.Contains(t, err.Error(), "svc/echo@1.0.0")
}

func TestFilter_Match(t *testing.T) {
	a := threadUid("a")
	assert.True(t, Filter{}.Match(a, echoV1))
	assert.True(t, Filter{From: a}.Match(a, echoV1))
	assert.False(t, Filter{From: threadUid("b")}.Match(a, echoV1))
	assert.False(t, Filter{Interfaces: []ident.Interface{notifyV}}.Match(a, echoV1))
}
