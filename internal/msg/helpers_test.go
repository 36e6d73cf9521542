package msg

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/kobzar/internal/ident"
)

// memNet is a non-blocking in-memory network. Blocking operations behave
// like their polling forms.
type memNet struct {
	mu      sync.Mutex
	boxes   map[ident.Uid][]*Envelope
	live    map[ident.Uid]int
	seq     int64
	shareID int
}

func newMemNet() *memNet {
	return &memNet{boxes: make(map[ident.Uid][]*Envelope), live: make(map[ident.Uid]int)}
}

func (n *memNet) port(name string) *memPort {
	return &memPort{net: n, self: threadUid(name)}
}

func (n *memNet) liveRefs(uid ident.Uid) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.live[uid]
}

func threadUid(name string) ident.Uid {
	return ident.DeriveUid(ident.DomainThread, []byte(name))
}

type memPort struct {
	net  *memNet
	self ident.Uid
}

func (p *memPort) RetainResource(uid ident.Uid) {
	p.net.mu.Lock()
	defer p.net.mu.Unlock()
	p.net.live[uid]++
}

func (p *memPort) ReleaseResource(uid ident.Uid) {
	p.net.mu.Lock()
	defer p.net.mu.Unlock()
	p.net.live[uid]--
}

func (p *memPort) Send(_ context.Context, pk Packet) error {
	n := p.net
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.boxes[pk.To] {
		if e.From == p.self && e.Interface == pk.Interface {
			return NewError(CodePending, pk.To, pk.Interface, "")
		}
	}
	n.seq++
	if !pk.Uid.IsZero() {
		n.live[pk.Uid]++
	}
	n.boxes[pk.To] = append(n.boxes[pk.To], NewEnvelope(p.self, pk.Interface, pk.Payload, pk.Uid, n.seq, p))
	return nil
}

func (p *memPort) SendWhenAvailable(ctx context.Context, pk Packet) error {
	return p.Send(ctx, pk)
}

func (p *memPort) Rendezvous(ctx context.Context, pk Packet, _ time.Duration) (bool, error) {
	if err := p.Send(ctx, pk); err != nil {
		return false, err
	}
	return true, nil
}

func (p *memPort) TransferTime(ctx context.Context, pk Packet) error {
	return p.Send(ctx, pk)
}

func (p *memPort) NewSharedUid(context.Context) (ident.Uid, error) {
	p.net.mu.Lock()
	defer p.net.mu.Unlock()
	p.net.shareID++
	uid := ident.DeriveUid(ident.DomainMessage, []byte(fmt.Sprintf("shared-%d", p.net.shareID)))
	p.net.live[uid]++
	return uid, nil
}

func (p *memPort) find(f Filter, take bool) *Envelope {
	n := p.net
	n.mu.Lock()
	defer n.mu.Unlock()
	box := n.boxes[p.self]
	for i, e := range box {
		if f.Match(e.From, e.Interface) {
			if take {
				n.boxes[p.self] = append(box[:i:i], box[i+1:]...)
			}
			return e
		}
	}
	return nil
}

func (p *memPort) Receive(_ context.Context, f Filter, _ time.Duration) (*Envelope, error) {
	return p.find(f, true), nil
}

func (p *memPort) Peek(_ context.Context, f Filter) (*Envelope, error) {
	return p.find(f, false), nil
}

func (p *memPort) HasIncoming(_ context.Context, f Filter) bool {
	return p.find(f, false) != nil
}

func (p *memPort) WaitAny(_ context.Context, f Filter, _ time.Duration) (bool, error) {
	return p.find(f, false) != nil, nil
}
