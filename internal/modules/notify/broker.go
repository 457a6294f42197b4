package notify

import (
	"context"
	"sync"
)

// MemBroker is an in-process Broker used in tests and single-node deployments.
type MemBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // channel -> set of subscriber chans
}

func NewMemBroker() *MemBroker {
	return &MemBroker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *MemBroker) Subscribe(channel string) chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = map[chan Event]struct{}{}
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *MemBroker) Unsubscribe(channel string, ch chan Event) {
	b.mu.Lock()
	if m := b.subs[channel]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, channel)
		}
	}
	b.mu.Unlock()
	close(ch)
}

func (b *MemBroker) Publish(_ context.Context, channel string, evt Event) error {
	b.mu.Lock()
	for ch := range b.subs[channel] {
		// Slow subscribers drop events rather than block the publisher.
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
	return nil
}
