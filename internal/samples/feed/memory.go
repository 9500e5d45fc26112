package feed

import (
	"context"
	"sync"
)

// MemoryFeed is an in-process Feed for single-instance deployments and tests,
// where no Redis is available. Publish fans events out to every live
// subscriber; a full subscriber buffer drops the event, matching the Redis
// implementation's lag behavior.
type MemoryFeed struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[int]chan Event)}
}

func (f *MemoryFeed) Publish(ctx context.Context, event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (f *MemoryFeed) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan Event, 16)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(ch)
		}
	}
	return ch, cancel, nil
}
