// Package notify carries "state may have changed" signals between everything that shares a store.
package notify

import (
	"sync"
	"time"

	"github.com/propertydex/propertydex-store/pkg/kv"
)

// Event reports that Key was written or removed. It carries no diff; subscribers re-read.
type Event struct {
	Key string
	At  time.Time
}

// Bus is a synchronous publish/subscribe channel.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func(Event)
	order  []uint64
}

// NewBus returns a bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]func(Event))}
}

// Subscribe registers fn and returns a function that removes it. Calling it twice is harmless.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers ev to every subscriber in subscription order.
// Subscribers run outside the bus lock, so they may subscribe or unsubscribe.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.subs[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Len returns the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Ensure watched satisfies the kv.Storage interface at compile time.
var _ kv.Storage = (*watched)(nil)

type watched struct {
	kv.Storage
	bus *Bus
}

// Watch wraps s so that every successful SetItem or RemoveItem publishes an Event on b.
func Watch(s kv.Storage, b *Bus) kv.Storage {
	return &watched{Storage: s, bus: b}
}

func (w *watched) SetItem(key, value string) error {
	if err := w.Storage.SetItem(key, value); err != nil {
		return err
	}
	w.bus.Publish(Event{Key: key})
	return nil
}

func (w *watched) RemoveItem(key string) error {
	if err := w.Storage.RemoveItem(key); err != nil {
		return err
	}
	w.bus.Publish(Event{Key: key})
	return nil
}
