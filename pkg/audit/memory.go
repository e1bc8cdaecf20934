package audit

import (
	"context"
	"sync"
)

// MemoryChain is the in-memory audit backend.
type MemoryChain struct {
	mu     sync.Mutex
	events []Event
	byConv map[string][]int // conversation id → indexes into events
	head   string
}

// NewMemoryChain creates an empty in-memory chain.
func NewMemoryChain() *MemoryChain {
	return &MemoryChain{
		byConv: make(map[string][]int),
		head:   GenesisHash,
	}
}

func (c *MemoryChain) Append(_ context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	seal(&ev, c.head)
	c.events = append(c.events, ev)
	if ev.ConversationID != "" {
		c.byConv[ev.ConversationID] = append(c.byConv[ev.ConversationID], len(c.events)-1)
	}
	c.head = ev.DataHash
	return nil
}

func (c *MemoryChain) Query(_ context.Context, f Filter) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Event
	for i := range c.events {
		if f.matches(&c.events[i]) {
			out = append(out, c.events[i])
			if f.Limit > 0 && len(out) >= f.Limit {
				break
			}
		}
	}
	return out, nil
}

func (c *MemoryChain) VerifyIntegrity(_ context.Context, conversationID string) (Verification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conversationID != "" {
		idxs := c.byConv[conversationID]
		events := make([]Event, 0, len(idxs))
		for _, i := range idxs {
			events = append(events, c.events[i])
		}
		return verifyContent(events), nil
	}

	return verifyEvents(c.events), nil
}

// TamperWith mutates the details of the i-th event in place. Test hook for
// integrity verification; not part of the Chain interface.
func (c *MemoryChain) TamperWith(i int, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.events) {
		return
	}
	if c.events[i].Details == nil {
		c.events[i].Details = make(map[string]any)
	}
	c.events[i].Details[key] = value
}
