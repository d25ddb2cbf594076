package chat

import "sync"

// conversationLocks serializes turns per conversation so a second turn
// always observes the first turn's messages. Entries are reference-counted
// and removed once idle to keep the map bounded.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[int64]*conversationLock
}

type conversationLock struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[int64]*conversationLock)}
}

// Lock acquires the per-conversation mutex and returns its release func.
func (c *conversationLocks) Lock(id int64) func() {
	c.mu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &conversationLock{}
		c.locks[id] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, id)
		}
		c.mu.Unlock()
	}
}
