package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu sync.RWMutex

	users         map[string]*User
	conversations map[int64]*Conversation
	messages      map[int64][]Message
	memories      map[string][]Memory

	nextID int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:         make(map[string]*User),
		conversations: make(map[int64]*Conversation),
		messages:      make(map[int64][]Message),
		memories:      make(map[string][]Memory),
	}
}

func (s *InMemoryStore) nextIDLocked() int64 {
	s.nextID++
	return s.nextID
}

func (s *InMemoryStore) EnsureUser(_ context.Context, id, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		s.users[id] = &User{ID: id, Email: email, CreatedAt: time.Now().UTC()}
		return nil
	}
	if email != "" {
		u.Email = email
	}
	return nil
}

func (s *InMemoryStore) ListConversations(_ context.Context, userID string) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Conversation
	for _, c := range s.conversations {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *InMemoryStore) CreateConversation(_ context.Context, userID, title string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if title == "" {
		title = DefaultTitle
	}
	now := time.Now().UTC()
	c := Conversation{
		ID:        s.nextIDLocked(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[c.ID] = &c
	return c, nil
}

func (s *InMemoryStore) GetConversationWithMessages(_ context.Context, id int64, userID string) (Conversation, []Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok || c.UserID != userID {
		return Conversation{}, nil, ErrNotFound
	}
	msgs := make([]Message, len(s.messages[id]))
	copy(msgs, s.messages[id])
	return *c, msgs, nil
}

func (s *InMemoryStore) UpdateConversationTitle(_ context.Context, id int64, userID, title string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok || c.UserID != userID {
		return Conversation{}, ErrNotFound
	}
	c.Title = title
	c.UpdatedAt = time.Now().UTC()
	return *c, nil
}

func (s *InMemoryStore) DeleteConversation(_ context.Context, id int64, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok || c.UserID != userID {
		return false, nil
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return true, nil
}

func (s *InMemoryStore) AppendMessage(_ context.Context, conversationID int64, role, content string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return Message{}, ErrNotFound
	}
	m := Message{
		ID:             s.nextIDLocked(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], m)
	c.UpdatedAt = m.CreatedAt
	return m, nil
}

func (s *InMemoryStore) ListMessages(_ context.Context, conversationID int64) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]Message, len(s.messages[conversationID]))
	copy(msgs, s.messages[conversationID])
	return msgs, nil
}

func (s *InMemoryStore) ListMemories(_ context.Context, userID string) ([]Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Memory, len(s.memories[userID]))
	copy(out, s.memories[userID])
	return out, nil
}

func (s *InMemoryStore) AddMemory(_ context.Context, userID, content string) (Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := Memory{
		ID:        s.nextIDLocked(),
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.memories[userID] = append(s.memories[userID], m)
	return m, nil
}

func (s *InMemoryStore) FindMemory(_ context.Context, userID, content string) (*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memories[userID] {
		if m.Content == content {
			found := m
			return &found, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) DeleteMemory(_ context.Context, id int64, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	arr := s.memories[userID]
	for i, m := range arr {
		if m.ID == id {
			s.memories[userID] = append(arr[:i], arr[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) Close() error { return nil }
