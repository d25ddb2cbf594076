package store

import (
	"context"
	"errors"
	"time"
)

// DefaultTitle is assigned to conversations created without an explicit title.
const DefaultTitle = "New Chat"

// ErrNotFound reports that an entity does not exist or is owned by another user.
var ErrNotFound = errors.New("not found")

// User is identified by an opaque id supplied by the client edge.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation groups the ordered messages of one chat thread.
type Conversation struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single stored turn half. Role is "user" or "assistant";
// system messages are synthesized at request time and never stored.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Memory is a short durable fact about a user, injected into future prompts.
type Memory struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationStore persists users, conversations and their messages.
type ConversationStore interface {
	// EnsureUser upserts a user row. A non-empty email overwrites the stored
	// one; an empty email never erases it.
	EnsureUser(ctx context.Context, id, email string) error

	// ListConversations returns the user's conversations, most recently
	// updated first.
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)

	CreateConversation(ctx context.Context, userID, title string) (Conversation, error)

	// GetConversationWithMessages returns ErrNotFound when the conversation
	// does not exist or belongs to a different user. Messages are ordered by
	// creation time ascending.
	GetConversationWithMessages(ctx context.Context, id int64, userID string) (Conversation, []Message, error)

	UpdateConversationTitle(ctx context.Context, id int64, userID, title string) (Conversation, error)

	// DeleteConversation cascades to the conversation's messages. The bool
	// reports whether a row was removed.
	DeleteConversation(ctx context.Context, id int64, userID string) (bool, error)

	// AppendMessage adds a message and bumps the conversation's updated_at.
	AppendMessage(ctx context.Context, conversationID int64, role, content string) (Message, error)

	ListMessages(ctx context.Context, conversationID int64) ([]Message, error)
}

// MemoryStore persists per-user facts.
type MemoryStore interface {
	ListMemories(ctx context.Context, userID string) ([]Memory, error)
	AddMemory(ctx context.Context, userID, content string) (Memory, error)

	// FindMemory returns nil when no memory with exactly this content exists.
	FindMemory(ctx context.Context, userID, content string) (*Memory, error)

	DeleteMemory(ctx context.Context, id int64, userID string) (bool, error)
}

// Store is the full persistence surface used by the relay.
type Store interface {
	ConversationStore
	MemoryStore
	Close() error
}
