package store

import (
	"context"
	"fmt"
	"testing"
)

func TestAppendAndListPreservesOrder(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.EnsureUser(ctx, "u1", ""); err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	conv, err := s.CreateConversation(ctx, "u1", "")
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	if conv.Title != DefaultTitle {
		t.Fatalf("Title = %q, want %q", conv.Title, DefaultTitle)
	}

	var want []string
	for i := 0; i < 10; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		content := fmt.Sprintf("turn %d", i)
		if _, err := s.AppendMessage(ctx, conv.ID, role, content); err != nil {
			t.Fatalf("AppendMessage(%d) error = %v", i, err)
		}
		want = append(want, content)
	}

	msgs, err := s.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != len(want) {
		t.Fatalf("len(msgs) = %d, want %d", len(msgs), len(want))
	}
	for i, m := range msgs {
		if m.Content != want[i] {
			t.Fatalf("msgs[%d].Content = %q, want %q", i, m.Content, want[i])
		}
	}
}

func TestAppendMessageBumpsUpdatedAt(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_ = s.EnsureUser(ctx, "u1", "")
	conv, _ := s.CreateConversation(ctx, "u1", "t")

	if _, err := s.AppendMessage(ctx, conv.ID, "user", "hello"); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	got, _, err := s.GetConversationWithMessages(ctx, conv.ID, "u1")
	if err != nil {
		t.Fatalf("GetConversationWithMessages() error = %v", err)
	}
	if got.UpdatedAt.Before(conv.UpdatedAt) {
		t.Fatalf("UpdatedAt = %v, want >= %v", got.UpdatedAt, conv.UpdatedAt)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Fatalf("UpdatedAt %v before CreatedAt %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_ = s.EnsureUser(ctx, "u1", "")
	conv, _ := s.CreateConversation(ctx, "u1", "t")
	_, _ = s.AppendMessage(ctx, conv.ID, "user", "hello")
	_, _ = s.AppendMessage(ctx, conv.ID, "assistant", "hi")

	ok, err := s.DeleteConversation(ctx, conv.ID, "u1")
	if err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}
	if !ok {
		t.Fatalf("DeleteConversation() = false, want true")
	}

	msgs, err := s.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("orphan messages remain: %d", len(msgs))
	}
	if _, _, err := s.GetConversationWithMessages(ctx, conv.ID, "u1"); err != ErrNotFound {
		t.Fatalf("GetConversationWithMessages() error = %v, want ErrNotFound", err)
	}
}

func TestConversationOwnershipEnforced(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_ = s.EnsureUser(ctx, "owner", "")
	_ = s.EnsureUser(ctx, "intruder", "")
	conv, _ := s.CreateConversation(ctx, "owner", "private")

	if _, _, err := s.GetConversationWithMessages(ctx, conv.ID, "intruder"); err != ErrNotFound {
		t.Fatalf("foreign get error = %v, want ErrNotFound", err)
	}
	if _, err := s.UpdateConversationTitle(ctx, conv.ID, "intruder", "mine now"); err != ErrNotFound {
		t.Fatalf("foreign title update error = %v, want ErrNotFound", err)
	}
	ok, err := s.DeleteConversation(ctx, conv.ID, "intruder")
	if err != nil || ok {
		t.Fatalf("foreign delete = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestListConversationsOrderedByUpdatedAtDesc(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_ = s.EnsureUser(ctx, "u1", "")
	first, _ := s.CreateConversation(ctx, "u1", "first")
	second, _ := s.CreateConversation(ctx, "u1", "second")

	// Touch the older conversation so it sorts to the front.
	if _, err := s.AppendMessage(ctx, first.ID, "user", "bump"); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	list, err := s.ListConversations(ctx, "u1")
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if list[0].ID != first.ID || list[1].ID != second.ID {
		t.Fatalf("order = [%d %d], want [%d %d]", list[0].ID, list[1].ID, first.ID, second.ID)
	}
}

func TestEnsureUserEmailUpsert(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_ = s.EnsureUser(ctx, "u1", "a@example.com")
	_ = s.EnsureUser(ctx, "u1", "")
	if got := s.users["u1"].Email; got != "a@example.com" {
		t.Fatalf("Email after empty upsert = %q, want preserved", got)
	}

	_ = s.EnsureUser(ctx, "u1", "b@example.com")
	if got := s.users["u1"].Email; got != "b@example.com" {
		t.Fatalf("Email after new value = %q, want %q", got, "b@example.com")
	}
}

func TestFindAndDeleteMemory(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_ = s.EnsureUser(ctx, "u1", "")
	m, err := s.AddMemory(ctx, "u1", "Likes espresso")
	if err != nil {
		t.Fatalf("AddMemory() error = %v", err)
	}

	found, err := s.FindMemory(ctx, "u1", "Likes espresso")
	if err != nil {
		t.Fatalf("FindMemory() error = %v", err)
	}
	if found == nil || found.ID != m.ID {
		t.Fatalf("FindMemory() = %+v, want id %d", found, m.ID)
	}

	// Exact-match only: case differences miss.
	miss, err := s.FindMemory(ctx, "u1", "likes espresso")
	if err != nil {
		t.Fatalf("FindMemory() error = %v", err)
	}
	if miss != nil {
		t.Fatalf("FindMemory() matched different casing: %+v", miss)
	}

	ok, err := s.DeleteMemory(ctx, m.ID, "u1")
	if err != nil || !ok {
		t.Fatalf("DeleteMemory() = (%v, %v), want (true, nil)", ok, err)
	}
	if list, _ := s.ListMemories(ctx, "u1"); len(list) != 0 {
		t.Fatalf("memories remain after delete: %d", len(list))
	}
}
