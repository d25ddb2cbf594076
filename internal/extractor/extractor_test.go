package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/antoniostano/chatrelay/internal/engine"
	"github.com/antoniostano/chatrelay/internal/observability"
	"github.com/antoniostano/chatrelay/internal/store"
)

func newTestMetrics(t *testing.T) *observability.Metrics {
	t.Helper()
	return observability.NewMetrics("test_extractor_" + time.Now().Format("150405") + fmt.Sprintf("%09d", time.Now().Nanosecond()))
}

func newTestExtractor(t *testing.T, eng engine.Engine) (*Extractor, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	_ = st.EnsureUser(context.Background(), "u1", "")
	return New(eng, st, newTestMetrics(t), zap.NewNop()), st
}

func TestExtractInsertsNewFacts(t *testing.T) {
	mock := engine.NewMock("Works as a marine biologist\nHas a dog named Pixel")
	e, st := newTestExtractor(t, mock)

	e.Extract(context.Background(), "u1", "my dog Pixel chewed my field notes", "oh no!", nil)

	got, _ := st.ListMemories(context.Background(), "u1")
	if len(got) != 2 {
		t.Fatalf("len(memories) = %d, want 2", len(got))
	}
	if got[0].Content != "Works as a marine biologist" || got[1].Content != "Has a dog named Pixel" {
		t.Fatalf("memories = %+v", got)
	}
}

func TestExtractNoneSentinel(t *testing.T) {
	for _, resp := range []string{"NONE", "none", " None \n", ""} {
		mock := engine.NewMock(resp)
		e, st := newTestExtractor(t, mock)

		e.Extract(context.Background(), "u1", "hi", "hello", nil)

		if got, _ := st.ListMemories(context.Background(), "u1"); len(got) != 0 {
			t.Fatalf("response %q inserted %d memories, want 0", resp, len(got))
		}
	}
}

func TestExtractCapsAtThreeFacts(t *testing.T) {
	mock := engine.NewMock("Fact one\nFact two\nFact three\nFact four\nFact five")
	e, st := newTestExtractor(t, mock)

	e.Extract(context.Background(), "u1", "...", "...", nil)

	got, _ := st.ListMemories(context.Background(), "u1")
	if len(got) != 3 {
		t.Fatalf("len(memories) = %d, want 3", len(got))
	}
}

func TestExtractDiscardsShortFragments(t *testing.T) {
	mock := engine.NewMock("ok\nHas two cats\n- \nэй")
	e, st := newTestExtractor(t, mock)

	e.Extract(context.Background(), "u1", "...", "...", nil)

	got, _ := st.ListMemories(context.Background(), "u1")
	if len(got) != 1 || got[0].Content != "Has two cats" {
		t.Fatalf("memories = %+v, want only the real fact", got)
	}
}

func TestExtractStripsBulletMarkup(t *testing.T) {
	mock := engine.NewMock("- Plays the cello\n* Speaks Portuguese\n• Trains for marathons")
	e, st := newTestExtractor(t, mock)

	e.Extract(context.Background(), "u1", "...", "...", nil)

	got, _ := st.ListMemories(context.Background(), "u1")
	want := []string{"Plays the cello", "Speaks Portuguese", "Trains for marathons"}
	if len(got) != len(want) {
		t.Fatalf("len(memories) = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Content != w {
			t.Fatalf("memories[%d] = %q, want %q", i, got[i].Content, w)
		}
	}
}

func TestExtractSkipsExactDuplicates(t *testing.T) {
	mock := engine.NewMock("Lives in Lisbon\nRecently adopted a cat")
	e, st := newTestExtractor(t, mock)
	_, _ = st.AddMemory(context.Background(), "u1", "Lives in Lisbon")

	e.Extract(context.Background(), "u1", "...", "...", nil)

	got, _ := st.ListMemories(context.Background(), "u1")
	if len(got) != 2 {
		t.Fatalf("len(memories) = %d, want 2 (duplicate skipped)", len(got))
	}
}

func TestExtractNoOpWithoutEngine(t *testing.T) {
	e, st := newTestExtractor(t, nil)

	e.Extract(context.Background(), "u1", "hi", "hello", nil)

	if got, _ := st.ListMemories(context.Background(), "u1"); len(got) != 0 {
		t.Fatalf("extraction without engine inserted %d memories", len(got))
	}
}

func TestExtractSwallowsEngineErrors(t *testing.T) {
	mock := &engine.Mock{Err: errors.New("engine down")}
	e, st := newTestExtractor(t, mock)

	// Must not panic or propagate.
	e.Extract(context.Background(), "u1", "hi", "hello", nil)

	if got, _ := st.ListMemories(context.Background(), "u1"); len(got) != 0 {
		t.Fatalf("failed extraction inserted %d memories", len(got))
	}
}

func TestExtractPromptListsExistingMemories(t *testing.T) {
	mock := engine.NewMock("NONE")
	e, _ := newTestExtractor(t, mock)

	existing := []store.Memory{
		{Content: "Lives in Lisbon"},
		{Content: "Plays the cello"},
	}
	e.Extract(context.Background(), "u1", "hi", "hello", existing)

	req := mock.LastRequest()
	if req == nil {
		t.Fatalf("engine saw no request")
	}
	prompt := req.Messages[0].Content
	if !strings.Contains(prompt, "- Lives in Lisbon") || !strings.Contains(prompt, "- Plays the cello") {
		t.Fatalf("prompt missing existing memories: %q", prompt)
	}
	if req.Temperature != 0.3 {
		t.Fatalf("Temperature = %v, want 0.3", req.Temperature)
	}
	if req.MaxTokens != extractionMaxTokens {
		t.Fatalf("MaxTokens = %d, want %d", req.MaxTokens, extractionMaxTokens)
	}
}

func TestPoolRunsJobsAndDrainsOnClose(t *testing.T) {
	mock := engine.NewMock("Enjoys hiking on weekends")
	e, st := newTestExtractor(t, mock)
	pool := NewPool(e, 2, 8, zap.NewNop())

	for i := 0; i < 4; i++ {
		if !pool.Enqueue(Job{UserID: "u1", UserMessage: "m", AssistantMessage: "a"}) {
			t.Fatalf("Enqueue(%d) = false, want true", i)
		}
	}
	pool.Close()

	got, _ := st.ListMemories(context.Background(), "u1")
	// Same fact mined four times dedupes down to one entry... unless two
	// workers race the FindMemory check; either way at least one lands.
	if len(got) == 0 {
		t.Fatalf("no memories after pool drain")
	}
}

func TestPoolDropsEnqueueAfterClose(t *testing.T) {
	mock := engine.NewMock("NONE")
	e, _ := newTestExtractor(t, mock)
	pool := NewPool(e, 1, 8, zap.NewNop())
	pool.Close()

	// Websocket turns can finish after shutdown has drained the pool; the
	// late submission must be dropped, not panic on the closed channel.
	if pool.Enqueue(Job{UserID: "u1", UserMessage: "m", AssistantMessage: "a"}) {
		t.Fatalf("Enqueue after Close = true, want dropped")
	}

	// Repeated Close must also be harmless.
	pool.Close()
}
