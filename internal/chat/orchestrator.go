// Package chat holds the conversation orchestrator: the control flow that
// turns one incoming user message into a persisted exchange, a (possibly
// streamed) reply, and a queued memory-extraction job.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/antoniostano/chatrelay/internal/engine"
	"github.com/antoniostano/chatrelay/internal/extractor"
	"github.com/antoniostano/chatrelay/internal/observability"
	"github.com/antoniostano/chatrelay/internal/store"
)

const (
	turnTemperature = 0.7

	// titleMaxRunes bounds the auto-title derived from the first user
	// message of a conversation.
	titleMaxRunes = 50
)

const baseSystemPrompt = "You are a helpful, friendly assistant. " +
	"Answer naturally and keep replies focused on what the user asked."

// TurnRequest carries one incoming user message.
type TurnRequest struct {
	ConversationID int64
	UserID         string
	Content        string
	Attachments    []engine.Attachment
}

// Orchestrator runs the memory-augmented conversation loop.
type Orchestrator struct {
	store   store.Store
	engine  engine.Engine // nil when no credential is configured
	pool    *extractor.Pool
	metrics *observability.Metrics
	logger  *zap.Logger
	locks   *conversationLocks
}

func NewOrchestrator(st store.Store, eng engine.Engine, pool *extractor.Pool, metrics *observability.Metrics, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:   st,
		engine:  eng,
		pool:    pool,
		metrics: metrics,
		logger:  logger,
		locks:   newConversationLocks(),
	}
}

// HandleTurn runs one non-streaming turn and returns the full reply.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (string, error) {
	return o.runTurn(ctx, req, nil, "sync")
}

// StreamTurn runs one streaming turn, forwarding each fragment to onDelta as
// it arrives. The concatenated reply is returned once the stream completes.
// An onDelta error (typically a disconnected consumer) aborts the engine
// call; no assistant message is persisted in that case.
func (o *Orchestrator) StreamTurn(ctx context.Context, req TurnRequest, onDelta engine.DeltaHandler) (string, error) {
	o.metrics.ActiveStreams.Inc()
	defer o.metrics.ActiveStreams.Dec()

	wrapped := func(delta string) error {
		o.metrics.StreamFragments.Inc()
		if onDelta != nil {
			return onDelta(delta)
		}
		return nil
	}
	return o.runTurn(ctx, req, wrapped, "stream")
}

func (o *Orchestrator) runTurn(ctx context.Context, req TurnRequest, onDelta engine.DeltaHandler, mode string) (string, error) {
	started := time.Now()
	turnID := uuid.NewString()
	log := o.logger.With(
		zap.String("turn_id", turnID),
		zap.Int64("conversation_id", req.ConversationID),
		zap.String("user_id", req.UserID),
		zap.String("mode", mode),
	)

	if strings.TrimSpace(req.UserID) == "" {
		return "", ErrUnauthenticated
	}
	if o.engine == nil {
		return "", ErrConfiguration
	}

	unlock := o.locks.Lock(req.ConversationID)
	defer unlock()

	_, history, err := o.store.GetConversationWithMessages(ctx, req.ConversationID, req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		o.metrics.Turns.WithLabelValues(mode, "store_error").Inc()
		return "", fmt.Errorf("load conversation: %w", err)
	}

	// The user turn is committed before the engine call. An engine failure
	// leaves it in place with no reply, matching the store contract the
	// clients already expect.
	userMsg, err := o.store.AppendMessage(ctx, req.ConversationID, engine.RoleUser, req.Content)
	if err != nil {
		o.metrics.Turns.WithLabelValues(mode, "store_error").Inc()
		return "", fmt.Errorf("append user message: %w", err)
	}

	memories, err := o.store.ListMemories(ctx, req.UserID)
	if err != nil {
		// Memories only personalize the reply; proceed without them.
		log.Warn("loading memories failed", zap.Error(err))
		memories = nil
	}

	prompt := buildPrompt(memories, history, req)

	var reply string
	if onDelta == nil {
		reply, err = o.engine.Complete(ctx, engine.Request{
			Messages:    prompt,
			Temperature: turnTemperature,
		})
	} else {
		reply, err = o.engine.Stream(ctx, engine.Request{
			Messages:    prompt,
			Temperature: turnTemperature,
		}, onDelta)
	}
	if err != nil {
		o.metrics.Turns.WithLabelValues(mode, "engine_error").Inc()
		log.Warn("engine call failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if _, err := o.store.AppendMessage(ctx, req.ConversationID, engine.RoleAssistant, reply); err != nil {
		o.metrics.Turns.WithLabelValues(mode, "store_error").Inc()
		return "", fmt.Errorf("append assistant message: %w", err)
	}

	// First exchange of a conversation names it after the opening message.
	if len(history) == 0 {
		if _, err := o.store.UpdateConversationTitle(ctx, req.ConversationID, req.UserID, titleFor(req.Content)); err != nil {
			log.Warn("retitling conversation failed", zap.Error(err))
		}
	}

	o.dispatchExtraction(req.UserID, req.Content, reply, memories)

	o.metrics.Turns.WithLabelValues(mode, "ok").Inc()
	o.metrics.ObserveTurnLatency(time.Since(started))
	log.Info("turn complete",
		zap.Int64("user_message_id", userMsg.ID),
		zap.Int("reply_chars", len(reply)),
	)
	return reply, nil
}

func (o *Orchestrator) dispatchExtraction(userID, userContent, reply string, memories []store.Memory) {
	if o.pool == nil {
		return
	}
	o.pool.Enqueue(extractor.Job{
		UserID:           userID,
		UserMessage:      userContent,
		AssistantMessage: reply,
		Existing:         memories,
	})
}

// buildPrompt assembles [system] + prior history + the new turn. The system
// instruction carries the memory digest only when memories exist.
func buildPrompt(memories []store.Memory, history []store.Message, req TurnRequest) []engine.Message {
	prompt := make([]engine.Message, 0, len(history)+2)
	prompt = append(prompt, engine.Message{
		Role:    engine.RoleSystem,
		Content: systemInstruction(memories),
	})
	for _, m := range history {
		prompt = append(prompt, engine.Message{Role: m.Role, Content: m.Content})
	}
	prompt = append(prompt, engine.Message{
		Role:        engine.RoleUser,
		Content:     req.Content,
		Attachments: req.Attachments,
	})
	return prompt
}

func systemInstruction(memories []store.Memory) string {
	if len(memories) == 0 {
		return baseSystemPrompt
	}
	var b strings.Builder
	b.WriteString(baseSystemPrompt)
	b.WriteString("\n\nThings you know about this user:\n")
	for _, m := range memories {
		b.WriteString("- ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// titleFor truncates the opening message to titleMaxRunes, marking the cut
// with an ellipsis.
func titleFor(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxRunes {
		return content
	}
	return string(runes[:titleMaxRunes]) + "..."
}
