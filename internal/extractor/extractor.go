// Package extractor mines durable facts about a user from finished
// conversation turns and writes them to the memory store. It runs off the
// response hot path; every failure here is logged and swallowed.
package extractor

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/antoniostano/chatrelay/internal/engine"
	"github.com/antoniostano/chatrelay/internal/observability"
	"github.com/antoniostano/chatrelay/internal/store"
)

const (
	// maxFactsPerExtraction caps how many facts a single exchange may add.
	maxFactsPerExtraction = 3

	// minFactLength filters degenerate fragments ("ok", "...").
	minFactLength = 4

	extractionTemperature = 0.3
	extractionMaxTokens   = 200

	noneSentinel = "NONE"
)

// Extractor asks the completion engine for new facts about a user and
// deduplicates them against the memory store.
type Extractor struct {
	engine   engine.Engine
	memories store.MemoryStore
	metrics  *observability.Metrics
	logger   *zap.Logger
}

func New(eng engine.Engine, memories store.MemoryStore, metrics *observability.Metrics, logger *zap.Logger) *Extractor {
	return &Extractor{
		engine:   eng,
		memories: memories,
		metrics:  metrics,
		logger:   logger,
	}
}

// Extract inspects one finished exchange. It is a no-op when the engine is
// unavailable and never returns an error to its caller.
func (e *Extractor) Extract(ctx context.Context, userID, userMessage, assistantMessage string, existing []store.Memory) {
	if e.engine == nil {
		return
	}

	prompt := buildPrompt(userMessage, assistantMessage, existing)
	resp, err := e.engine.Complete(ctx, engine.Request{
		Messages:    []engine.Message{{Role: engine.RoleUser, Content: prompt}},
		Temperature: extractionTemperature,
		MaxTokens:   extractionMaxTokens,
	})
	if err != nil {
		e.metrics.ExtractionEvents.WithLabelValues("engine_failed").Inc()
		e.logger.Warn("memory extraction call failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return
	}

	facts := parseFacts(resp)
	if len(facts) == 0 {
		e.metrics.ExtractionEvents.WithLabelValues("none").Inc()
		return
	}

	for _, fact := range facts {
		found, err := e.memories.FindMemory(ctx, userID, fact)
		if err != nil {
			e.metrics.ExtractionEvents.WithLabelValues("store_failed").Inc()
			e.logger.Warn("memory lookup failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		if found != nil {
			e.metrics.ExtractionEvents.WithLabelValues("duplicate_skipped").Inc()
			continue
		}
		if _, err := e.memories.AddMemory(ctx, userID, fact); err != nil {
			e.metrics.ExtractionEvents.WithLabelValues("store_failed").Inc()
			e.logger.Warn("memory insert failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		e.metrics.ExtractionEvents.WithLabelValues("fact_added").Inc()
		e.logger.Info("memory added",
			zap.String("user_id", userID),
			zap.String("content", fact),
		)
	}
}

func buildPrompt(userMessage, assistantMessage string, existing []store.Memory) string {
	var b strings.Builder
	b.WriteString("You maintain long-term memory for a chat assistant. ")
	b.WriteString("Review the exchange below and state any NEW facts about the user worth remembering.\n\n")

	b.WriteString("Facts already known about the user:\n")
	if len(existing) == 0 {
		b.WriteString("- (none yet)\n")
	} else {
		for _, m := range existing {
			fmt.Fprintf(&b, "- %s\n", m.Content)
		}
	}

	fmt.Fprintf(&b, "\nUser said: %s\n", userMessage)
	fmt.Fprintf(&b, "Assistant replied: %s\n\n", assistantMessage)

	b.WriteString("Reply with one new fact per line, no commentary. ")
	b.WriteString("If there is nothing new worth remembering, reply with exactly NONE.")
	return b.String()
}

// parseFacts turns the raw model output into at most maxFactsPerExtraction
// candidate facts, stripping bullet markup and discarding fragments.
func parseFacts(resp string) []string {
	resp = strings.TrimSpace(resp)
	if resp == "" || strings.EqualFold(resp, noneSentinel) {
		return nil
	}

	var facts []string
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		facts = append(facts, line)
		if len(facts) == maxFactsPerExtraction {
			break
		}
	}

	kept := facts[:0]
	for _, f := range facts {
		if utf8.RuneCountInString(f) < minFactLength {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}
