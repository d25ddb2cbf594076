package engine

import "context"

// Message roles accepted by the engine and the stores.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Attachment is a client-supplied file riding along with a message. Only
// image attachments influence the prompt; other types are ignored.
type Attachment struct {
	Type     string `json:"type"`
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
	Name     string `json:"name,omitempty"`
}

// Message is one role-tagged entry of the prompt sent to the engine.
type Message struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Request is a single completion call.
type Request struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// DeltaHandler receives streaming text fragments. Returning an error aborts
// the stream.
type DeltaHandler func(delta string) error

// Engine produces a reply for an ordered message list, atomically or as an
// incremental fragment stream.
type Engine interface {
	Complete(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request, onDelta DeltaHandler) (string, error)
}

// IsImage reports whether the attachment carries inline image data.
func (a Attachment) IsImage() bool {
	return a.Type == "image"
}

func hasImages(msgs []Message) bool {
	for _, m := range msgs {
		for _, a := range m.Attachments {
			if a.IsImage() {
				return true
			}
		}
	}
	return false
}
