package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Config controls OpenAI client construction.
type Config struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	VisionModel string
}

// OpenAI calls the hosted chat completion API. The vision model is selected
// automatically when the prompt carries image attachments.
type OpenAI struct {
	client      *openai.Client
	chatModel   string
	visionModel string
}

func NewOpenAI(cfg Config) *OpenAI {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(clientConfig),
		chatModel:   cfg.ChatModel,
		visionModel: cfg.VisionModel,
	}
}

func (e *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, e.buildRequest(req, false))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (e *OpenAI) Stream(ctx context.Context, req Request, onDelta DeltaHandler) (string, error) {
	stream, err := e.client.CreateChatCompletionStream(ctx, e.buildRequest(req, true))
	if err != nil {
		return "", fmt.Errorf("open completion stream: %w", err)
	}
	defer stream.Close()

	var out strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("completion stream: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		out.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return "", err
			}
		}
	}
	return out.String(), nil
}

func (e *OpenAI) buildRequest(req Request, stream bool) openai.ChatCompletionRequest {
	model := e.chatModel
	if hasImages(req.Messages) {
		model = e.visionModel
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, toChatMessage(m))
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

func toChatMessage(m Message) openai.ChatCompletionMessage {
	var images []Attachment
	for _, a := range m.Attachments {
		if a.IsImage() {
			images = append(images, a)
		}
	}
	if len(images) == 0 {
		return openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	if m.Content != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: m.Content,
		})
	}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: imageURI(img),
			},
		})
	}
	return openai.ChatCompletionMessage{Role: m.Role, MultiContent: parts}
}

// imageURI embeds raw base64 data as a data URI; already-resolvable URLs
// pass through untouched.
func imageURI(a Attachment) string {
	if strings.HasPrefix(a.Data, "data:") ||
		strings.HasPrefix(a.Data, "http://") ||
		strings.HasPrefix(a.Data, "https://") {
		return a.Data
	}
	return fmt.Sprintf("data:%s;base64,%s", a.MimeType, a.Data)
}
