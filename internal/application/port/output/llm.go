package output

import (
	"context"

	"task-agent/internal/domain/entity"
)

// LLMPort is a stateless, single-response completion call.
type LLMPort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type ChatRequest struct {
	Messages    []entity.Message
	Temperature float32
}

type ChatResponse struct {
	Message     entity.Message
	TotalTokens int
}
