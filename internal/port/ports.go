// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/telecom-support-go/internal/domain"
)

// PromptMessage is one entry of a prompt sent to a model.
type PromptMessage struct {
	Role string // system, user, assistant
	Text string
}

// Completer is the inference collaborator: prompt in, raw text out.
// A single attempt is made; callers fall back on any error.
type Completer interface {
	Invoke(ctx context.Context, prompt []PromptMessage) (string, error)
}

// ToolSpec describes a tool the chat model may call.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// ChatModel runs the conversational model with tools bound. The returned
// message is an AI message that may carry tool calls.
type ChatModel interface {
	Chat(ctx context.Context, system string, history []domain.Message, tools []ToolSpec) (*domain.Message, error)
}

// CustomerFinder is the exact-match lookup over the shared collection.
type CustomerFinder interface {
	FindByID(ctx context.Context, customerID string) (*domain.CustomerRecord, bool)
}

// AuthoritativeStore owns the authoritative customer collection. Watch
// delivers every newly published collection until ctx is done.
type AuthoritativeStore interface {
	Load(ctx context.Context) ([]domain.CustomerRecord, error)
	Save(ctx context.Context, customers []domain.CustomerRecord) error
	Watch(ctx context.Context, fn func([]domain.CustomerRecord)) error
}

// IDGenerator yields identifiers (ticket ids, customer ids).
type IDGenerator interface {
	Next() string
}

// TicketPublisher forwards escalation tickets to the helpdesk.
type TicketPublisher interface {
	PublishTicket(ctx context.Context, t domain.Ticket) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
