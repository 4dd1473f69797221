package memory

import (
	"context"
	"time"
)

// Role labels one half of a conversational exchange.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Record stores a single user or assistant conversational turn.
type Record struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	GroupID   string    `json:"group_id,omitempty"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// Identity scopes all memory operations. A group conversation and a direct
// conversation with the same user are distinct contexts.
type Identity struct {
	UserID  string
	GroupID string
}

// Key returns the composite scope key for this identity.
func (id Identity) Key() string {
	if id.GroupID == "" {
		return id.UserID
	}
	return id.UserID + "@" + id.GroupID
}

// Store persists and retrieves conversational memory.
//
// Append writes both halves of an exchange atomically: either both the user
// and the assistant record become visible, or neither does. Recent returns
// up to limit most recent user records and up to limit most recent assistant
// records, merged in ascending timestamp order.
type Store interface {
	Append(ctx context.Context, id Identity, userText, assistantText string) error
	Recent(ctx context.Context, id Identity, limit int) ([]Record, error)
	Close() error
}

type identityKey struct{}

// WithIdentity binds the turn's identity to the context so identity-scoped
// tools can resolve it without carrying mutable handler state.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity bound to ctx, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
