package state

import (
	"context"

	"github.com/google/uuid"
)

// ContextID identifies one concurrent unit of work. It is only used as a map key.
type ContextID string

// NewContextID returns a fresh random ContextID.
func NewContextID() ContextID {
	return ContextID(uuid.NewString())
}

type ctxKey struct{}

// WithContextID returns a copy of ctx carrying id.
func WithContextID(ctx context.Context, id ContextID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the ContextID stored in ctx, if any.
func FromContext(ctx context.Context) (ContextID, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(ctxKey{}).(ContextID)
	return id, ok && id != ""
}

// Ensure returns ctx together with its ContextID, attaching a new one when
// ctx has none.
func Ensure(ctx context.Context) (context.Context, ContextID) {
	if id, ok := FromContext(ctx); ok {
		return ctx, id
	}
	id := NewContextID()
	return WithContextID(ctx, id), id
}
