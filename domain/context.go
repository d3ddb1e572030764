package domain

import "context"

// CallerContextKey is the key used to store the authenticated Caller in
// context.
const CallerContextKey = "pitchly_caller"

// Caller identifies who invoked an operation. Remote is true when the call
// arrived over a client connection; server-originated calls leave it false,
// which permits targeting another user by id.
type Caller struct {
	UserID string
	Remote bool
}

// WithCaller returns a context carrying the caller identity.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, CallerContextKey, caller)
}

// CallerFromContext retrieves the caller identity from context.
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(CallerContextKey).(*Caller)
	return caller, ok && caller != nil
}
