package auth

import "context"

var credentialCtxKey = &contextKey{"credential"}

type contextKey struct {
	name string
}

// WithCredentialContext sets the authenticated credential in the given context
func WithCredentialContext(ctx context.Context, summary *CredentialSummary) context.Context {
	return context.WithValue(ctx, credentialCtxKey, summary)
}

// CredentialFromContext finds the authenticated credential from the context.
func CredentialFromContext(ctx context.Context) (*CredentialSummary, bool) {
	raw, ok := ctx.Value(credentialCtxKey).(*CredentialSummary)
	return raw, ok && raw != nil
}
