package blobstore

import "context"

type credentialKey struct{}

// WithCredential attaches the caller's bearer credential; drivers that talk
// to a remote store forward it on every call.
func WithCredential(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, credentialKey{}, token)
}

func CredentialFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(credentialKey{}).(string)
	return token, ok && token != ""
}
