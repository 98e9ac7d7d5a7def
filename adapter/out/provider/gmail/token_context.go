package gmail

import (
	"context"

	"golang.org/x/oauth2"
)

type tokenContextKey struct{}

// WithToken attaches the caller's OAuth2 token to ctx. The Inbox
// Synchronizer and Email Processor call this once per user before
// invoking any InboxAdapter method; InboxProvider's own signatures carry
// no token parameter since credential refresh is out of scope (spec.md §1).
func WithToken(ctx context.Context, token *oauth2.Token) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

func tokenFromContext(ctx context.Context) (*oauth2.Token, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(*oauth2.Token)
	return token, ok && token != nil
}
