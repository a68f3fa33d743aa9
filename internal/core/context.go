package core

import "context"

type contextKey string

const ctxKeyOrigin contextKey = "request_origin"

// Origin identifies who triggered a submission. It is journaled with every
// attempt; CLI runs leave it empty.
type Origin struct {
	ClientIP  string
	UserAgent string
}

// ContextWithOrigin attaches o to ctx.
func ContextWithOrigin(ctx context.Context, o Origin) context.Context {
	return context.WithValue(ctx, ctxKeyOrigin, o)
}

// OriginFromContext returns the Origin carried by ctx, or the zero value.
func OriginFromContext(ctx context.Context) Origin {
	if o, ok := ctx.Value(ctxKeyOrigin).(Origin); ok {
		return o
	}
	return Origin{}
}
