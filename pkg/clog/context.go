package clog

import (
	"context"
	"sync"
)

// ctxAttrs holds mutable request-scoped log attributes. Handlers and
// middleware deeper in the stack add attributes; the access-log record at the
// end of the request carries all of them.
type ctxAttrs struct {
	mu         sync.RWMutex
	attributes map[string]any
}

type ctxAttrsKey struct{}

func ContextWithAttributes(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxAttrsKey{}, &ctxAttrs{
		attributes: make(map[string]any),
	})
}

func AddAttribute(ctx context.Context, key string, value any) {
	a, ok := ctx.Value(ctxAttrsKey{}).(*ctxAttrs)
	if !ok {
		return
	}
	a.mu.Lock()
	a.attributes[key] = value
	a.mu.Unlock()
}

func AddAttributes(ctx context.Context, attributes map[string]any) {
	a, ok := ctx.Value(ctxAttrsKey{}).(*ctxAttrs)
	if !ok {
		return
	}
	a.mu.Lock()
	for k, v := range attributes {
		a.attributes[k] = v
	}
	a.mu.Unlock()
}

func GetAttributes(ctx context.Context) map[string]any {
	a, ok := ctx.Value(ctxAttrsKey{}).(*ctxAttrs)
	if !ok {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	copied := make(map[string]any, len(a.attributes))
	for k, v := range a.attributes {
		copied[k] = v
	}
	return copied
}

const (
	errorAttributeKey = "error.message"
	stackAttributeKey = "error.stack"
)

func AddError(ctx context.Context, err error) {
	AddAttribute(ctx, errorAttributeKey, err)
}

func AddStack(ctx context.Context, stack string) {
	AddAttribute(ctx, stackAttributeKey, stack)
}
