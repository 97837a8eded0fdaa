package logger

import (
	"context"
	"log/slog"
)

type operationKey struct{}

// WithOperation tags ctx with an operation id. Records logged with the
// context carry it as "op" when the logger uses OperationExtractor.
func WithOperation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationKey{}, id)
}

// OperationExtractor is a ContextExtractor for ids set with WithOperation.
func OperationExtractor(ctx context.Context) (slog.Attr, bool) {
	id, ok := ctx.Value(operationKey{}).(string)
	if !ok || id == "" {
		return slog.Attr{}, false
	}
	return slog.String("op", id), true
}
