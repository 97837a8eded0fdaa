package logger

import (
	"fmt"
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// RequestID records the gateway request identifier under the key "request_id".
// Empty ids produce an empty Attr.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// UserID records the user identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.String("user_id", fmt.Sprint(id))
}

// ItemID records an inventory item identifier under the key "item_id".
func ItemID(id fmt.Stringer) slog.Attr {
	return slog.String("item_id", id.String())
}

// TableID records an inventory table identifier under the key "table_id".
func TableID(id fmt.Stringer) slog.Attr {
	return slog.String("table_id", id.String())
}

// Status records an HTTP status code under the key "status".
func Status(code int) slog.Attr {
	return slog.Int("status", code)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
