// Package storage provides the small key-value tiers the client persists
// local state in: the session token and the last selected table.
//
// Two tiers are used by the session manager. The durable tier survives process
// restarts (SQLite file or Redis); the ephemeral tier lives only as long as the
// current process (Memory). All implementations satisfy Storage and are safe
// for concurrent use.
//
//	durable, err := storage.OpenSQLite("~/.config/stocksync/state.db")
//	ephemeral := storage.NewMemory()
//
//	_ = durable.Set(ctx, "access_token", token)
//	tok, err := durable.Get(ctx, "access_token")
//	if errors.Is(err, storage.ErrNotFound) {
//	    // nothing persisted
//	}
package storage
