// Package items is the client-side cache of inventory items.
//
// Cache keeps an ordered, unique-by-id sequence of Item values that mirrors
// the remote /items collection. Every server-derived record enters the cache
// through a single merge point, Upsert: a known id is replaced in place and
// keeps its position, an unknown id is prepended.
//
// # Optimistic mutation
//
// UpdateOptimistic, StockIn and StockOut change the cached item before the
// remote call returns. A deep snapshot is taken first. On success the
// authoritative response replaces the optimistic guess; on failure the
// snapshot is restored exactly and the remote error is returned unchanged.
// Callers therefore only ever observe the optimistic state or the
// pre-mutation state, never a mix.
//
// Concurrent optimistic mutations of the same item are not serialized: each
// restores its own snapshot on failure.
//
// # Fetching
//
// Fetch replaces the whole sequence with the response for the current
// Filters. Overlapping fetches are not deduplicated; the response that
// arrives last wins. StartPolling re-runs Fetch on a fixed interval through
// pkg/poller and swallows its errors.
//
// # Usage
//
//	cache := items.New(gw, items.WithLogger(log))
//	cache.SetFilters(func(f *items.Filters) { f.TableID = tableID })
//	if err := cache.Fetch(ctx); err != nil {
//	    return err
//	}
//	_, err := cache.UpdateOptimistic(ctx, id, items.Patch{
//	    Quantity:        items.Ptr(12),
//	    PropertiesPatch: map[string]any{"shelf": "B2"},
//	})
package items
