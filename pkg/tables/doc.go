// Package tables keeps the local list of inventory tables and the persisted
// "active table" selection.
//
// The selection always references a cached table when the list is non-empty
// and is empty otherwise. Every operation that replaces or shrinks the list
// repairs it: a missing or unset selection falls back to the first table.
//
// Basic usage:
//
//	c := tables.New(gw, durable)
//	if err := c.Restore(ctx); err != nil {
//		return err
//	}
//	if err := c.FetchAll(ctx); err != nil {
//		return err
//	}
//	active, ok := c.Active()
package tables
