// Package stocksync is the client-side state synchronization core for the
// inventory service.
//
// A Client wires the pieces together: one gateway through which every HTTP
// call passes, the session manager that owns the bearer token, the item cache
// with optimistic updates and background refresh, and the table cache with
// its persisted active selection.
//
//	cfg, err := stocksync.LoadConfig()
//	if err != nil {
//		return err
//	}
//	c, err := stocksync.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	c.OnUnauthorized(func() { fmt.Println("session expired, log in again") })
//	if state, err := c.Bootstrap(ctx); err != nil || state != session.StateAuthenticated {
//		...
//	}
//	c.Items.StartPolling(ctx)
//
// Configuration is read from STOCKSYNC_* environment variables and optional
// .env files.
package stocksync
