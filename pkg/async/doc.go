// Package async runs independent calls concurrently and collects their
// outcome.
//
// Go starts a function in its own goroutine and returns a Future. WaitAll
// waits for every future and joins their errors, so one failing load does not
// hide another:
//
//	tablesF := async.Go(ctx, func(ctx context.Context) (struct{}, error) {
//		return struct{}{}, tablesCache.FetchAll(ctx)
//	})
//	itemsF := async.Go(ctx, func(ctx context.Context) (struct{}, error) {
//		return struct{}{}, itemCache.Fetch(ctx)
//	})
//	if _, err := async.WaitAll(tablesF, itemsF); err != nil {
//		return err
//	}
//
// A context cancelled before the goroutine starts completes the future with
// the context error without calling the function.
package async
