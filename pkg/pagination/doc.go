// Package pagination implements incremental, boundary-triggered page loading
// with bounded manual retry.
//
// A Controller accumulates items from a PageFetcher one page at a time. The
// consumer (a terminal list, a CLI loop, a server-driven view) reports that
// the end of the loaded content is near via OnBoundary, or calls LoadMore
// directly. Failures never escape the controller: they are captured as a
// user-facing message in State and resolved with Retry, which waits an
// exponential backoff before a single new attempt.
//
// Example usage:
//
//	ctrl, err := pagination.NewController[client.Repository](fetcher, pagination.DefaultConfig(), firstPage)
//	if err != nil {
//		return err
//	}
//	ctrl.LoadMore(ctx)
//	state := ctrl.State()
//	if state.CanRetry() {
//		ctrl.Retry(ctx)
//	}
//
// The controller guarantees:
//   - at most one fetch in flight (guarded by Status, not by holding a lock across I/O)
//   - Cursor advances by exactly one per successful page
//   - RetryCount never exceeds MaxRetries and resets on success
//   - responses that arrive after Reset are discarded
//
// BatchFetcher covers the non-incremental case: it reads the total page count
// from the first page and fetches the rest with a worker pool.
package pagination
