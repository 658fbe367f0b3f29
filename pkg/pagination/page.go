package pagination

import "context"

// Page is one page of results returned by a PageFetcher.
type Page[T any] struct {
	// Items are the records on this page, in source order.
	Items []T

	// HasMore reports whether another page may follow. Fetchers set it when
	// the page was full (len(Items) == perPage).
	HasMore bool

	// LastPage is the total number of pages when the source advertises it,
	// 0 otherwise.
	LastPage int
}

// PageFetcher performs the network call for a single page.
// Errors should implement UserMessager so the controller can surface a
// message suitable for display.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, page, perPage int) (Page[T], error)
}

// PageFetcherFunc adapts a plain function to the PageFetcher interface.
type PageFetcherFunc[T any] func(ctx context.Context, page, perPage int) (Page[T], error)

// FetchPage calls f(ctx, page, perPage).
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, page, perPage int) (Page[T], error) {
	return f(ctx, page, perPage)
}
