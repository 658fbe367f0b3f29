package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// BatchConfig holds batch fetcher configuration.
type BatchConfig struct {
	// MaxConcurrency is the maximum number of parallel requests.
	// GitHub penalizes bursts with secondary rate limits, so keep this small.
	MaxConcurrency int

	// PerPage is the page size requested from the source (1-100).
	PerPage int

	// Timeout per page fetch.
	Timeout time.Duration

	// MaxPages stops fetching after this many pages (0 = no limit).
	MaxPages int
}

// DefaultBatchConfig returns a conservative configuration for the GitHub API.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 4,
		PerPage:        100,
		Timeout:        15 * time.Second,
	}
}

// pageResult is the outcome of fetching a single page.
type pageResult[T any] struct {
	pageNumber int
	items      []T
	err        error
}

// BatchFetcher fetches every page of a listing, in parallel when the source
// advertises its page count.
type BatchFetcher[T any] struct {
	fetcher PageFetcher[T]
	config  BatchConfig
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher[T any](fetcher PageFetcher[T], config BatchConfig) *BatchFetcher[T] {
	defaults := DefaultBatchConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.PerPage <= 0 || config.PerPage > 100 {
		config.PerPage = defaults.PerPage
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &BatchFetcher[T]{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll returns the items of all pages in page order. When some pages fail
// it returns the items of the pages that succeeded together with the error.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context) ([]T, error) {
	start := time.Now()

	first, err := bf.fetchOne(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	if !first.HasMore || bf.config.MaxPages == 1 {
		log.Info().
			Int("pages", 1).
			Int("items", len(first.Items)).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return first.Items, nil
	}

	// Without a page count the listing can only be walked one page at a time.
	if first.LastPage <= 1 {
		return bf.fetchSequential(ctx, first, start)
	}

	totalPages := first.LastPage
	if bf.config.MaxPages > 0 && totalPages > bf.config.MaxPages {
		totalPages = bf.config.MaxPages
	}

	log.Info().
		Int("total_pages", totalPages).
		Int("workers", bf.config.MaxConcurrency).
		Msg("Starting parallel page fetch")

	pages := make(map[int][]T, totalPages)
	pages[1] = first.Items

	pageQueue := make(chan int, totalPages)
	results := make(chan pageResult[T], totalPages)

	for page := 2; page <= totalPages; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	var wg sync.WaitGroup
	for i := 0; i < bf.config.MaxConcurrency; i++ {
		wg.Add(1)
		go bf.worker(ctx, pageQueue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	failed := 0
	for result := range results {
		if result.err != nil {
			failed++
			if firstErr == nil {
				firstErr = result.err
			}
			continue
		}
		pages[result.pageNumber] = result.items
	}

	items := make([]T, 0, len(pages)*bf.config.PerPage)
	for page := 1; page <= totalPages; page++ {
		items = append(items, pages[page]...)
	}

	if firstErr != nil {
		log.Warn().
			Err(firstErr).
			Int("fetched_pages", len(pages)).
			Int("failed_pages", failed).
			Int("total_pages", totalPages).
			Msg("Returning partial results")
		return items, fmt.Errorf("partial data (%d/%d pages): %w", len(pages), totalPages, firstErr)
	}

	log.Info().
		Int("pages", totalPages).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return items, nil
}

// fetchSequential walks pages after first until one reports no more data.
func (bf *BatchFetcher[T]) fetchSequential(ctx context.Context, first Page[T], start time.Time) ([]T, error) {
	items := append([]T(nil), first.Items...)
	page := 1
	hasMore := first.HasMore

	for hasMore {
		if bf.config.MaxPages > 0 && page >= bf.config.MaxPages {
			break
		}
		page++

		next, err := bf.fetchOne(ctx, page)
		if err != nil {
			return items, fmt.Errorf("partial data (%d pages): %w", page-1, err)
		}
		items = append(items, next.Items...)
		hasMore = next.HasMore
	}

	log.Info().
		Int("pages", page).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete (sequential)")

	return items, nil
}

func (bf *BatchFetcher[T]) fetchOne(ctx context.Context, page int) (Page[T], error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.fetcher.FetchPage(pageCtx, page, bf.config.PerPage)
}

// worker processes pages from the queue.
func (bf *BatchFetcher[T]) worker(ctx context.Context, pageQueue <-chan int, results chan<- pageResult[T], wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		if err := ctx.Err(); err != nil {
			results <- pageResult[T]{pageNumber: pageNum, err: err}
			continue
		}

		page, err := bf.fetchOne(ctx, pageNum)
		if err != nil {
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("page", pageNum).
				Msg("Page fetch failed")
		}
		results <- pageResult[T]{pageNumber: pageNum, items: page.Items, err: err}
		pagesProcessed++
	}

	log.Debug().
		Int("worker_id", workerID).
		Int("pages_processed", pagesProcessed).
		Msg("Worker completed")
}
