package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// CursorState is the immutable pagination triple threaded through the loop and
// committed to the ledger when the run concludes.
type CursorState struct {
	PageSize    int
	CurrentPage int
	TotalCount  int
}

type FetchedPage struct {
	Items      []json.RawMessage
	TotalCount int
}

type FetchPageFunc func(ctx context.Context, pageSize, page int) (FetchedPage, error)

// RetryPolicy bounds per-page retries. A page that exhausts MaxAttempts is
// skipped and reported in FailedPages instead of blocking the whole run.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 3
	}
	return p.MaxAttempts
}

type PageLoopResult struct {
	Items       []json.RawMessage
	Cursor      CursorState
	Pages       int
	FailedPages []int
	Partial     bool
}

// RunPageLoop consumes a paged resource starting from the resume cursor. The
// visited-page counter always advances so the loop terminates after
// ceil(totalCount/pageSize) pages; CurrentPage only advances past a page once
// that page was fetched (full page) or given up on, which keeps the committed
// cursor safe to resume from.
func RunPageLoop(ctx context.Context, start CursorState, fetch FetchPageFunc, retry RetryPolicy, logger *zap.Logger) (PageLoopResult, error) {
	state := start
	if state.PageSize <= 0 {
		state.PageSize = 50
	}
	if state.CurrentPage <= 0 {
		state.CurrentPage = 1
	}

	result := PageLoopResult{Cursor: state}
	visited := 0
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := fetchWithRetry(ctx, fetch, state, retry, logger)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			if state.TotalCount == 0 {
				// Nothing fetched yet, so the extent of the stream is unknown.
				// Give up and let the caller record a failed run.
				return result, err
			}
			if logger != nil {
				logger.Warn("page skipped after retries",
					zap.Int("page", state.CurrentPage),
					zap.Error(err))
			}
			result.FailedPages = append(result.FailedPages, state.CurrentPage)
			result.Partial = true
			visited++
			state.CurrentPage++
			result.Cursor = state
			if doneVisiting(visited, state) {
				return result, nil
			}
			continue
		}

		if page.TotalCount > 0 {
			state.TotalCount = page.TotalCount
		}
		result.Items = append(result.Items, page.Items...)
		result.Pages++
		visited++

		full := len(page.Items) >= state.PageSize
		if full {
			state.CurrentPage++
		}
		result.Cursor = state

		if len(page.Items) == 0 || !full || doneVisiting(visited, state) {
			return result, nil
		}
	}
}

func doneVisiting(visited int, state CursorState) bool {
	if state.TotalCount <= 0 {
		return false
	}
	totalPages := (state.TotalCount + state.PageSize - 1) / state.PageSize
	return visited >= totalPages
}

func fetchWithRetry(ctx context.Context, fetch FetchPageFunc, state CursorState, retry RetryPolicy, logger *zap.Logger) (FetchedPage, error) {
	var lastErr error
	for attempt := 1; attempt <= retry.attempts(); attempt++ {
		page, err := fetch(ctx, state.PageSize, state.CurrentPage)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return FetchedPage{}, ctx.Err()
		}
		if logger != nil {
			logger.Warn("page fetch failed",
				zap.Int("page", state.CurrentPage),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		if attempt == retry.attempts() {
			break
		}
		backoff := retry.Backoff * time.Duration(attempt)
		if backoff <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return FetchedPage{}, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return FetchedPage{}, lastErr
}
