package scoring

import (
	"context"
	"sync"

	"leadscore/internal/features"
)

// ItemResult is one batch entry: either a Result or the error that item
// produced. Index matches the position in the input slice.
type ItemResult struct {
	Index  int
	Result *Result
	Err    error
}

// ScoreAll scores every item independently and returns one entry per input
// in input order. A validation failure on one item never affects its
// siblings. Items are fanned out to a bounded worker pool; the trees are
// read-only so workers share them without synchronization.
func (s *Scorer) ScoreAll(ctx context.Context, items []features.RawInput) []ItemResult {
	results := make([]ItemResult, len(items))
	if len(items) == 0 {
		return results
	}

	workers := s.cfg.BatchWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	idx := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range idx {
				if err := ctx.Err(); err != nil {
					results[i] = ItemResult{Index: i, Err: err}
					continue
				}
				res, err := s.Score(items[i])
				results[i] = ItemResult{Index: i, Result: res, Err: err}
			}
		}()
	}

	for i := range items {
		idx <- i
	}
	close(idx)
	wg.Wait()

	return results
}
