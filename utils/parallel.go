// Package utils contains small helpers shared across packages.
package utils

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// ParallelFactor is the default number of workers for parallel loops.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// ChunkWorkFunc processes the items in [from, to) of chunk chunkNum.
type ChunkWorkFunc func(ctx context.Context, chunkNum, from, to int) error

// ChunkedParallel splits totalSize items into contiguous chunks, one per worker, and runs them
// concurrently. workers <= 0 means ParallelFactor and 1 runs the single chunk on the calling
// goroutine. The first error cancels the context handed to the other chunks and is returned.
func ChunkedParallel(ctx context.Context, totalSize, workers int, work ChunkWorkFunc) error {
	if totalSize <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = ParallelFactor
	}
	if workers > totalSize {
		workers = totalSize
	}
	if workers == 1 {
		return work(ctx, 0, 0, totalSize)
	}

	chunkSize := totalSize / workers
	extra := totalSize % workers
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	from := 0
	for chunkNum := 0; chunkNum < workers; chunkNum++ {
		// the first extra chunks take one more item each
		to := from + chunkSize
		if chunkNum < extra {
			to++
		}
		chunkNum, chunkFrom, chunkTo := chunkNum, from, to
		group.Go(func() (err error) {
			defer func() {
				if thePanic := recover(); thePanic != nil {
					err = fmt.Errorf("panic in chunk %d [%d, %d): %v", chunkNum, chunkFrom, chunkTo, thePanic)
				}
			}()
			return work(groupCtx, chunkNum, chunkFrom, chunkTo)
		})
		from = to
	}
	return group.Wait()
}

// SimpleFunc is for RunInParallel.
type SimpleFunc func(ctx context.Context) error

// RunInParallel runs all functions in parallel, returning the elapsed time and the first error.
// A failing or panicking function cancels the others.
func RunInParallel(ctx context.Context, fs []SimpleFunc) (time.Duration, error) {
	start := time.Now()
	group, groupCtx := errgroup.WithContext(ctx)
	for _, f := range fs {
		group.Go(func() (err error) {
			defer func() {
				if thePanic := recover(); thePanic != nil {
					err = fmt.Errorf("got panic running something in parallel: %v", thePanic)
				}
			}()
			return f(groupCtx)
		})
	}
	err := group.Wait()
	return time.Since(start), err
}
