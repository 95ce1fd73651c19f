package utils

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"
	gutils "go.viam.com/utils"
)

func TestChunkedParallel(t *testing.T) {
	for _, tc := range []struct {
		total, workers int
	}{
		{10, 3}, {10, 1}, {3, 8}, {1000, 0}, {7, 7},
	} {
		seen := make([]int, tc.total)
		var mu sync.Mutex
		chunks := map[int]bool{}
		err := ChunkedParallel(context.Background(), tc.total, tc.workers, func(_ context.Context, chunkNum, from, to int) error {
			mu.Lock()
			chunks[chunkNum] = true
			mu.Unlock()
			for i := from; i < to; i++ {
				seen[i]++
			}
			return nil
		})
		test.That(t, err, test.ShouldBeNil)
		for _, n := range seen {
			test.That(t, n, test.ShouldEqual, 1)
		}
		if tc.workers == 1 {
			test.That(t, len(chunks), test.ShouldEqual, 1)
		}
	}

	test.That(t, ChunkedParallel(context.Background(), 0, 4, nil), test.ShouldBeNil)
}

func TestChunkedParallelErrors(t *testing.T) {
	err := ChunkedParallel(context.Background(), 100, 4, func(ctx context.Context, chunkNum, _, _ int) error {
		if chunkNum == 2 {
			return errors.New("bad chunk")
		}
		<-ctx.Done()
		return ctx.Err()
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldEqual, "bad chunk")

	err = ChunkedParallel(context.Background(), 100, 4, func(_ context.Context, chunkNum, _, _ int) error {
		if chunkNum == 1 {
			panic("boom")
		}
		return nil
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "boom")
}

func TestRunInParallel(t *testing.T) {
	wait100ms := func(ctx context.Context) error {
		gutils.SelectContextOrWait(ctx, 100*time.Millisecond)
		return ctx.Err()
	}

	elapsed, err := RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, elapsed, test.ShouldBeLessThan, 190*time.Millisecond)
	test.That(t, elapsed, test.ShouldBeGreaterThan, 90*time.Millisecond)

	errFunc := func(ctx context.Context) error {
		return errors.New("bad")
	}

	elapsed, err = RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms, errFunc})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, elapsed, test.ShouldBeLessThan, 90*time.Millisecond)

	panicFunc := func(ctx context.Context) error {
		panic(1)
	}

	_, err = RunInParallel(context.Background(), []SimpleFunc{panicFunc})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSafeJoinDir(t *testing.T) {
	dir := t.TempDir()
	joined, err := SafeJoinDir(dir, "front_sphere.pcd")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, joined, test.ShouldEqual, filepath.Join(dir, "front_sphere.pcd"))

	_, err = SafeJoinDir(dir, "../escape.pcd")
	test.That(t, err, test.ShouldNotBeNil)
}
