// Package parallel contains the bounded parallel ForEach used by the trainer.
package parallel

import (
	"context"
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sync/errgroup"
)

// Threads reports the default number of goroutines: the logical cores
// detected by cpuid, or runtime.NumCPU when detection fails.
func Threads() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// CPU describes the processor for log output.
func CPU() string {
	if cpuid.CPU.BrandName == "" {
		return runtime.GOARCH
	}
	return cpuid.CPU.BrandName
}

// ForEach executes body for each integer from 0 to length with at most limit
// concurrent goroutines. The first error cancels ctx for the remaining bodies
// and is returned.
func ForEach(ctx context.Context, length, limit int, body func(ctx context.Context, i int) error) error {
	if limit <= 0 {
		limit = 1
	}
	if length <= 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := 0; i < length; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return body(gctx, i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// the group context is done after Wait, only the caller's matters
	return ctx.Err()
}
