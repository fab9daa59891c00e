// Package codec compresses and decompresses game files with zstd and adapts
// external tools that report progress only through shared state or growing
// output files.
package codec

import (
	"context"
	"os"
	"sync/atomic"
	"time"
)

// Cell is a shared progress counter a worker updates while it runs and a
// poller reads concurrently.
type Cell struct {
	done  atomic.Int64
	total atomic.Int64
}

func (c *Cell) SetTotal(t int64) { c.total.Store(t) }

func (c *Cell) Add(n int64) { c.done.Add(n) }

func (c *Cell) Load() (done, total int64) {
	return c.done.Load(), c.total.Load()
}

// RunWithCell runs fn and reports the cell's state through onProgress every
// interval, plus one final read after fn returns so the last update is never
// lost. Reported done is clamped to total. fn is expected to honor ctx; on
// cancellation RunWithCell stops polling and returns ctx.Err().
func RunWithCell(ctx context.Context, interval time.Duration, cell *Cell, fn func() error, onProgress func(done, total int64)) error {
	errc := make(chan error, 1)
	go func() { errc <- fn() }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case err := <-errc:
			emit(cell, onProgress)
			return err
		case <-ticker.C:
			emit(cell, onProgress)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func emit(cell *Cell, onProgress func(done, total int64)) {
	d, t := cell.Load()
	if t > 0 && d > t {
		d = t
	}
	onProgress(d, t)
}

// RunWithSizePoll runs fn and estimates its progress from the size of the
// file it writes at outPath, against an estimated total. The estimate is a
// guess, so the reported value is clamped; the final report on success is
// always (total, total).
func RunWithSizePoll(ctx context.Context, interval time.Duration, outPath string, total int64, fn func() error, onProgress func(done, total int64)) error {
	errc := make(chan error, 1)
	go func() { errc <- fn() }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case err := <-errc:
			if err != nil {
				return err
			}
			onProgress(total, total)
			return nil
		case <-ticker.C:
			done := int64(0)
			if fi, err := os.Stat(outPath); err == nil {
				done = fi.Size()
			}
			if done > total {
				done = total
			}
			onProgress(done, total)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
