package core

// batch.go processes a group of files, such as a multi-file drop.
//
// With a concurrency of 1 files run one after another in the order given,
// each finishing (network round trip included) before the next starts. With
// more, files run on a bounded errgroup and results arrive in whatever order
// the files finish. Either way ProcessAll returns only after every file has
// been processed, and a failed file never stops the others.

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Processor handles a single file and reports whether it succeeded.
type Processor interface {
	Process(ctx context.Context, file FileHandle) bool
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, file FileHandle) bool

func (f ProcessorFunc) Process(ctx context.Context, file FileHandle) bool { return f(ctx, file) }

// BatchReport summarizes one ProcessAll call.
type BatchReport struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration_ns"`
}

// Batch runs a Processor over many files with bounded concurrency.
type Batch struct {
	processor   Processor
	concurrency int
}

// NewBatch creates a Batch. concurrency <= 1 means strictly sequential.
func NewBatch(p Processor, concurrency int) *Batch {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Batch{processor: p, concurrency: concurrency}
}

// Concurrency returns the configured parallelism.
func (b *Batch) Concurrency() int { return b.concurrency }

// ProcessAll processes every file and waits for all of them.
func (b *Batch) ProcessAll(ctx context.Context, files []FileHandle) BatchReport {
	start := time.Now()
	report := BatchReport{Total: len(files)}

	if b.concurrency == 1 {
		for _, f := range files {
			if b.processor.Process(ctx, f) {
				report.Succeeded++
			} else {
				report.Failed++
			}
		}
		report.Duration = time.Since(start)
		return report
	}

	var succeeded atomic.Int64
	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for _, f := range files {
		f := f
		g.Go(func() error {
			if b.processor.Process(ctx, f) {
				succeeded.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Succeeded = int(succeeded.Load())
	report.Failed = report.Total - report.Succeeded
	report.Duration = time.Since(start)
	return report
}
