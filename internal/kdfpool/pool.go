// Package kdfpool bounds how many slow key derivations run at once so that a
// burst of logins cannot starve the rest of the process of CPU.
package kdfpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

// New returns a pool admitting workers concurrent jobs. Non-positive
// values fall back to runtime.NumCPU().
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers)), size: int64(workers)}
}

func (p *Pool) Size() int {
	return int(p.size)
}

// Do waits for a free slot and runs fn on the calling goroutine.
//
// ctx only bounds the wait. Once fn has started it runs to completion; a
// PBKDF2 computation cannot be interrupted halfway.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	return fn()
}
