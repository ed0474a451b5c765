package dirminify

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the number of files processed at once when no
// capacity is configured.
const DefaultCapacity = 300

var ErrInvalidCapacity = errors.New("scheduler: capacity must be at least 1")

type TaskResult[T any] struct {
	Item T
	Err  error
}

// Worker processes a single item.
type Worker[T any] func(ctx context.Context, item T) error

// Run calls worker for every item with at most capacity calls in flight.
// Items start in input order; a finished call frees its slot for the next
// pending item. A failing item never stops the others. onDone, if not nil,
// is called exactly once after every item has completed, with results in
// the order of items. Items still pending when ctx is cancelled complete
// with ctx.Err() without reaching the worker.
func Run[T any](ctx context.Context, capacity int, items []T, worker Worker[T], onDone func([]TaskResult[T])) error {
	if capacity < 1 {
		return ErrInvalidCapacity
	}

	results := make([]TaskResult[T], len(items))
	if len(items) == 0 {
		if onDone != nil {
			onDone(results)
		}
		return nil
	}

	jobs := make(chan int, len(items))
	for i := range items {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	numWorkers := min(capacity, len(items))
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// Each index is owned by exactly one worker.
				results[i] = TaskResult[T]{Item: items[i], Err: runTask(ctx, worker, items[i])}
			}
		}()
	}
	wg.Wait()

	if onDone != nil {
		onDone(results)
	}
	return nil
}

func runTask[T any](ctx context.Context, worker Worker[T], item T) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: task panicked: %v", r)
		}
	}()
	return worker(ctx, item)
}
