package utils

import (
	"context"
	"sync"
)

type CompletedTask[In any, Out any] struct {
	Input  In
	Result Out
	Error  error
}

// RunInPool drains queue with at most maxWorkers goroutines and closes completed
// once every worker has exited. Workers stop taking new inputs after ctx is done;
// inputs left in the queue are reported with ctx.Err().
func RunInPool[In any, Out any](ctx context.Context, worker func(context.Context, In) (Out, error), queue chan In, completed chan CompletedTask[In, Out], maxWorkers int) {
	workers := min(len(queue), max(maxWorkers, 1))

	go func() {
		wg := sync.WaitGroup{}
		wg.Add(workers)

		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()

				for next := range queue {
					if err := ctx.Err(); err != nil {
						completed <- CompletedTask[In, Out]{Input: next, Error: err}
						continue
					}

					res, err := worker(ctx, next)
					if err != nil {
						completed <- CompletedTask[In, Out]{Input: next, Error: err}
					} else {
						completed <- CompletedTask[In, Out]{Input: next, Result: res}
					}
				}
			}()
		}

		wg.Wait()

		close(completed)
	}()
}

// Map applies fn to every input through RunInPool and returns results in input order.
func Map[In any, Out any](ctx context.Context, inputs []In, maxWorkers int, fn func(context.Context, In) (Out, error)) ([]Out, []error) {
	type indexed struct {
		idx   int
		input In
	}

	queue := make(chan indexed, len(inputs))
	for i, in := range inputs {
		queue <- indexed{idx: i, input: in}
	}
	close(queue)

	completed := make(chan CompletedTask[indexed, Out], len(inputs))
	RunInPool(ctx, func(ctx context.Context, in indexed) (Out, error) {
		return fn(ctx, in.input)
	}, queue, completed, maxWorkers)

	results := make([]Out, len(inputs))
	errs := make([]error, len(inputs))
	for task := range completed {
		results[task.Input.idx] = task.Result
		errs[task.Input.idx] = task.Error
	}

	return results, errs
}
