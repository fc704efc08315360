package fn

import "sync"

// ParMapResult applies f to every item with at most workers goroutines,
// returning per-item Results in input order. workers outside [1, len]
// means one goroutine per item.
func ParMapResult[T, U any](items []T, workers int, f func(T) Result[U]) []Result[U] {
	out := make([]Result[U], len(items))
	if len(items) == 0 {
		return out
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, item T) {
			defer func() { <-sem; wg.Done() }()
			out[i] = f(item)
		}(i, item)
	}
	wg.Wait()
	return out
}

// FanOutResult runs the given functions concurrently and waits for all of
// them. Every value is returned in argument order when all succeed;
// otherwise the first error in that order wins.
func FanOutResult[T any](fns ...func() Result[T]) Result[[]T] {
	results := make([]Result[T], len(fns))
	var wg sync.WaitGroup
	for i, f := range fns {
		wg.Add(1)
		go func(i int, f func() Result[T]) {
			defer wg.Done()
			results[i] = f()
		}(i, f)
	}
	wg.Wait()

	vals := make([]T, len(results))
	for i, r := range results {
		v, err := r.Unwrap()
		if err != nil {
			return Err[[]T](err)
		}
		vals[i] = v
	}
	return Ok(vals)
}
