// Package parallel provides bounded fan-out for tool execution.
package parallel

import "sync"

// Config controls parallel tool execution within one step.
type Config struct {
	Enabled       bool
	MaxConcurrent int
}

// Default returns sequential execution.
func Default() Config {
	return Config{
		Enabled:       false,
		MaxConcurrent: 1,
	}
}

// ForEach runs fn for every index in [0, n) with at most maxConcurrent
// goroutines in flight, and waits for all of them. maxConcurrent < 1 is
// treated as 1.
func ForEach(n, maxConcurrent int, fn func(i int)) {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(idx)
		}(i)
	}

	wg.Wait()
}
