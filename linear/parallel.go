package linear

import "sync"

// forEachRow runs body for every row index below n, spreading contiguous
// chunks of rows across at most workers goroutines. Rows must be independent;
// the fan-out then computes exactly what the sequential loop would.
func forEachRow(n, workers int, body func(i int)) {
	if workers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			body(i)
		}
		return
	}
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				body(i)
			}
		}(start, end)
	}
	wg.Wait()
}
