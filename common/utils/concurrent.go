package utils

import "sync"

// ConcurrentExecuteSync runs one producer alongside concurrency consumer
// goroutines and blocks until the producer has returned and every consumer
// has drained. The producer and consumers coordinate through whatever channel
// the caller closes over; this helper only owns the goroutine lifecycle.
func ConcurrentExecuteSync(concurrency int, producer func(), consumer func()) {
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer()
		}()
	}
	producer()
	wg.Wait()
}
