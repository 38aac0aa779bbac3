package utils

import "sync"

// ParallelMap 以固定 worker 数并行映射 items，结果与输入同序。
// 少于 2 个元素或 workers <= 1 时退化为顺序执行，不起协程。
func ParallelMap[T any, R any](items []T, workers int, fn func(T) R) []R {
	n := len(items)
	if n == 0 {
		return nil
	}

	results := make([]R, n)
	if n == 1 || workers <= 1 {
		for i := range items {
			results[i] = fn(items[i])
		}
		return results
	}
	if workers > n {
		workers = n
	}

	jobCh := make(chan int, n)
	for i := 0; i < n; i++ {
		jobCh <- i
	}
	close(jobCh)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobCh {
				results[i] = fn(items[i])
			}
		}()
	}
	wg.Wait()

	return results
}
