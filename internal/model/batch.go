package model

import (
	"fmt"
	"runtime"
	"sync"
)

type predictTask struct {
	index int
	seq   []int
}

// PredictBatch runs Predict for each sequence on up to GOMAXPROCS workers.
// Outputs keep the order of seqs. The error of the lowest failing index is
// returned.
func (m *Model) PredictBatch(seqs [][]int) ([][]float32, error) {
	out := make([][]float32, len(seqs))
	if len(seqs) == 0 {
		return out, nil
	}
	errs := make([]error, len(seqs))

	workers := min(max(runtime.GOMAXPROCS(0), 1), len(seqs))
	if workers == 1 {
		for i, seq := range seqs {
			if out[i], errs[i] = m.Predict(seq); errs[i] != nil {
				return nil, fmt.Errorf("sequence %d: %w", i, errs[i])
			}
		}
		return out, nil
	}

	tasks := make(chan predictTask, workers*2)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for task := range tasks {
				out[task.index], errs[task.index] = m.Predict(task.seq)
			}
		}()
	}
	for i, seq := range seqs {
		tasks <- predictTask{index: i, seq: seq}
	}
	close(tasks)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("sequence %d: %w", i, err)
		}
	}
	return out, nil
}
