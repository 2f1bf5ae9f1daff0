package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when a script runs past the engine timeout.
	ErrTimeout = errors.New("engine: evaluation timed out")
	// ErrSuperseded is returned for an evaluation that finished after a
	// newer one started.
	ErrSuperseded = errors.New("engine: evaluation superseded by newer request")
)

// evalResult carries one evaluation back from its goroutine.
type evalResult struct {
	result *EvalResult
	err    error
}

// waitWithTimeout waits for the evaluation of generation gen on ch.
//
// A timed-out goroutine keeps running until zygomys returns; by then the
// generation has moved on and its result is dropped.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	timeout time.Duration,
	mu *sync.Mutex,
	currentGen *uint64,
) (*EvalResult, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		stale := gen != *currentGen
		mu.Unlock()

		if stale {
			return nil, ErrSuperseded
		}
		if res.err != nil {
			return nil, res.err
		}
		return res.result, nil

	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
