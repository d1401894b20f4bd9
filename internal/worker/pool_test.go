package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// mockResult implements Result
type mockResult struct {
	err error
}

func (r *mockResult) GetError() error {
	return r.err
}

// mockJob implements Job
type mockJob struct {
	duration  time.Duration
	shouldErr bool
	executed  *int32 // atomic counter
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{err: errors.New("job error")}
	}
	return &mockResult{err: nil}
}

func TestNewPool(t *testing.T) {
	p1 := NewPool(5)
	if p1.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p1.workers)
	}

	p2 := NewPool(0)
	if p2.workers != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p2.workers)
	}

	p3 := NewPool(-1)
	if p3.workers != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", p3.workers)
	}
}

func TestPool_Execution(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	var executed int32
	count := 10

	for i := 0; i < count; i++ {
		if !pool.Submit(&mockJob{executed: &executed}) {
			t.Fatalf("submit %d rejected", i)
		}
	}

	results := pool.Wait()

	if len(results) != count {
		t.Errorf("expected %d results, got %d", count, len(results))
	}

	if atomic.LoadInt32(&executed) != int32(count) {
		t.Errorf("expected %d executed jobs, got %d", count, executed)
	}
}

// More jobs than the queue holds must not deadlock when nobody reads results early
func TestPool_ManyJobsNoDeadlock(t *testing.T) {
	pool := NewPool(1)
	pool.Start()

	count := 50
	for i := 0; i < count; i++ {
		pool.Submit(&mockJob{})
	}

	done := make(chan []Result)
	go func() { done <- pool.Wait() }()

	select {
	case results := <-done:
		if len(results) != count {
			t.Errorf("expected %d results, got %d", count, len(results))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool deadlocked")
	}
}

func TestPool_Errors(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	pool.Submit(&mockJob{shouldErr: true})
	pool.Submit(&mockJob{shouldErr: false})

	results := pool.Wait()

	errCount := 0
	for _, r := range results {
		if r.GetError() != nil {
			errCount++
		}
	}

	if errCount != 1 {
		t.Errorf("expected 1 error, got %d", errCount)
	}
}

func TestPool_Shutdown(t *testing.T) {
	pool := NewPool(1)
	pool.Start()

	pool.Submit(&mockJob{duration: 5 * time.Second})

	// Give the worker time to pick up the job
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	pool.Shutdown()
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("shutdown took too long: %v", elapsed)
	}

	if pool.Submit(&mockJob{}) {
		t.Error("expected submit after shutdown to be rejected")
	}

	results := pool.Wait()
	if len(results) != 1 {
		t.Fatalf("expected the in-flight job to report, got %d results", len(results))
	}
	if !errors.Is(results[0].GetError(), context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", results[0].GetError())
	}
}

func TestPool_ParentContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPoolWithContext(ctx, 2)
	pool.Start()

	cancel()

	if pool.Submit(&mockJob{}) {
		t.Error("expected submit on cancelled pool to be rejected")
	}
	if pool.Context().Err() == nil {
		t.Error("expected pool context to be cancelled")
	}
	if results := pool.Wait(); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestResultCollector(t *testing.T) {
	c := NewResultCollector()
	c.Add(&mockResult{})
	c.Add(&mockResult{err: errors.New("x")})

	if c.Len() != 2 {
		t.Errorf("expected 2 results, got %d", c.Len())
	}

	results := c.Results()
	results[0] = nil
	if c.Results()[0] == nil {
		t.Error("Results must return a copy")
	}
}
