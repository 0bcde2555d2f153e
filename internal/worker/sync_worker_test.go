package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bookngn/internal/amqp"
	"bookngn/internal/core"
)

type fakeProcessor struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	nudges   int
	batches  []int
	calls    int
	cleanups int
	resets   int
	resetErr error
	stats    core.SyncQueueStats
	startErr error
}

func (f *fakeProcessor) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeProcessor) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeProcessor) ProcessNow() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nudges++
}

func (f *fakeProcessor) ProcessBatch(ctx context.Context) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.batches) == 0 {
		return 0
	}
	n := f.batches[0]
	f.batches = f.batches[1:]
	return n
}

func (f *fakeProcessor) Cleanup(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
	return 0, nil
}

func (f *fakeProcessor) ResetStale(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return f.resetErr
}

func (f *fakeProcessor) Stats(ctx context.Context, userID string) (core.SyncQueueStats, error) {
	return f.stats, nil
}

func TestHandleSyncRequestedNudgesProcessor(t *testing.T) {
	p := &fakeProcessor{}
	w := NewSyncWorker(p, Schedule{})

	msg := amqp.NewSyncRequestedMessage("user-1", "transaction", "tx-1")
	if err := w.HandleSyncRequested(context.Background(), msg); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.nudges != 1 {
		t.Errorf("Expected 1 nudge, got %d", p.nudges)
	}
}

func TestStartupSyncCheck(t *testing.T) {
	tests := []struct {
		name      string
		batches   []int
		wantCalls int
	}{
		{"empty queue", nil, 1},
		{"drains until empty", []int{10, 10, 3}, 4},
		{"bounded", []int{10, 10, 10, 10, 10, 10, 10}, startupBatches},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProcessor{batches: tt.batches}
			w := NewSyncWorker(p, Schedule{})

			if err := w.StartupSyncCheck(context.Background()); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if p.calls != tt.wantCalls {
				t.Errorf("Expected %d batches, got %d", tt.wantCalls, p.calls)
			}
			if p.resets != 1 {
				t.Errorf("Expected stale items to be reset once, got %d", p.resets)
			}
		})
	}
}

func TestStartupSyncCheckResetError(t *testing.T) {
	p := &fakeProcessor{resetErr: errors.New("disk full")}
	w := NewSyncWorker(p, Schedule{})

	if err := w.StartupSyncCheck(context.Background()); err == nil {
		t.Fatal("Expected error when reset fails")
	}
	if p.calls != 0 {
		t.Errorf("Expected no batches after reset failure, got %d", p.calls)
	}
}

func TestStartStop(t *testing.T) {
	p := &fakeProcessor{}
	w := NewSyncWorker(p, Schedule{})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !p.started {
		t.Error("Expected processor to be started")
	}
	if w.Entries() != 3 {
		t.Errorf("Expected 3 scheduled jobs, got %d", w.Entries())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !p.stopped {
		t.Error("Expected processor to be stopped")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	p := &fakeProcessor{}
	w := NewSyncWorker(p, Schedule{Cleanup: "every now and then"})

	if err := w.Start(context.Background()); err == nil {
		t.Fatal("Expected error for invalid cron spec")
	}
	if p.started {
		t.Error("Expected processor not to start")
	}
}

func TestStartProcessorError(t *testing.T) {
	p := &fakeProcessor{startErr: errors.New("already running")}
	w := NewSyncWorker(p, Schedule{})

	if err := w.Start(context.Background()); err == nil {
		t.Fatal("Expected error when processor fails to start")
	}
}

func TestRunJob(t *testing.T) {
	p := &fakeProcessor{stats: core.SyncQueueStats{Pending: 2, Failed: 1}}
	w := NewSyncWorker(p, Schedule{})

	w.runJob(context.Background(), "cleanup", w.cleanup)()
	if p.cleanups != 1 {
		t.Errorf("Expected cleanup to run once, got %d", p.cleanups)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.runJob(ctx, "cleanup", w.cleanup)()
	if p.cleanups != 1 {
		t.Errorf("Expected cancelled job to be skipped, got %d cleanups", p.cleanups)
	}

	if err := w.logStats(context.Background()); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
