package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"zexplorer/core"
)

func TestRunDeliversEventsInOrder(t *testing.T) {
	relay := Run(func(emit core.ProgressFunc) core.GenerationResult {
		for i := 0; i < 50; i++ {
			emit(core.ProgressEvent{Stage: core.StageDiffusionStep, Message: fmt.Sprintf("%d", i)})
		}
		return core.GenerationResult{Success: true}
	})

	var got []string
	result, delivered, err := relay.Forward(context.Background(), time.Second,
		func(ev core.ProgressEvent) error {
			got = append(got, ev.Message)
			return nil
		}, nil)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if !delivered {
		t.Fatal("result not delivered")
	}
	if !result.Success {
		t.Errorf("result = %+v", result)
	}
	if len(got) != 50 {
		t.Fatalf("got %d events, want 50", len(got))
	}
	for i, msg := range got {
		if msg != fmt.Sprintf("%d", i) {
			t.Fatalf("event %d = %q, out of order", i, msg)
		}
	}
}

func TestEmitNeverBlocksWhenQueueIsFull(t *testing.T) {
	done := make(chan struct{})
	relay := Run(func(emit core.ProgressFunc) core.GenerationResult {
		defer close(done)
		for i := 0; i < 10; i++ {
			emit(core.ProgressEvent{Stage: core.StageDiffusionStep})
		}
		return core.GenerationResult{Success: true}
	}, WithBufferSize(4))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker blocked on a full queue")
	}
	if relay.Dropped() != 6 {
		t.Errorf("dropped = %d, want 6", relay.Dropped())
	}
}

func TestRunRecoversWorkerPanic(t *testing.T) {
	relay := Run(func(emit core.ProgressFunc) core.GenerationResult {
		panic("synthesis exploded")
	})

	result, delivered, err := relay.Forward(context.Background(), time.Second,
		func(core.ProgressEvent) error { return nil }, nil)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if !delivered {
		t.Fatal("terminal result not delivered after panic")
	}
	if result.Success {
		t.Error("panicked worker reported success")
	}
	if len(result.Errors) != 1 || result.Errors[0] != "unknown error: synthesis exploded" {
		t.Errorf("errors = %v", result.Errors)
	}
}

func TestForwardStopsOnContextCancel(t *testing.T) {
	release := make(chan struct{})
	var workerDone sync.WaitGroup
	workerDone.Add(1)

	relay := Run(func(emit core.ProgressFunc) core.GenerationResult {
		defer workerDone.Done()
		<-release
		return core.GenerationResult{Success: true}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, delivered, err := relay.Forward(ctx, time.Second,
		func(core.ProgressEvent) error { return nil }, nil)
	if delivered {
		t.Error("delivered despite cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}

	// The worker keeps running; cancellation only stops delivery.
	close(release)
	workerDone.Wait()
	select {
	case result := <-relay.Done():
		if !result.Success {
			t.Errorf("worker result = %+v", result)
		}
	case <-time.After(time.Second):
		t.Fatal("worker result never published")
	}
}

func TestForwardStopsOnEventCallbackError(t *testing.T) {
	relay := Run(func(emit core.ProgressFunc) core.GenerationResult {
		emit(core.ProgressEvent{Stage: core.StageStarting})
		return core.GenerationResult{Success: true}
	})

	sentinel := errors.New("write failed")
	_, delivered, err := relay.Forward(context.Background(), time.Second,
		func(core.ProgressEvent) error { return sentinel }, nil)
	if delivered {
		t.Error("delivered despite callback error")
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want sentinel", err)
	}
}

func TestForwardFiresKeepaliveOnSilentWorker(t *testing.T) {
	release := make(chan struct{})
	relay := Run(func(emit core.ProgressFunc) core.GenerationResult {
		<-release
		return core.GenerationResult{Success: true}
	})

	var keepalives int
	result, delivered, err := relay.Forward(context.Background(), 5*time.Millisecond,
		func(core.ProgressEvent) error { return nil },
		func() error {
			keepalives++
			if keepalives == 3 {
				close(release)
			}
			return nil
		})
	if err != nil || !delivered {
		t.Fatalf("Forward: delivered=%v err=%v", delivered, err)
	}
	if !result.Success {
		t.Errorf("result = %+v", result)
	}
	if keepalives < 3 {
		t.Errorf("keepalives = %d, want >= 3", keepalives)
	}
}

func TestForwardDrainsQueuedEventsAfterWorkerExit(t *testing.T) {
	relay := Run(func(emit core.ProgressFunc) core.GenerationResult {
		emit(core.ProgressEvent{Stage: core.StageStarting})
		emit(core.ProgressEvent{Stage: core.StageComplete})
		return core.GenerationResult{Success: true}
	})

	// Give the worker time to finish before the consumer starts reading.
	time.Sleep(20 * time.Millisecond)

	var stages []core.Stage
	_, delivered, err := relay.Forward(context.Background(), time.Second,
		func(ev core.ProgressEvent) error {
			stages = append(stages, ev.Stage)
			return nil
		}, nil)
	if err != nil || !delivered {
		t.Fatalf("Forward: delivered=%v err=%v", delivered, err)
	}
	if len(stages) != 2 || stages[0] != core.StageStarting || stages[1] != core.StageComplete {
		t.Errorf("stages = %v", stages)
	}
}
