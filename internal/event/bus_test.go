package event

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/forge/internal/logging"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus(nil)

	called := false
	id := bus.Subscribe(TypeTaskStarted, func(e Event) {
		called = true
	})

	if id == "" {
		t.Error("Subscribe should return a non-empty ID")
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("Expected 1 subscription, got %d", bus.SubscriptionCount())
	}
	if called {
		t.Error("Handler should not be called until an event is published")
	}
}

func TestBus_Publish(t *testing.T) {
	bus := NewBus(nil)

	var received Event
	bus.Subscribe(TypeTaskFinished, func(e Event) {
		received = e
	})

	cause := errors.New("exit status 1")
	bus.Publish(NewTaskFinishedEvent("run-1", "build-css", "failure", cause, time.Second))

	finished, ok := received.(TaskFinishedEvent)
	if !ok {
		t.Fatalf("Handler received %T, want TaskFinishedEvent", received)
	}
	if finished.Task != "build-css" || finished.Outcome != "failure" || finished.Err != cause {
		t.Errorf("unexpected event payload: %+v", finished)
	}
	if finished.Timestamp().IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestBus_PublishNoMatchingHandlers(t *testing.T) {
	bus := NewBus(nil)

	called := false
	bus.Subscribe(TypeRunStarted, func(e Event) { called = true })
	bus.Publish(NewWatchTriggeredEvent("frontend", false))

	if called {
		t.Error("Handler for a different event type should not be called")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	calls := 0
	keep := bus.Subscribe(TypeRunFinished, func(e Event) { calls++ })
	drop := bus.Subscribe(TypeRunFinished, func(e Event) { calls += 10 })

	if !bus.Unsubscribe(drop) {
		t.Fatal("Unsubscribe should report success for an existing ID")
	}
	if bus.Unsubscribe(drop) {
		t.Error("Unsubscribe should report false for an already removed ID")
	}

	bus.Publish(NewRunFinishedEvent("run-1", "success", nil, time.Millisecond))
	if calls != 1 {
		t.Errorf("Expected only the remaining handler to run, calls = %d", calls)
	}
	if keep == drop {
		t.Error("subscription IDs must be unique")
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus(nil)

	bus.Subscribe(TypeRunStarted, func(e Event) {})
	bus.Subscribe(TypeRunFinished, func(e Event) {})
	bus.SubscribeAll(func(e Event) {})

	if bus.SubscriptionCount() != 3 {
		t.Errorf("Expected 3 subscriptions before clear, got %d", bus.SubscriptionCount())
	}

	bus.Clear()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions after clear, got %d", bus.SubscriptionCount())
	}
}

func TestBus_HandlerPanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(logging.NewWithWriter(&buf, logging.LevelError))

	calls := 0
	bus.Subscribe(TypeTaskStarted, func(e Event) {
		calls++
		panic("handler panic")
	})
	bus.Subscribe(TypeTaskStarted, func(e Event) {
		calls++
	})

	bus.Publish(NewTaskStartedEvent("run-1", "lint"))

	if calls != 2 {
		t.Errorf("Expected both handlers to be called despite panic, got %d calls", calls)
	}
	if !strings.Contains(buf.String(), "event handler panicked") {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	calls := 0
	bus.Subscribe(TypeFileChanged, func(e Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			bus.Publish(NewFileChangedEvent("app/main.js", []string{"frontend"}))
		})
	}
	wg.Wait()

	if calls != 100 {
		t.Errorf("Expected 100 calls, got %d", calls)
	}
}

func TestBus_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus(nil)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			id := bus.Subscribe(TypeTaskStarted, func(e Event) {})
			bus.Unsubscribe(id)
		})
	}
	wg.Wait()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions after concurrent add/remove, got %d", bus.SubscriptionCount())
	}
}

func TestBus_SpecificHandlersBeforeWildcard(t *testing.T) {
	bus := NewBus(nil)

	var order []string
	bus.SubscribeAll(func(e Event) {
		order = append(order, "wildcard:"+e.EventType())
	})
	bus.Subscribe(TypeRunStarted, func(e Event) {
		order = append(order, "specific:"+e.EventType())
	})

	bus.Publish(NewRunStartedEvent("run-1", []string{"build"}, []string{"clean", "build"}))

	want := []string{"specific:run.started", "wildcard:run.started"}
	if len(order) != 2 || order[0] != want[0] || order[1] != want[1] {
		t.Errorf("dispatch order = %v, want %v", order, want)
	}
}
