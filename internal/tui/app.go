// Package tui is the live dashboard for forge watch.
package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/forge/internal/event"
)

// eventBuffer bounds the queue between the bus and the program. Events that
// do not fit are dropped rather than stalling a run, except run.finished,
// which carries the final state of every task in the run.
const eventBuffer = 256

// App wraps the Bubbletea program
type App struct {
	program *tea.Program
	model   Model
	bus     *event.Bus
	sub     string
	queue   chan event.Event

	mu       sync.Mutex
	finished []event.Event
	notify   chan struct{}
}

// New creates a dashboard fed by bus. Events published after New returns
// are queued until Run starts.
func New(bus *event.Bus, bindings []BindingInfo) *App {
	a := &App{
		model:  NewModel(bindings),
		bus:    bus,
		queue:  make(chan event.Event, eventBuffer),
		notify: make(chan struct{}, 1),
	}
	a.sub = bus.SubscribeAll(a.enqueue)
	return a
}

func (a *App) enqueue(e event.Event) {
	if e.EventType() == event.TypeRunFinished {
		a.mu.Lock()
		a.finished = append(a.finished, e)
		a.mu.Unlock()
		select {
		case a.notify <- struct{}{}:
		default:
		}
		return
	}
	select {
	case a.queue <- e:
	default:
	}
}

// next returns the events to deliver once notify fires: everything already
// queued, then the held run.finished events. Only the forwarding goroutine
// calls it. Task events of a run are
// published before its run.finished, so they are in the queue by now.
func (a *App) next() []event.Event {
	var out []event.Event
	for len(a.queue) > 0 {
		out = append(out, <-a.queue)
	}
	a.mu.Lock()
	out = append(out, a.finished...)
	a.finished = nil
	a.mu.Unlock()
	return out
}

// Run shows the dashboard until the user quits or ctx is cancelled.
// Quitting from the keyboard returns nil; callers treat it like SIGINT.
func (a *App) Run(ctx context.Context, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	a.program = tea.NewProgram(a.model, opts...)

	defer a.bus.Unsubscribe(a.sub)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case e := <-a.queue:
				a.program.Send(eventMsg{event: e})
			case <-a.notify:
				for _, e := range a.next() {
					a.program.Send(eventMsg{event: e})
				}
			case <-done:
				return
			}
		}
	}()

	_, err := a.program.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
