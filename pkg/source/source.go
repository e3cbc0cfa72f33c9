// Package source feeds input events into the counter.
//
// A Source produces events until its input is exhausted or its context is
// cancelled. Platform hooks, replay files and test fixtures all implement
// the same interface, so the daemon does not care where events come from.
package source

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/planet0104/keyboard-counter/pkg/input"
)

// Emit receives one event. It must return quickly; counter.Counter.Receive
// satisfies it.
type Emit func(input.Event)

// Source streams events to emit.
type Source interface {
	Run(ctx context.Context, emit Emit) error
}

// Func adapts a function literal to the Source interface.
type Func func(ctx context.Context, emit Emit) error

// Run calls the underlying function.
func (f Func) Run(ctx context.Context, emit Emit) error {
	return f(ctx, emit)
}

// Events returns a Source that emits evs in order and then returns.
func Events(evs ...input.Event) Source {
	return Func(func(ctx context.Context, emit Emit) error {
		for _, ev := range evs {
			if err := ctx.Err(); err != nil {
				return err
			}
			emit(ev)
		}
		return nil
	})
}

// Fanout runs every source concurrently against the same emit. The first
// failing source cancels the rest and its error is returned. Sources that
// finish cleanly do not stop the others.
func Fanout(ctx context.Context, emit Emit, sources ...Source) error {
	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("source %d panicked: %v", i, r)
				}
			}()
			return src.Run(ctx, emit)
		})
	}
	return g.Wait()
}
