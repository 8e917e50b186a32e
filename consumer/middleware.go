package consumer

import (
	"context"
	"fmt"
)

// Middleware wraps an Application with cross-cutting behavior, mirroring
// the teacher's handler.Middleware[C] shape: a function from Application to
// Application, composed around the consumer rather than inside it.
type Middleware func(next Application) Application

// Chain composes middlewares around app in the order given, so the first
// middleware in the slice is the outermost wrapper (runs first on entry,
// last on exit).
func Chain(app Application, mws ...Middleware) Application {
	for i := len(mws) - 1; i >= 0; i-- {
		app = mws[i](app)
	}
	return app
}

// Recover wraps app so that a panic inside it is converted into an error
// return instead of crashing the serving goroutine.
func Recover() Middleware {
	return func(next Application) Application {
		return func(ctx context.Context, scope Scope, receive ReceiveFunc, send SendFunc) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if e, ok := r.(error); ok {
						err = e
					} else {
						err = panicError{value: r}
					}
				}
			}()
			return next(ctx, scope, receive, send)
		}
	}
}

type panicError struct{ value any }

func (p panicError) Error() string { return fmt.Sprintf("consumer: recovered panic: %v", p.value) }
