package bus

import "context"

type progressKey struct{}

// WithProgress attaches a per-turn progress callback to the context. Code
// deep in the tool loop reports intermediate steps through it without
// knowing which front end is listening.
func WithProgress(ctx context.Context, fn func(note string)) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ProgressFromContext returns the attached callback, or nil when the turn
// has no listener.
func ProgressFromContext(ctx context.Context) func(note string) {
	fn, _ := ctx.Value(progressKey{}).(func(note string))
	return fn
}
