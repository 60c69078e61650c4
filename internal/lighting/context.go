package lighting

import "context"

type controllerKey struct{}

// WithController tags ctx with the name of the controller acting on it.
// Platforms use it to attribute commands.
func WithController(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, controllerKey{}, name)
}

// ControllerFromContext returns the controller name set by WithController.
func ControllerFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(controllerKey{}).(string)
	return name, ok && name != ""
}
