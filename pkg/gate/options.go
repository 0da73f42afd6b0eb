package gate

// Option configures a Gate.
type Option func(*gateOptions)

type gateOptions struct {
	name    string
	observe func(name string, inFlight int)
}

// WithName labels the gate, typically with the provider it guards.
func WithName(name string) Option {
	return func(o *gateOptions) {
		o.name = name
	}
}

// WithObserver is called with the new in-flight count after every acquire
// and release.
func WithObserver(fn func(name string, inFlight int)) Option {
	return func(o *gateOptions) {
		o.observe = fn
	}
}
