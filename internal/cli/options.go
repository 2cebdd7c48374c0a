package cli

// Option configures the command tree.
type Option func(*app)

// WithServiceFactory replaces how the service is built after configuration
// is loaded. Tests use it to inject a fake.
func WithServiceFactory(f ServiceFactory) Option {
	return func(a *app) {
		if f != nil {
			a.factory = f
		}
	}
}
