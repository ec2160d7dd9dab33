package lifecycle

import (
	"log/slog"

	"go.opentelemetry.io/otel"

	sserr "github.com/StricklySoft/addressbook/pkg/errors"
)

// ServiceBuilder constructs a [Service] with validated configuration and
// optional lifecycle hooks. Use [NewServiceBuilder] to start building.
//
// The builder follows the fluent API pattern: all configuration methods
// return the builder for chaining. Call [ServiceBuilder.Build] to
// validate the configuration and produce the service.
//
// Example:
//
//	svc, err := lifecycle.NewServiceBuilder("addressbook", "1.0.0").
//	    WithOnStart(func(ctx context.Context) error {
//	        return store.Health(ctx)
//	    }).
//	    WithOnStop(func(ctx context.Context) error {
//	        return store.Close()
//	    }).
//	    WithHealthCheck("contact-store", store.Health).
//	    OnStateChange(func(old, new lifecycle.State) {
//	        slog.Info("state changed", "from", old, "to", new)
//	    }).
//	    Build()
type ServiceBuilder struct {
	name          string
	version       string
	logger        *slog.Logger
	onStart       Hook
	onStop        Hook
	checks        map[string]HealthCheck
	checkNames    []string
	stateHandlers []StateChangeHandler
	buildErr      *sserr.Error
}

// NewServiceBuilder creates a new builder with the required identity
// fields. The name and version are validated during
// [ServiceBuilder.Build].
func NewServiceBuilder(name, version string) *ServiceBuilder {
	return &ServiceBuilder{
		name:    name,
		version: version,
		checks:  make(map[string]HealthCheck),
	}
}

// WithLogger sets a custom [*slog.Logger] for the service. If not
// called, [slog.Default] is used. The logger is used for lifecycle event
// logging and panic recovery messages.
func (b *ServiceBuilder) WithLogger(logger *slog.Logger) *ServiceBuilder {
	b.logger = logger
	return b
}

// WithOnStart sets the lifecycle hook called during [Service.Start],
// after the service transitions to [StateStarting] and before it
// transitions to [StateRunning]. Use this to verify dependency
// connectivity before accepting traffic.
func (b *ServiceBuilder) WithOnStart(hook Hook) *ServiceBuilder {
	b.onStart = hook
	return b
}

// WithOnStop sets the lifecycle hook called during [Service.Stop],
// after the service transitions to [StateStopping] and before it
// transitions to [StateStopped]. Use this to drain in-flight requests
// and close connections.
func (b *ServiceBuilder) WithOnStop(hook Hook) *ServiceBuilder {
	b.onStop = hook
	return b
}

// WithHealthCheck registers a named dependency check run by
// [Service.Health]. Checks run in registration order. Registering a
// second check under the same name, an empty name, or a nil check causes
// [ServiceBuilder.Build] to fail.
func (b *ServiceBuilder) WithHealthCheck(name string, check HealthCheck) *ServiceBuilder {
	if b.buildErr != nil {
		return b
	}
	if name == "" {
		b.buildErr = sserr.New(sserr.CodeValidation,
			"lifecycle: health check name must not be empty")
		return b
	}
	if check == nil {
		b.buildErr = sserr.Newf(sserr.CodeValidation,
			"lifecycle: health check %q must not be nil", name)
		return b
	}
	if _, exists := b.checks[name]; exists {
		b.buildErr = sserr.Newf(sserr.CodeValidation,
			"lifecycle: health check %q registered twice", name)
		return b
	}
	b.checks[name] = check
	b.checkNames = append(b.checkNames, name)
	return b
}

// OnStateChange registers a [StateChangeHandler] that is called on every
// state transition. Multiple handlers may be registered and are called
// in registration order. Handlers execute synchronously under the state
// mutex during [Service.SetState].
//
// Handlers are defensively copied during [ServiceBuilder.Build] to
// prevent external modification of the handler list after construction.
func (b *ServiceBuilder) OnStateChange(handler StateChangeHandler) *ServiceBuilder {
	b.stateHandlers = append(b.stateHandlers, handler)
	return b
}

// Build validates the configuration and constructs a [*Service]. Returns
// a [*sserr.Error] with code [sserr.CodeValidation] if any required
// field is empty or a health check registration was invalid.
//
// Build performs defensive copies of all mutable inputs (health checks,
// state handlers) to prevent external mutation after construction. The
// initial state is [StateUnknown].
func (b *ServiceBuilder) Build() (*Service, error) {
	if b.buildErr != nil {
		return nil, b.buildErr
	}
	if b.name == "" {
		return nil, sserr.New(sserr.CodeValidation,
			"lifecycle: service name must not be empty")
	}
	if b.version == "" {
		return nil, sserr.New(sserr.CodeValidation,
			"lifecycle: service version must not be empty")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	checks := make(map[string]HealthCheck, len(b.checks))
	for name, check := range b.checks {
		checks[name] = check
	}
	checkNames := append([]string(nil), b.checkNames...)

	handlers := make([]StateChangeHandler, len(b.stateHandlers))
	copy(handlers, b.stateHandlers)

	return &Service{
		name:          b.name,
		version:       b.version,
		state:         StateUnknown,
		tracer:        otel.Tracer(tracerName),
		logger:        logger,
		onStart:       b.onStart,
		onStop:        b.onStop,
		checks:        checks,
		checkNames:    checkNames,
		stateHandlers: handlers,
	}, nil
}
