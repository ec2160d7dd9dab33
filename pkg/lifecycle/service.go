package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/addressbook/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
// It follows the Go module path convention for OTel instrumentation libraries.
const tracerName = "github.com/StricklySoft/addressbook/pkg/lifecycle"

// StateChangeHandler is a callback invoked when the service's lifecycle
// state changes. It receives the previous state and the new state.
//
// Handlers execute synchronously under the service's state mutex during
// [Service.SetState]. Implementations must not block for extended periods
// or call lifecycle methods on the same service, as this will cause a
// deadlock. Handlers that panic are recovered and logged without
// preventing the state change.
type StateChangeHandler func(old, new State)

// Hook is a function called during a lifecycle transition (start, stop).
// It receives the caller's context, which may carry deadlines and
// cancellation signals.
//
// If a hook returns a non-nil error, the lifecycle transition is aborted
// and the service transitions to [StateFailed]. Hooks should perform
// cleanup on error to avoid leaving resources in an inconsistent state.
//
// Hooks execute outside the service's state mutex, so they may safely
// call read-only methods ([Service.State], [Service.Info]) without
// deadlocking.
type Hook func(ctx context.Context) error

// HealthCheck verifies one dependency of the service (a store ping, a
// verifier's key cache, an upstream endpoint). Checks are registered by
// name via [ServiceBuilder.WithHealthCheck] and run by [Service.Health].
type HealthCheck func(ctx context.Context) error

// ServiceInfo provides a point-in-time snapshot of the service's
// identity, state, and uptime. It is returned by [Service.Info] and is
// safe to serialize to JSON for health endpoints.
//
// The Uptime field is computed at the time Info() is called and reflects
// the elapsed time since the service entered [StateRunning]. It is zero
// if the service has not yet started or has been stopped.
type ServiceInfo struct {
	// Name is the human-readable name of the service.
	Name string `json:"name"`

	// Version is the semantic version of the service build.
	Version string `json:"version"`

	// State is the current lifecycle state of the service.
	State State `json:"state"`

	// HealthChecks lists the names of the registered health checks.
	HealthChecks []string `json:"health_checks,omitempty"`

	// StartedAt is the time the service entered StateRunning. Nil if the
	// service has not started or has been stopped.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// Uptime is the elapsed time since the service entered StateRunning.
	// Zero if the service is not currently running.
	Uptime time.Duration `json:"uptime,omitempty"`
}

// Service provides thread-safe lifecycle management for the address book
// process: a validated state machine, start/stop hooks, and named health
// checks. Create one using [ServiceBuilder] and share it across the
// application.
//
// Service enforces a state machine that prevents invalid lifecycle
// transitions. All state changes are validated against the transition
// matrix defined in [validTransitions]. State change observers registered
// via [ServiceBuilder.OnStateChange] are notified synchronously on every
// transition.
//
// Lifecycle hooks (OnStart, OnStop) execute outside the state mutex to
// prevent deadlocks. If a hook fails, the service transitions to
// [StateFailed] and the error is wrapped with a platform error code.
type Service struct {
	// Immutable fields set at construction.
	name    string
	version string

	// Mutable fields protected by mu.
	mu        sync.RWMutex
	state     State
	startedAt *time.Time

	// Observability, set at construction.
	tracer trace.Tracer
	logger *slog.Logger

	// Lifecycle hooks, set at construction via builder.
	onStart Hook
	onStop  Hook

	// Named health checks, set at construction via builder. checkNames
	// preserves registration order so Health failures are deterministic.
	checks     map[string]HealthCheck
	checkNames []string

	// State change observers, set at construction via builder.
	stateHandlers []StateChangeHandler
}

// Name returns the human-readable name of the service. This value is
// immutable after construction.
func (s *Service) Name() string {
	return s.name
}

// Version returns the semantic version of the service build. This value
// is immutable after construction.
func (s *Service) Version() string {
	return s.version
}

// State returns the current lifecycle state of the service. This method
// is safe for concurrent use.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Info returns a point-in-time snapshot of the service's identity,
// state, registered health checks, and uptime. This method is safe for
// concurrent use.
func (s *Service) Info() ServiceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := ServiceInfo{
		Name:         s.name,
		Version:      s.version,
		State:        s.state,
		HealthChecks: append([]string(nil), s.checkNames...),
	}

	if s.startedAt != nil && s.state == StateRunning {
		t := *s.startedAt
		info.StartedAt = &t
		info.Uptime = time.Since(t)
	}

	return info
}

// Health reports whether the service is healthy. A service is healthy
// when it is in [StateRunning] and every registered health check passes.
// Checks run in registration order; the first failure is returned,
// wrapped with the check's name and code [sserr.CodeUnavailable].
func (s *Service) Health(ctx context.Context) error {
	state := s.State()
	if state != StateRunning {
		return sserr.Newf(sserr.CodeUnavailable,
			"lifecycle: service is not running, current state is %q", state)
	}

	for _, name := range s.checkNames {
		if err := s.checks[name](ctx); err != nil {
			return sserr.Wrapf(err, sserr.CodeUnavailable,
				"lifecycle: health check %q failed", name)
		}
	}
	return nil
}

// SetState transitions the service to the given state after validating
// the transition against the lifecycle state machine. Returns a
// [*sserr.Error] with code [sserr.CodeInternal] if the transition is not
// allowed.
//
// On a successful transition, all registered [StateChangeHandler]
// functions are called synchronously with the old and new state values.
// Handlers execute under the state mutex; they must not call lifecycle
// methods on the same service or block for extended periods.
//
// SetState is exported so callers can transition to [StateFailed] when
// an internal error is detected outside a lifecycle method.
func (s *Service) SetState(new State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.state
	if !ValidTransition(old, new) {
		return sserr.Newf(sserr.CodeInternal,
			"lifecycle: invalid state transition from %q to %q", old, new)
	}

	s.state = new

	// Notify state change handlers under the lock to guarantee ordering.
	// Each handler is called in a deferred-recover wrapper so a panicking
	// handler cannot crash the service or corrupt state.
	for _, h := range s.stateHandlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("lifecycle: state change handler panicked",
						"panic", r,
						"service", s.name,
						"old_state", string(old),
						"new_state", string(new),
					)
				}
			}()
			h(old, new)
		}()
	}

	return nil
}

// Start begins the service's operation. It transitions the service
// through [StateStarting] to [StateRunning], executing any registered
// OnStart hook between the two transitions.
//
// The context controls the deadline for startup. If the context is
// already canceled, Start returns immediately without modifying state.
//
// If the OnStart hook returns an error, the service transitions to
// [StateFailed] and the error is returned wrapped with
// [sserr.CodeInternal].
func (s *Service) Start(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Start",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.name", s.name),
			attribute.String("service.version", s.version),
		),
	)
	defer span.End()

	// Check context before acquiring the lock.
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sserr.Wrap(err, sserr.CodeTimeout,
			"lifecycle: start canceled before execution")
	}

	if err := s.SetState(StateStarting); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.logger.InfoContext(ctx, "lifecycle: starting service",
		"service", s.name,
		"version", s.version,
	)

	// Execute the OnStart hook outside the lock.
	if s.onStart != nil {
		if err := s.onStart(ctx); err != nil {
			s.logger.ErrorContext(ctx, "lifecycle: start hook failed",
				"service", s.name,
				"error", err,
			)
			_ = s.SetState(StateFailed)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return sserr.Wrap(err, sserr.CodeInternal,
				"lifecycle: start hook failed")
		}
	}

	if err := s.SetState(StateRunning); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.startedAt = &now
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "lifecycle: service started",
		"service", s.name,
	)
	span.SetStatus(codes.Ok, "")

	return nil
}

// Stop gracefully shuts down the service. It transitions the service
// through [StateStopping] to [StateStopped], executing any registered
// OnStop hook between the two transitions.
//
// If the service is already in a terminal state ([StateStopped] or
// [StateFailed]), Stop is a no-op and returns nil. This makes it safe
// to call Stop multiple times or in a deferred cleanup.
//
// If the OnStop hook returns an error, the service transitions to
// [StateFailed] and the error is returned wrapped with
// [sserr.CodeInternal].
func (s *Service) Stop(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Stop",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.name", s.name),
		),
	)
	defer span.End()

	// Terminal states: Stop is a no-op.
	if s.State().IsTerminal() {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sserr.Wrap(err, sserr.CodeTimeout,
			"lifecycle: stop canceled before execution")
	}

	if err := s.SetState(StateStopping); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.logger.InfoContext(ctx, "lifecycle: stopping service",
		"service", s.name,
	)

	// Execute the OnStop hook outside the lock.
	if s.onStop != nil {
		if err := s.onStop(ctx); err != nil {
			s.logger.ErrorContext(ctx, "lifecycle: stop hook failed",
				"service", s.name,
				"error", err,
			)
			_ = s.SetState(StateFailed)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return sserr.Wrap(err, sserr.CodeInternal,
				"lifecycle: stop hook failed")
		}
	}

	if err := s.SetState(StateStopped); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.mu.Lock()
	s.startedAt = nil
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "lifecycle: service stopped",
		"service", s.name,
	)
	span.SetStatus(codes.Ok, "")

	return nil
}
