// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"fmt"

	"github.com/artpar/datagate/core/registry"
	"github.com/artpar/datagate/core/schema"
	"github.com/artpar/datagate/domain/authz"
	"github.com/artpar/datagate/domain/session"
	"github.com/artpar/datagate/ports"
	"github.com/rs/zerolog"
)

// Invocation states, in order. No state is retried; a failed terminal
// state is reported to the caller with the originating error kind.
const (
	stateUnknown   = "unknown"
	stateInvalid   = "invalid"
	stateDenied    = "denied"
	stateCancelled = "cancelled"
	stateFailed    = "failed"
	stateCompleted = "completed"
)

// Dispatcher validates, authorizes, and routes custom operations to
// their external handlers. Authorization always runs before the
// handler: a Deny short-circuits the invocation.
type Dispatcher struct {
	registry *registry.Registry
	handlers ports.HandlerRegistry
	logger   zerolog.Logger
	metrics  Metrics
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(reg *registry.Registry, handlers ports.HandlerRegistry, logger zerolog.Logger, metrics Metrics) *Dispatcher {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Dispatcher{
		registry: reg,
		handlers: handlers,
		logger:   logger.With().Str("service", "dispatch").Logger(),
		metrics:  metrics,
	}
}

// Invoke runs one custom operation invocation end to end:
// resolve, validate arguments, authorize, dispatch, normalize.
func (d *Dispatcher) Invoke(ctx context.Context, name string, rawArgs map[string]any, sess session.Session) (any, error) {
	op, err := d.registry.Operation(name)
	if err != nil {
		d.metrics.Dispatch(name, stateUnknown)
		return nil, err
	}

	args, verr := validateArgs(op, rawArgs)
	if verr != nil {
		d.logger.Debug().Str("operation", name).Err(verr).Msg("invalid arguments")
		d.metrics.Dispatch(name, stateInvalid)
		return nil, verr
	}

	// Operations carry no ambient record; only unconditional rules can
	// match here. Ownership checks, if any, are the handler's concern.
	decision := authz.Evaluate(op.Rules, sess, invocationOp(op.Kind), nil)
	d.metrics.AuthzDecision(name, invocationOp(op.Kind), decision.Allowed)
	if !decision.Allowed {
		d.logger.Info().
			Str("operation", name).
			Str("subject", sess.Subject).
			Str("reason", decision.Reason).
			Msg("invocation denied")
		d.metrics.Dispatch(name, stateDenied)
		return nil, &AuthorizationError{Target: name, Op: invocationOp(op.Kind), Reason: decision.Reason}
	}

	handler, ok := d.handlers.Handler(op.Handler)
	if !ok {
		d.metrics.Dispatch(name, stateFailed)
		return nil, &HandlerError{Operation: name, Err: fmt.Errorf("handler %q not registered", op.Handler)}
	}

	result, herr := handler.Invoke(ctx, args, sess)

	if ctx.Err() != nil {
		// Result discarded, never retried.
		d.logger.Warn().Str("operation", name).Msg("invocation cancelled")
		d.metrics.Dispatch(name, stateCancelled)
		return nil, fmt.Errorf("operation %q: %w", name, ErrCancelled)
	}

	if herr != nil {
		d.logger.Error().Str("operation", name).Err(herr).Msg("handler failed")
		d.metrics.Dispatch(name, stateFailed)
		return nil, &HandlerError{Operation: name, Err: herr}
	}

	if err := d.checkShape(op, result); err != nil {
		d.logger.Error().Str("operation", name).Err(err).Msg("handler result shape mismatch")
		d.metrics.Dispatch(name, stateFailed)
		return nil, &HandlerError{Operation: name, Err: err}
	}

	d.metrics.Dispatch(name, stateCompleted)
	return result, nil
}

// invocationOp maps the operation kind onto the rule operation verb:
// queries authorize as reads, mutations as updates.
func invocationOp(kind schema.OperationKind) schema.Op {
	if kind == schema.OperationMutation {
		return schema.OpUpdate
	}
	return schema.OpRead
}

// validateArgs checks raw arguments against the operation's argument
// schema, applying declared defaults for omitted optional arguments.
func validateArgs(op schema.Operation, raw map[string]any) (map[string]any, *ValidationError) {
	var issues []string
	args := make(map[string]any, len(op.Arguments))

	for _, arg := range op.Arguments {
		v, present := raw[arg.Name]
		if !present {
			if arg.Field.HasDefault() {
				args[arg.Name] = arg.Field.Default
				continue
			}
			if arg.Field.Required {
				issues = append(issues, fmt.Sprintf("missing required argument %q", arg.Name))
			}
			continue
		}

		if err := arg.Field.CheckValue(arg.Name, v); err != nil {
			issues = append(issues, err.Error())
			continue
		}
		args[arg.Name] = v
	}

	for name := range raw {
		if _, declared := op.ArgumentByName(name); !declared {
			issues = append(issues, fmt.Sprintf("unknown argument %q", name))
		}
	}

	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	return args, nil
}

// checkShape verifies the handler result against the declared return
// type. This is a shape check only: returned objects must not carry
// keys outside the declared field set, but values are not re-validated.
func (d *Dispatcher) checkShape(op schema.Operation, result any) error {
	if result == nil {
		return nil
	}

	shape, err := d.registry.ReturnShape(op.Returns)
	if err != nil {
		return err
	}

	if op.Returns.Array {
		items, ok := result.([]any)
		if !ok {
			return fmt.Errorf("expected array of %q, got %T", op.Returns.Name, result)
		}
		for i, item := range items {
			if err := checkObjectShape(shape, item); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		return nil
	}

	return checkObjectShape(shape, result)
}

func checkObjectShape(shape map[string]schema.Field, v any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("expected object, got %T", v)
	}

	for key := range obj {
		if _, declared := shape[key]; declared {
			continue
		}
		switch key {
		case schema.SystemFieldID, schema.SystemFieldOwner,
			schema.SystemFieldCreatedAt, schema.SystemFieldUpdatedAt:
			continue
		}
		return fmt.Errorf("undeclared field %q in result", key)
	}

	return nil
}
