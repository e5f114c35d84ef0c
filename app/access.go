package app

import (
	"sort"

	"github.com/artpar/datagate/core/registry"
	"github.com/artpar/datagate/core/schema"
	"github.com/artpar/datagate/domain/authz"
	"github.com/artpar/datagate/domain/query"
	"github.com/artpar/datagate/domain/record"
	"github.com/artpar/datagate/domain/session"
	"github.com/rs/zerolog"
)

// Access is the record-level gate in front of the storage collaborator:
// it authorizes CRUD operations against a model's rule set and plans
// read queries through secondary indexes. It performs no record I/O.
type Access struct {
	registry *registry.Registry
	logger   zerolog.Logger
	metrics  Metrics
}

// NewAccess creates an access service.
func NewAccess(reg *registry.Registry, logger zerolog.Logger, metrics Metrics) *Access {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Access{
		registry: reg,
		logger:   logger.With().Str("service", "access").Logger(),
		metrics:  metrics,
	}
}

// Authorize decides whether the session may perform op on a record of
// the named model. rec is nil for create. Returns nil on Allow and an
// *AuthorizationError on Deny.
func (a *Access) Authorize(sess session.Session, modelName string, op schema.Op, rec *record.Record) error {
	model, err := a.registry.Model(modelName)
	if err != nil {
		return err
	}

	decision := authz.Evaluate(model.Rules, sess, op, rec)
	a.metrics.AuthzDecision(modelName, op, decision.Allowed)

	if !decision.Allowed {
		a.logger.Debug().
			Str("model", modelName).
			Str("op", string(op)).
			Str("subject", sess.Subject).
			Str("reason", decision.Reason).
			Msg("denied")
		return &AuthorizationError{Target: modelName, Op: op, Reason: decision.Reason}
	}

	return nil
}

// PlanQuery selects the index path for a predicate against the named
// model. Returns query.ErrNoPlan (wrapped) when nothing serves the
// shape; the caller decides whether that means reject or explicit scan.
func (a *Access) PlanQuery(modelName string, pred query.Predicate) (query.Plan, error) {
	model, err := a.registry.Model(modelName)
	if err != nil {
		return query.Plan{}, err
	}

	plan, err := query.PlanQuery(model, pred)
	if err != nil {
		a.logger.Debug().Str("model", modelName).Err(err).Msg("no query plan")
		return query.Plan{}, err
	}

	return plan, nil
}

// ValidateRecord checks declared fields of a candidate record payload
// against the model schema, applying defaults for omitted fields on
// create. Returns the normalized field map.
func (a *Access) ValidateRecord(modelName string, fields map[string]any, creating bool) (map[string]any, error) {
	model, err := a.registry.Model(modelName)
	if err != nil {
		return nil, err
	}

	var issues []string
	out := make(map[string]any, len(fields))

	for name, field := range model.Fields {
		v, present := fields[name]
		if !present {
			if !creating {
				continue
			}
			if field.HasDefault() {
				out[name] = field.Default
				continue
			}
			if field.Required {
				issues = append(issues, "missing required field \""+name+"\"")
			}
			continue
		}

		if err := field.CheckValue(name, v); err != nil {
			issues = append(issues, err.Error())
			continue
		}
		out[name] = v
	}

	for name := range fields {
		if _, declared := model.Fields[name]; !declared {
			issues = append(issues, "unknown field \""+name+"\"")
		}
	}

	if len(issues) > 0 {
		// Map iteration order would otherwise leak into error output.
		sort.Strings(issues)
		return nil, &ValidationError{Issues: issues}
	}

	return out, nil
}
