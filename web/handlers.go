package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/artpar/datagate/app"
	"github.com/artpar/datagate/core/registry"
	"github.com/artpar/datagate/core/schema"
	"github.com/artpar/datagate/domain/query"
	"github.com/artpar/datagate/domain/record"
	"github.com/artpar/datagate/ports"
	"github.com/go-chi/chi/v5"
)

// handleCreate authorizes and stores a new record. The engine decides
// whether the mutation may proceed; the record store performs it.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	sess := app.SessionFrom(r.Context())

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, &app.ValidationError{Issues: []string{"invalid JSON body"}}, h)
		return
	}

	normalized, err := h.access.ValidateRecord(model, fields, true)
	if err != nil {
		writeError(w, err, h)
		return
	}

	if err := h.access.Authorize(sess, model, schema.OpCreate, nil); err != nil {
		writeError(w, err, h)
		return
	}

	now := h.clock.Now().UTC()
	rec := record.Record{
		ID:        h.ids.New(),
		Owner:     sess.Subject,
		CreatedAt: now,
		UpdatedAt: now,
		Fields:    normalized,
	}

	if err := h.store.Put(r.Context(), model, rec); err != nil {
		writeError(w, err, h)
		return
	}

	writeJSON(w, http.StatusCreated, flatten(rec))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	id := chi.URLParam(r, "id")
	sess := app.SessionFrom(r.Context())

	rec, err := h.store.Get(r.Context(), model, id)
	if err != nil {
		writeError(w, err, h)
		return
	}

	if err := h.access.Authorize(sess, model, schema.OpRead, &rec); err != nil {
		writeError(w, err, h)
		return
	}

	writeJSON(w, http.StatusOK, flatten(rec))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	id := chi.URLParam(r, "id")
	sess := app.SessionFrom(r.Context())

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, &app.ValidationError{Issues: []string{"invalid JSON body"}}, h)
		return
	}

	normalized, err := h.access.ValidateRecord(model, fields, false)
	if err != nil {
		writeError(w, err, h)
		return
	}

	rec, err := h.store.Get(r.Context(), model, id)
	if err != nil {
		writeError(w, err, h)
		return
	}

	// Authorization evaluates conditions against the stored record,
	// not the incoming payload.
	if err := h.access.Authorize(sess, model, schema.OpUpdate, &rec); err != nil {
		writeError(w, err, h)
		return
	}

	for k, v := range normalized {
		rec = rec.WithField(k, v)
	}
	rec.UpdatedAt = h.clock.Now().UTC()

	if err := h.store.Put(r.Context(), model, rec); err != nil {
		writeError(w, err, h)
		return
	}

	writeJSON(w, http.StatusOK, flatten(rec))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	id := chi.URLParam(r, "id")
	sess := app.SessionFrom(r.Context())

	rec, err := h.store.Get(r.Context(), model, id)
	if err != nil {
		writeError(w, err, h)
		return
	}

	if err := h.access.Authorize(sess, model, schema.OpDelete, &rec); err != nil {
		writeError(w, err, h)
		return
	}

	if err := h.store.Delete(r.Context(), model, id); err != nil {
		writeError(w, err, h)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// queryRequest is the wire shape for planned queries.
type queryRequest struct {
	Equals map[string]any `json:"equals"`
	Range  *struct {
		Field string `json:"field"`
		Op    string `json:"op"`
		Value any    `json:"value"`
		Upper any    `json:"upper,omitempty"`
	} `json:"range,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// handleQuery plans the predicate, reads through the chosen index, and
// filters results through the rule evaluator. A predicate no index can
// serve is rejected, never silently scanned.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	sess := app.SessionFrom(r.Context())

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &app.ValidationError{Issues: []string{"invalid JSON body"}}, h)
		return
	}

	pred := query.Predicate{Equals: req.Equals}
	if req.Range != nil {
		pred.Range = &query.Range{
			Field: req.Range.Field,
			Op:    query.RangeOp(req.Range.Op),
			Value: req.Range.Value,
			Upper: req.Range.Upper,
		}
	}

	plan, err := h.access.PlanQuery(model, pred)
	if err != nil {
		writeError(w, err, h)
		return
	}

	records, err := h.store.Query(r.Context(), model, plan, req.Limit)
	if err != nil {
		writeError(w, err, h)
		return
	}

	items := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		if h.access.Authorize(sess, model, schema.OpRead, &rec) == nil {
			items = append(items, flatten(rec))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"index": plan.IndexName,
	})
}

func (h *Handler) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	sess := app.SessionFrom(r.Context())

	args := map[string]any{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			writeError(w, &app.ValidationError{Issues: []string{"invalid JSON body"}}, h)
			return
		}
	}

	result, err := h.dispatcher.Invoke(r.Context(), name, args, sess)
	if err != nil {
		writeError(w, err, h)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// flatten merges system fields and declared fields into one object.
func flatten(rec record.Record) map[string]any {
	out := make(map[string]any, len(rec.Fields)+4)
	for k, v := range rec.Fields {
		out[k] = v
	}
	out[schema.SystemFieldID] = rec.ID
	out[schema.SystemFieldOwner] = rec.Owner
	out[schema.SystemFieldCreatedAt] = rec.CreatedAt
	out[schema.SystemFieldUpdatedAt] = rec.UpdatedAt
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses. Handler
// failures are logged with their cause but surface to clients without
// detail.
func writeError(w http.ResponseWriter, err error, h *Handler) {
	var verr *app.ValidationError
	var aerr *app.AuthorizationError
	var herr *app.HandlerError

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation_failed", "issues": verr.Issues})
	case errors.As(err, &aerr):
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
	case errors.Is(err, registry.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not_found"})
	case errors.Is(err, query.ErrNoPlan):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "no_query_plan"})
	case errors.Is(err, app.ErrCancelled):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "cancelled"})
	case errors.As(err, &herr):
		h.logger.Error().Err(herr.Unwrap()).Str("operation", herr.Operation).Msg("handler error")
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "operation_failed"})
	case errors.Is(err, ports.ErrRecordNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not_found"})
	default:
		h.logger.Error().Err(err).Msg("internal error")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal"})
	}
}
