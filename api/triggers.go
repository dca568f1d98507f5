package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xraph/trigger"
	"github.com/xraph/trigger/registry"
)

type upsertScheduledTriggerRequest struct {
	Name             string                `json:"name"`
	Webhook          string                `json:"webhook"`
	Headers          []registry.HeaderSpec `json:"headers,omitempty"`
	Retry            registry.RetryConf    `json:"retry_conf"`
	Schedule         registry.Schedule     `json:"schedule"`
	Payload          json.RawMessage       `json:"payload,omitempty"`
	ToleranceSeconds int                   `json:"tolerance_seconds,omitempty"`
	PayloadSchema    json.RawMessage       `json:"payload_schema,omitempty"`
}

func (h *Handler) upsertScheduledTrigger(w http.ResponseWriter, r *http.Request) {
	var req upsertScheduledTriggerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Webhook == "" {
		writeError(w, http.StatusBadRequest, "webhook is required")
		return
	}

	spec := registry.ScheduledTriggerSpec{
		Name:             req.Name,
		Webhook:          req.Webhook,
		Headers:          req.Headers,
		Retry:            req.Retry,
		Schedule:         req.Schedule,
		Payload:          req.Payload,
		ToleranceSeconds: req.ToleranceSeconds,
		PayloadSchema:    req.PayloadSchema,
	}

	if err := h.trigger.UpsertScheduledTrigger(r.Context(), spec); err != nil {
		if errors.Is(err, trigger.ErrInvalidCron) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, spec)
}

func (h *Handler) listScheduledTriggers(w http.ResponseWriter, r *http.Request) {
	specs, err := h.store.ListScheduledTriggers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, specs)
}

func (h *Handler) deleteScheduledTrigger(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.trigger.DeleteScheduledTrigger(r.Context(), name); err != nil {
		if errors.Is(err, trigger.ErrTriggerNotFound) {
			writeError(w, http.StatusNotFound, "scheduled trigger not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
