package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/xraph/trigger"
	"github.com/xraph/trigger/id"
	"github.com/xraph/trigger/schedule"
)

type createScheduledEventRequest struct {
	Name          string          `json:"name"`
	ScheduledTime string          `json:"scheduled_time"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

func (h *Handler) createScheduledEvent(w http.ResponseWriter, r *http.Request) {
	var req createScheduledEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	at, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scheduled_time (use RFC3339)")
		return
	}

	sev, submitErr := h.trigger.SubmitScheduledEvent(r.Context(), req.Name, at, req.Payload)
	if submitErr != nil {
		switch {
		case errors.Is(submitErr, trigger.ErrTriggerNotFound):
			writeError(w, http.StatusNotFound, submitErr.Error())
		case errors.Is(submitErr, trigger.ErrPayloadValidationFailed):
			writeError(w, http.StatusBadRequest, submitErr.Error())
		default:
			writeError(w, http.StatusInternalServerError, submitErr.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, sev)
}

func (h *Handler) listScheduledEvents(w http.ResponseWriter, r *http.Request) {
	opts := schedule.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
		Name:   queryParam(r, "trigger"),
	}

	sevs, err := h.store.ListScheduledEvents(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sevs)
}

func (h *Handler) getScheduledEvent(w http.ResponseWriter, r *http.Request) {
	sevID, err := id.ParseScheduledEventID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scheduled event ID")
		return
	}

	sev, getErr := h.store.GetScheduledEvent(r.Context(), sevID)
	if getErr != nil {
		if errors.Is(getErr, trigger.ErrScheduledEventNotFound) {
			writeError(w, http.StatusNotFound, "scheduled event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, sev)
}

func (h *Handler) cancelScheduledEvent(w http.ResponseWriter, r *http.Request) {
	sevID, err := id.ParseScheduledEventID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scheduled event ID")
		return
	}

	if cancelErr := h.trigger.CancelScheduledEvent(r.Context(), sevID); cancelErr != nil {
		switch {
		case errors.Is(cancelErr, trigger.ErrScheduledEventNotFound):
			writeError(w, http.StatusNotFound, "scheduled event not found")
		case errors.Is(cancelErr, trigger.ErrEventTerminal):
			writeError(w, http.StatusConflict, cancelErr.Error())
		default:
			writeError(w, http.StatusInternalServerError, cancelErr.Error())
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listScheduledInvocations(w http.ResponseWriter, r *http.Request) {
	sevID, err := id.ParseScheduledEventID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scheduled event ID")
		return
	}

	invs, listErr := h.store.ListScheduledInvocations(r.Context(), sevID)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, invs)
}
