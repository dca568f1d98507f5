package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xraph/trigger"
	"github.com/xraph/trigger/event"
	"github.com/xraph/trigger/id"
)

type createEventRequest struct {
	SchemaName  string          `json:"schema_name"`
	TableName   string          `json:"table_name"`
	TriggerName string          `json:"trigger_name"`
	Payload     json.RawMessage `json:"payload"`
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.TriggerName == "" {
		writeError(w, http.StatusBadRequest, "trigger_name is required")
		return
	}

	evt := &event.Event{
		SchemaName:  req.SchemaName,
		TableName:   req.TableName,
		TriggerName: req.TriggerName,
		Payload:     req.Payload,
	}

	if err := h.trigger.CaptureEvent(r.Context(), evt); err != nil {
		if errors.Is(err, trigger.ErrTriggerNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, evt)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	opts := event.ListOpts{
		Offset:      queryInt(r, "offset", 0),
		Limit:       queryInt(r, "limit", 50),
		TriggerName: queryParam(r, "trigger"),
	}

	events, err := h.store.ListEvents(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	evtID, err := id.ParseEventID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	evt, getErr := h.store.GetEvent(r.Context(), evtID)
	if getErr != nil {
		if errors.Is(getErr, trigger.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, evt)
}

func (h *Handler) listEventInvocations(w http.ResponseWriter, r *http.Request) {
	evtID, err := id.ParseEventID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	invs, listErr := h.store.ListEventInvocations(r.Context(), evtID)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, invs)
}
