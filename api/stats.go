package api

import (
	"net/http"

	"github.com/xraph/trigger/schedule"
)

type statsResponse struct {
	EventTriggers     int              `json:"event_triggers"`
	ScheduledTriggers int              `json:"scheduled_triggers"`
	Scheduled         []schedule.Stats `json:"scheduled"`
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.trigger.Registry().Snapshot(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stats, err := h.store.ScheduledStats(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		EventTriggers:     snap.EventTriggerCount(),
		ScheduledTriggers: snap.ScheduledTriggerCount(),
		Scheduled:         stats,
	})
}
