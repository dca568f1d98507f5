package api

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/trigger"
	"github.com/xraph/trigger/event"
	"github.com/xraph/trigger/id"
	"github.com/xraph/trigger/invocation"
	"github.com/xraph/trigger/registry"
	"github.com/xraph/trigger/schedule"
	"github.com/xraph/trigger/store"
)

// ForgeAPI wires all Forge-style HTTP handlers together.
type ForgeAPI struct {
	trigger *trigger.Trigger
	store   store.Store
	log     forge.Logger
}

// NewForgeAPI creates a ForgeAPI over a Trigger instance.
func NewForgeAPI(t *trigger.Trigger, log forge.Logger) *ForgeAPI {
	return &ForgeAPI{
		trigger: t,
		store:   t.Store(),
		log:     log,
	}
}

// RegisterRoutes registers all trigger admin API routes into the given Forge
// router with full OpenAPI metadata.
func (a *ForgeAPI) RegisterRoutes(router forge.Router) {
	a.registerEventRoutes(router)
	a.registerScheduledEventRoutes(router)
	a.registerScheduledTriggerRoutes(router)
	a.registerStatsRoutes(router)
}

// ---------------------------------------------------------------------------
// Event queue routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerEventRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("events"))

	if err := g.POST("/events", a.createEvent,
		forge.WithSummary("Capture event"),
		forge.WithDescription("Persists a row-change event for delivery through its event trigger."),
		forge.WithOperationID("createEvent"),
		forge.WithRequestSchema(CreateEventForgeRequest{}),
		forge.WithCreatedResponse(event.Event{}),
		forge.WithErrorResponses(),
	); err != nil {
		// Log the error and continue registering other routes instead of failing completely.
		// This ensures that if one route has an issue, the rest of the API remains available.
		// The error will be caught during testing or can be monitored via logs.
		a.log.Error("Failed to register createEvent route", forge.Error(err))
	}

	if err := g.GET("/events", a.listEvents,
		forge.WithSummary("List events"),
		forge.WithDescription("Returns a paginated list of event queue rows, newest first."),
		forge.WithOperationID("listEvents"),
		forge.WithRequestSchema(ListEventsForgeRequest{}),
		forge.WithListResponse(event.Event{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listEvents route", forge.Error(err))
	}

	if err := g.GET("/events/:eventId", a.getEvent,
		forge.WithSummary("Get event"),
		forge.WithDescription("Returns a single event queue row."),
		forge.WithOperationID("getEvent"),
		forge.WithResponseSchema(http.StatusOK, "Event details", event.Event{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getEvent route", forge.Error(err))
	}

	if err := g.GET("/events/:eventId/invocations", a.listEventInvocations,
		forge.WithSummary("List event invocations"),
		forge.WithDescription("Returns the delivery attempt log for an event, oldest first."),
		forge.WithOperationID("listEventInvocations"),
		forge.WithListResponse(invocation.Invocation{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listEventInvocations route", forge.Error(err))
	}
}

func (a *ForgeAPI) createEvent(ctx forge.Context, req *CreateEventForgeRequest) (*event.Event, error) {
	if req.TriggerName == "" {
		return nil, forge.BadRequest("trigger_name is required")
	}

	evt := &event.Event{
		SchemaName:  req.SchemaName,
		TableName:   req.TableName,
		TriggerName: req.TriggerName,
		Payload:     req.Payload,
	}

	if err := a.trigger.CaptureEvent(ctx.Context(), evt); err != nil {
		return nil, mapError(err)
	}

	err := ctx.JSON(http.StatusCreated, evt)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

func (a *ForgeAPI) listEvents(ctx forge.Context, req *ListEventsForgeRequest) ([]*event.Event, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	opts := event.ListOpts{
		Offset:      req.Offset,
		Limit:       limit,
		TriggerName: req.Trigger,
	}

	events, err := a.store.ListEvents(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return events, nil
}

func (a *ForgeAPI) getEvent(ctx forge.Context, req *GetEventForgeRequest) (*event.Event, error) {
	evtID, err := id.ParseEventID(req.EventID)
	if err != nil {
		return nil, forge.BadRequest("invalid event ID")
	}

	evt, getErr := a.store.GetEvent(ctx.Context(), evtID)
	if getErr != nil {
		return nil, mapError(getErr)
	}

	return evt, nil
}

func (a *ForgeAPI) listEventInvocations(ctx forge.Context, req *EventInvocationsForgeRequest) ([]*invocation.Invocation, error) {
	evtID, err := id.ParseEventID(req.EventID)
	if err != nil {
		return nil, forge.BadRequest("invalid event ID")
	}

	invs, listErr := a.store.ListEventInvocations(ctx.Context(), evtID)
	if listErr != nil {
		return nil, mapError(listErr)
	}

	return invs, nil
}

// ---------------------------------------------------------------------------
// Scheduled event queue routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerScheduledEventRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("scheduled-events"))

	if err := g.POST("/scheduled-events", a.createScheduledEvent,
		forge.WithSummary("Submit scheduled event"),
		forge.WithDescription("Inserts a one-off scheduled event for an existing scheduled trigger."),
		forge.WithOperationID("createScheduledEvent"),
		forge.WithRequestSchema(CreateScheduledEventForgeRequest{}),
		forge.WithCreatedResponse(schedule.ScheduledEvent{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register createScheduledEvent route", forge.Error(err))
	}

	if err := g.GET("/scheduled-events", a.listScheduledEvents,
		forge.WithSummary("List scheduled events"),
		forge.WithDescription("Returns a paginated list of scheduled event queue rows."),
		forge.WithOperationID("listScheduledEvents"),
		forge.WithRequestSchema(ListScheduledEventsForgeRequest{}),
		forge.WithListResponse(schedule.ScheduledEvent{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listScheduledEvents route", forge.Error(err))
	}

	if err := g.GET("/scheduled-events/:eventId", a.getScheduledEvent,
		forge.WithSummary("Get scheduled event"),
		forge.WithDescription("Returns a single scheduled event queue row."),
		forge.WithOperationID("getScheduledEvent"),
		forge.WithResponseSchema(http.StatusOK, "Scheduled event details", schedule.ScheduledEvent{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getScheduledEvent route", forge.Error(err))
	}

	if err := g.DELETE("/scheduled-events/:eventId", a.cancelScheduledEvent,
		forge.WithSummary("Cancel scheduled event"),
		forge.WithDescription("Cancels a pending scheduled event. Terminal events cannot be cancelled."),
		forge.WithOperationID("cancelScheduledEvent"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register cancelScheduledEvent route", forge.Error(err))
	}

	if err := g.GET("/scheduled-events/:eventId/invocations", a.listScheduledInvocations,
		forge.WithSummary("List scheduled event invocations"),
		forge.WithDescription("Returns the delivery attempt log for a scheduled event, oldest first."),
		forge.WithOperationID("listScheduledInvocations"),
		forge.WithListResponse(invocation.Invocation{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listScheduledInvocations route", forge.Error(err))
	}
}

func (a *ForgeAPI) createScheduledEvent(ctx forge.Context, req *CreateScheduledEventForgeRequest) (*schedule.ScheduledEvent, error) {
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}
	at, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		return nil, forge.BadRequest("invalid scheduled_time (use RFC3339)")
	}

	sev, submitErr := a.trigger.SubmitScheduledEvent(ctx.Context(), req.Name, at, req.Payload)
	if submitErr != nil {
		return nil, mapError(submitErr)
	}

	err = ctx.JSON(http.StatusCreated, sev)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

func (a *ForgeAPI) listScheduledEvents(ctx forge.Context, req *ListScheduledEventsForgeRequest) ([]*schedule.ScheduledEvent, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	opts := schedule.ListOpts{
		Offset: req.Offset,
		Limit:  limit,
		Name:   req.Trigger,
	}

	sevs, err := a.store.ListScheduledEvents(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return sevs, nil
}

func (a *ForgeAPI) getScheduledEvent(ctx forge.Context, req *GetScheduledEventForgeRequest) (*schedule.ScheduledEvent, error) {
	sevID, err := id.ParseScheduledEventID(req.EventID)
	if err != nil {
		return nil, forge.BadRequest("invalid scheduled event ID")
	}

	sev, getErr := a.store.GetScheduledEvent(ctx.Context(), sevID)
	if getErr != nil {
		return nil, mapError(getErr)
	}

	return sev, nil
}

func (a *ForgeAPI) cancelScheduledEvent(ctx forge.Context, req *CancelScheduledEventForgeRequest) (*schedule.ScheduledEvent, error) {
	sevID, err := id.ParseScheduledEventID(req.EventID)
	if err != nil {
		return nil, forge.BadRequest("invalid scheduled event ID")
	}

	if cancelErr := a.trigger.CancelScheduledEvent(ctx.Context(), sevID); cancelErr != nil {
		return nil, mapError(cancelErr)
	}

	err = ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

func (a *ForgeAPI) listScheduledInvocations(ctx forge.Context, req *ScheduledInvocationsForgeRequest) ([]*invocation.Invocation, error) {
	sevID, err := id.ParseScheduledEventID(req.EventID)
	if err != nil {
		return nil, forge.BadRequest("invalid scheduled event ID")
	}

	invs, listErr := a.store.ListScheduledInvocations(ctx.Context(), sevID)
	if listErr != nil {
		return nil, mapError(listErr)
	}

	return invs, nil
}

// ---------------------------------------------------------------------------
// Scheduled trigger routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerScheduledTriggerRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("scheduled-triggers"))

	if err := g.PUT("/scheduled-triggers", a.upsertScheduledTrigger,
		forge.WithSummary("Upsert scheduled trigger"),
		forge.WithDescription("Creates or replaces a scheduled trigger configuration."),
		forge.WithOperationID("upsertScheduledTrigger"),
		forge.WithRequestSchema(UpsertScheduledTriggerForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Persisted trigger", registry.ScheduledTriggerSpec{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register upsertScheduledTrigger route", forge.Error(err))
	}

	if err := g.GET("/scheduled-triggers", a.listScheduledTriggers,
		forge.WithSummary("List scheduled triggers"),
		forge.WithDescription("Returns all persisted scheduled trigger configurations."),
		forge.WithOperationID("listScheduledTriggers"),
		forge.WithListResponse(registry.ScheduledTriggerSpec{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listScheduledTriggers route", forge.Error(err))
	}

	if err := g.DELETE("/scheduled-triggers/:name", a.deleteScheduledTrigger,
		forge.WithSummary("Delete scheduled trigger"),
		forge.WithDescription("Removes a scheduled trigger configuration. Materialized events are untouched."),
		forge.WithOperationID("deleteScheduledTrigger"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register deleteScheduledTrigger route", forge.Error(err))
	}
}

func (a *ForgeAPI) upsertScheduledTrigger(ctx forge.Context, req *UpsertScheduledTriggerForgeRequest) (*registry.ScheduledTriggerSpec, error) {
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}
	if req.Webhook == "" {
		return nil, forge.BadRequest("webhook is required")
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

	if err := a.trigger.UpsertScheduledTrigger(ctx.Context(), spec); err != nil {
		return nil, mapError(err)
	}

	return &spec, nil
}

func (a *ForgeAPI) listScheduledTriggers(ctx forge.Context, _ *ListScheduledTriggersForgeRequest) ([]*registry.ScheduledTriggerSpec, error) {
	specs, err := a.store.ListScheduledTriggers(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	return specs, nil
}

func (a *ForgeAPI) deleteScheduledTrigger(ctx forge.Context, req *DeleteScheduledTriggerForgeRequest) (*registry.ScheduledTriggerSpec, error) {
	if err := a.trigger.DeleteScheduledTrigger(ctx.Context(), req.Name); err != nil {
		return nil, mapError(err)
	}

	err := ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

// ---------------------------------------------------------------------------
// Stats routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerStatsRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("stats"))

	if err := g.GET("/stats", a.getStats,
		forge.WithSummary("System statistics"),
		forge.WithDescription("Returns configured trigger counts and per-trigger scheduled backlogs."),
		forge.WithOperationID("getStats"),
		forge.WithResponseSchema(http.StatusOK, "System statistics", StatsForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getStats route", forge.Error(err))
	}
}

func (a *ForgeAPI) getStats(ctx forge.Context, _ *StatsForgeRequest) (*StatsForgeResponse, error) {
	snap, err := a.trigger.Registry().Snapshot(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	stats, err := a.store.ScheduledStats(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	return &StatsForgeResponse{
		EventTriggers:     snap.EventTriggerCount(),
		ScheduledTriggers: snap.ScheduledTriggerCount(),
		Scheduled:         stats,
	}, nil
}
