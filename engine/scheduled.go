package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/trigger/delivery"
	"github.com/xraph/trigger/id"
	"github.com/xraph/trigger/invocation"
	"github.com/xraph/trigger/registry"
	"github.com/xraph/trigger/schedule"
)

// scheduledLoop runs one materialize-then-deliver cycle per
// ScheduledInterval. Scheduled deliveries are dispatched sequentially:
// volumes are cron-bounded, and in-order processing keeps the per-trigger
// history easy to reason about.
func (e *Engine) scheduledLoop(ctx context.Context) {
	for ctx.Err() == nil {
		e.scheduledCycle(ctx)
		if !e.sleep(ctx, e.config.ScheduledInterval) {
			return
		}
	}
}

func (e *Engine) scheduledCycle(ctx context.Context) {
	snap, err := e.registry.Snapshot(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "registry snapshot failed",
			"category", "scheduled_trigger_log", "error", err)
		return
	}

	if err := e.materializer.Run(ctx, snap); err != nil {
		e.logger.ErrorContext(ctx, "materializer pass failed",
			"category", "scheduled_trigger_log", "error", err)
		// Delivery still proceeds over whatever rows exist.
	}

	batch, err := e.store.LeaseScheduledEvents(ctx, e.config.BatchSize)
	if err != nil {
		e.logger.ErrorContext(ctx, "lease scheduled events failed",
			"category", "scheduled_trigger_log", "error", err)
		return
	}
	if e.config.Metrics != nil {
		e.config.Metrics.RecordFetch("scheduled", len(batch))
	}

	for _, sev := range batch {
		if ctx.Err() != nil {
			return
		}
		e.processScheduled(ctx, snap, sev)
	}
}

// processScheduled handles one leased scheduled event: the lateness check,
// then a delivery attempt and its transition.
func (e *Engine) processScheduled(ctx context.Context, snap *registry.Snapshot, sev *schedule.ScheduledEvent) {
	trig, ok := snap.ScheduledTrigger(sev.Name)
	if !ok {
		e.logger.ErrorContext(ctx, "scheduled event references unknown trigger",
			"category", "scheduled_trigger_log",
			"event_id", sev.ID, "trigger", sev.Name)
		return
	}

	// An event picked up too far past its scheduled time is declared dead
	// without an attempt. The check applies to every leased row, retries
	// included: a retry chain does not outlive the tolerance window.
	now := time.Now().UTC()
	tolerance := time.Duration(trig.ToleranceSeconds) * time.Second
	if now.Sub(sev.ScheduledTime) > tolerance {
		if err := e.store.MarkScheduledDead(ctx, sev.ID); err != nil {
			e.logger.ErrorContext(ctx, "mark scheduled event dead failed",
				"category", "scheduled_trigger_log",
				"event_id", sev.ID, "error", err)
			return
		}
		e.logger.WarnContext(ctx, "scheduled event past tolerance, marked dead",
			"category", "scheduled_trigger_log",
			"event_id", sev.ID, "trigger", sev.Name,
			"scheduled_time", sev.ScheduledTime, "tolerance", tolerance)
		return
	}

	body, err := delivery.NewScheduledEnvelope(sev, trig).Marshal()
	if err != nil {
		e.logger.ErrorContext(ctx, "compose scheduled envelope failed",
			"category", "scheduled_trigger_log",
			"event_id", sev.ID, "trigger", sev.Name, "error", err)
		return
	}

	if err := e.acquirePermit(ctx); err != nil {
		return
	}
	defer e.releasePermit()

	// Shutdown must not abort an attempt once it starts: the request is
	// bounded by its own timeout, and its transition must be recorded.
	ctx = context.WithoutCancel(ctx)

	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartDeliverySpan(ctx, "scheduled", sev.ID.String(), trig.Name)
	}

	outcome := e.sender.Send(ctx, delivery.Request{
		Webhook:       trig.Webhook,
		Headers:       trig.Headers,
		Body:          body,
		Timeout:       time.Duration(trig.Retry.TimeoutSeconds) * time.Second,
		SigningSecret: trig.SigningSecret,
	})

	inv := &invocation.Invocation{
		ID:        id.NewInvocationID(),
		EventID:   sev.ID,
		Status:    outcome.Status,
		Request:   invocation.Marshal(invocation.NewRequest(body, delivery.RequestHeaders(trig.Headers))),
		Response:  invocation.Marshal(outcome.Response()),
		CreatedAt: time.Now().UTC(),
	}

	decision := delivery.Decide(outcome, sev.Tries, trig.Retry)

	var transitionErr error
	switch decision {
	case delivery.Delivered:
		transitionErr = e.store.MarkScheduledDelivered(ctx, sev.ID, inv)
		e.recordDelivery("scheduled", "delivered", outcome)
		e.logger.DebugContext(ctx, "scheduled event delivered",
			"category", "scheduled_trigger_log",
			"event_id", sev.ID, "trigger", trig.Name,
			"status", outcome.Status, "latency_ms", outcome.LatencyMs)

	case delivery.Retry:
		retryAt := delivery.NextRetryAt(now, outcome, trig.Retry)
		transitionErr = e.store.SetScheduledRetry(ctx, sev.ID, retryAt, inv)
		e.recordDelivery("scheduled", "retried", outcome)
		e.logger.DebugContext(ctx, "scheduled event retry scheduled",
			"category", "scheduled_trigger_log",
			"event_id", sev.ID, "trigger", trig.Name,
			"status", outcome.Status, "tries", sev.Tries+1, "next_retry_at", retryAt)

	case delivery.Errored:
		transitionErr = e.store.MarkScheduledError(ctx, sev.ID, inv)
		e.recordDelivery("scheduled", "errored", outcome)
		e.logger.WarnContext(ctx, "scheduled delivery failed permanently",
			"category", "scheduled_trigger_log",
			"event_id", sev.ID, "trigger", trig.Name,
			"status", outcome.Status, "tries", sev.Tries+1)
	}

	if transitionErr != nil {
		e.logger.ErrorContext(ctx, "scheduled transition failed",
			"category", "scheduled_trigger_log",
			"event_id", sev.ID, "error", transitionErr)
	}

	if span != nil {
		e.config.Tracer.EndDeliverySpan(span, outcome.Status, outcome.LatencyMs, outcome.Message)
	}
}
