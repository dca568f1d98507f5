package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/trigger/delivery"
	"github.com/xraph/trigger/event"
	"github.com/xraph/trigger/id"
	"github.com/xraph/trigger/invocation"
	"github.com/xraph/trigger/registry"
)

// eventLoop leases and dispatches event trigger deliveries. Deliveries run
// in their own goroutines gated by the permit pool, so the loop leases the
// next batch while the previous one is still in flight; the lock flip keeps
// batches disjoint. After a non-full batch the loop idles for FetchInterval.
func (e *Engine) eventLoop(ctx context.Context) {
	fullBatches := 0
	backlogWarned := false

	for ctx.Err() == nil {
		snap, err := e.registry.Snapshot(ctx)
		if err != nil {
			e.logger.ErrorContext(ctx, "registry snapshot failed",
				"category", "event_trigger_log", "error", err)
			if !e.sleep(ctx, e.config.FetchInterval) {
				return
			}
			continue
		}

		batch, err := e.store.LeaseEvents(ctx, e.config.BatchSize)
		if err != nil {
			e.logger.ErrorContext(ctx, "lease events failed",
				"category", "event_trigger_log", "error", err)
			if !e.sleep(ctx, e.config.FetchInterval) {
				return
			}
			continue
		}
		if e.config.Metrics != nil {
			e.config.Metrics.RecordFetch("event", len(batch))
		}

		// Persistent full batches mean the queue is filling faster than we
		// drain it. Warn once, and note recovery once it subsides.
		if len(batch) == e.config.BatchSize {
			fullBatches++
			if fullBatches == fullBatchWarnThreshold && !backlogWarned {
				backlogWarned = true
				e.logger.WarnContext(ctx, "event queue backlogged, leasing full batches",
					"category", "event_trigger_log",
					"batch_size", e.config.BatchSize,
					"consecutive_batches", fullBatches)
				if e.config.Metrics != nil {
					e.config.Metrics.SaturationWarnsTotal.Inc()
				}
			}
		} else {
			if backlogWarned {
				e.logger.InfoContext(ctx, "event queue caught up",
					"category", "event_trigger_log")
			}
			fullBatches = 0
			backlogWarned = false
		}

		for _, evt := range batch {
			if err := e.acquirePermit(ctx); err != nil {
				return
			}
			e.wg.Add(1)
			go func(evt *event.Event) {
				defer e.wg.Done()
				defer e.releasePermit()
				// Shutdown cancels leasing, not attempts already underway:
				// the request is bounded by its own timeout, and Stop waits
				// for the transition to be recorded.
				e.processEvent(context.WithoutCancel(ctx), snap, evt)
			}(evt)
		}

		// A full batch likely means more rows are due right now; lease
		// again without idling.
		if len(batch) < e.config.BatchSize {
			if !e.sleep(ctx, e.config.FetchInterval) {
				return
			}
		}
	}
}

// processEvent performs one delivery attempt for a leased event row and
// applies the resulting transition.
func (e *Engine) processEvent(ctx context.Context, snap *registry.Snapshot, evt *event.Event) {
	trig, ok := snap.EventTrigger(evt.TriggerName)
	if !ok {
		// No transition: the row stays leased until a restart sweep, by
		// which time the registry may know the trigger again.
		e.logger.ErrorContext(ctx, "event references unknown trigger",
			"category", "event_trigger_log",
			"event_id", evt.ID, "trigger", evt.TriggerName)
		return
	}

	body, err := delivery.NewEventEnvelope(evt, trig).Marshal()
	if err != nil {
		e.logger.ErrorContext(ctx, "compose event envelope failed",
			"category", "event_trigger_log",
			"event_id", evt.ID, "trigger", evt.TriggerName, "error", err)
		return
	}

	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartDeliverySpan(ctx, "event", evt.ID.String(), trig.Name)
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
		EventID:   evt.ID,
		Status:    outcome.Status,
		Request:   invocation.Marshal(invocation.NewRequest(body, delivery.RequestHeaders(trig.Headers))),
		Response:  invocation.Marshal(outcome.Response()),
		CreatedAt: time.Now().UTC(),
	}

	now := time.Now().UTC()
	decision := delivery.Decide(outcome, evt.Tries, trig.Retry)

	var transitionErr error
	switch decision {
	case delivery.Delivered:
		transitionErr = e.store.MarkEventDelivered(ctx, evt.ID, inv)
		e.recordDelivery("event", "delivered", outcome)
		e.logger.DebugContext(ctx, "event delivered",
			"category", "event_trigger_log",
			"event_id", evt.ID, "trigger", trig.Name,
			"status", outcome.Status, "latency_ms", outcome.LatencyMs)

	case delivery.Retry:
		retryAt := delivery.NextRetryAt(now, outcome, trig.Retry)
		transitionErr = e.store.SetEventRetry(ctx, evt.ID, retryAt, inv)
		e.recordDelivery("event", "retried", outcome)
		e.logger.DebugContext(ctx, "event retry scheduled",
			"category", "event_trigger_log",
			"event_id", evt.ID, "trigger", trig.Name,
			"status", outcome.Status, "tries", evt.Tries+1, "next_retry_at", retryAt)

	case delivery.Errored:
		transitionErr = e.store.MarkEventError(ctx, evt.ID, inv)
		e.recordDelivery("event", "errored", outcome)
		e.logger.WarnContext(ctx, "event delivery failed permanently",
			"category", "event_trigger_log",
			"event_id", evt.ID, "trigger", trig.Name,
			"status", outcome.Status, "tries", evt.Tries+1)
	}

	if transitionErr != nil {
		e.logger.ErrorContext(ctx, "event transition failed",
			"category", "event_trigger_log",
			"event_id", evt.ID, "error", transitionErr)
	}

	if span != nil {
		e.config.Tracer.EndDeliverySpan(span, outcome.Status, outcome.LatencyMs, outcome.Message)
	}
}

func (e *Engine) recordDelivery(queue, status string, outcome delivery.Outcome) {
	if e.config.Metrics != nil {
		e.config.Metrics.RecordDelivery(queue, status, float64(outcome.LatencyMs)/1000.0)
	}
}
