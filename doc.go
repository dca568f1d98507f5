// Package trigger provides a durable webhook trigger engine for Go.
//
// Trigger is a library, not a service. Import it into your application to
// get two delivery queues backed by your database: event triggers fired from
// row changes, and scheduled triggers fired from cron expressions or one-off
// timestamps. Every delivery attempt is logged, retried per trigger policy,
// and driven to a terminal state.
//
// Key features:
//   - Database-backed queues with skip-locked leases; replicas share a
//     database without double-delivering
//   - Cron materialization: upcoming occurrences are written ahead of time
//     and topped up every cycle
//   - Per-trigger retry policy with Retry-After support and per-attempt
//     invocation logs
//   - Composable store pattern with multiple backends (Postgres, SQLite, Memory)
//   - HMAC-SHA256 signing of delivery bodies
//   - Forge-native with standalone fallback
//
// Quick start:
//
//	tr, err := trigger.New(
//	    trigger.WithStore(memoryStore),
//	    trigger.WithEventTriggers(registry.EventTriggerSpec{
//	        Name:    "users_insert",
//	        Webhook: "https://example.com/hooks/users",
//	        Retry:   registry.RetryConf{NumRetries: 3, IntervalSeconds: 10},
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := tr.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer tr.Stop(ctx)
//
//	tr.CaptureEvent(ctx, &event.Event{
//	    SchemaName:  "public",
//	    TableName:   "users",
//	    TriggerName: "users_insert",
//	    Payload:     json.RawMessage(`{"op":"INSERT","new":{"id":1}}`),
//	})
package trigger
