// Package extension provides the Forge extension for mounting the trigger
// engine.
//
// The extension integrates the engine into the Forge application framework by:
//   - Initializing the engine with a configured store
//   - Running database migrations on Init
//   - Mounting admin API routes with OpenAPI metadata under a configurable prefix
//   - Starting the delivery loops on application start
//   - Gracefully stopping them on application shutdown
//   - Providing health checks via store.Ping
//
// Usage:
//
//	ext := extension.New(
//	    extension.WithStore(postgresStore),
//	    extension.WithPrefix("/triggers"),
//	)
//	if err := ext.Init(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	ext.RegisterRoutes(router, logger)
//	ext.Start(ctx)
//	defer ext.Stop(ctx)
package extension
