// Package app wires the affynorm HTTP service together and manages its
// lifecycle.
//
// NewApplication loads the configuration, installs the process logger,
// resolves and creates the output directories, initializes OpenTelemetry
// and builds the engine and health services behind the chi router. Start
// binds the listener and serves in the background next to the runtime
// metrics collector; Stop drains in-flight requests within the configured
// shutdown timeout and flushes telemetry.
//
// Usage:
//
//	application, err := app.NewApplication(app.Options{ConfigPath: "affynorm.yaml"})
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// Run returns on SIGINT, SIGTERM, cancellation of ctx or a serve failure.
// Initialization errors are returned to the caller; the package never calls
// os.Exit.
package app
