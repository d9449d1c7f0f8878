// Package httpserver runs an http.Handler with configured timeouts and
// graceful shutdown when the run context ends.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// HealthCheckHandler serves liveness and readiness probes.
package httpserver
