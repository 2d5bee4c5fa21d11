// Package telemetry provides logging, tracing and metrics for hostsync.
//
// Logging uses zerolog. Tracing uses OpenTelemetry with an OTLP gRPC or stdout
// exporter. Metrics are kept in a private Prometheus registry and written to a
// node-exporter textfile when the command exits, since hostsync is not a daemon.
//
// Initialize once per invocation and carry it in the context:
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//	ctx = tel.WithContext(ctx)
//
// Code that wants a span and a scoped logger calls StartOperation:
//
//	ic := telemetry.StartOperation(ctx, "scan", telemetry.AttrSubsystem.String("flatpak"))
//	defer func() { ic.End(err) }()
//
// Plan execution reports through Observer, which implements engine.Observer.
package telemetry
