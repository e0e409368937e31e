// Package telemetry provides structured logging, Prometheus metrics,
// and OpenTelemetry tracing for the provisioning engine. Everything
// here is optional: the engine runs fine with a no-op logger and no
// metrics endpoint.
package telemetry
