// Package observability provides a ready-made funnel extension that
// records lifecycle metrics through OpenTelemetry.
//
// Register it on a dispatcher to get admission/completion/failure
// counters and live gauges for backlog depth and active worker
// activations:
//
//	d, _ := funnel.New(
//	    funnel.WithConcurrency(4),
//	    funnel.WithMaxBacklog(64),
//	)
//	d.Extensions().Register(observability.NewMetricsExtension(d.Counters))
//
// With no global MeterProvider configured the instruments are noops.
package observability
