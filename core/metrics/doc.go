// Package metrics defines the sinks that observe scheduling runs. Sinks like
// PromSink and InfluxSink (see infra/metrics) record each run and can be
// combined with NewMultiSink. NewMetricsSink builds sinks from configuration
// through the factory registry and returns a MultiSink automatically when
// several sinks are configured.
package metrics
