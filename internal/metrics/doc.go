// Package metrics records build metrics.
//
// Components receive a Recorder. NoopRecorder is the default so callers never
// need nil checks; PrometheusRecorder collects into a Prometheus registry that
// can be exported to a node_exporter textfile after each build:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	// ... build with rec ...
//	_ = metrics.WriteTextfile(reg, "/var/lib/node_exporter/docbuild.prom")
package metrics
