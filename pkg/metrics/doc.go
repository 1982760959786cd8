// Package metrics exports render pass statistics to Prometheus.
//
//	collector := metrics.New(metrics.WithNamespace("myapp"))
//	r := dom.NewRenderer("app", backend, container, pool, dom.WithObserver(collector))
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
package metrics
