package store

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var storeOps = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "blog_store_operations_total",
	Help: "Post and credential store operations by backend, operation and result",
}, []string{"backend", "op", "result"})

func init() {
	prometheus.MustRegister(storeOps)
}

func observe(backend, op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case errors.Is(err, ErrConflict):
		result = "conflict"
	default:
		result = "error"
	}
	storeOps.WithLabelValues(backend, op, result).Inc()
}
