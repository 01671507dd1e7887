package telemetry

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// HTTPMiddleware wraps every /api/v2/sync/* and /api/* request in a span
// and records it against metrics, per §11's "coordinator HTTP middleware"
// wiring for OpenTelemetry.
func HTTPMiddleware(metrics Metrics, tracerName string) func(http.Handler) http.Handler {
	tracer := Tracer(tracerName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.path", r.URL.Path),
			)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))
			duration := time.Since(start)

			success := rec.status < 500
			if !success {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}
			span.SetAttributes(attribute.Int("http.status_code", rec.status))
			span.End()

			metrics.RecordSyncCall(ctx, r.URL.Path, success, duration)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
