package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "github.com/LinkDevArch/vess-colaborative-platform/api"
	requestSpanName    = "vess.api.request"
	requestEventName   = "vess.api.request.completed"
	requestEventDomain = "vess.api"
	observabilityEvent = "observability.event"
)

// requestMetrics collects per-request timings and outcome and reports them as
// a span plus one structured log line.
type requestMetrics struct {
	logger     *log.Logger
	span       trace.Span
	start      time.Time
	method     string
	route      string
	userID     string
	items      int
	hasItems   bool
	errorStage string
	err        error
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, method, route string) (*requestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, requestSpanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
		))
	return &requestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
		method: method,
		route:  route,
	}, ctx
}

func (m *requestMetrics) SetUser(userID string) {
	if m == nil {
		return
	}
	m.userID = userID
}

// SetItems records how many records the response carried.
func (m *requestMetrics) SetItems(n int) {
	if m == nil {
		return
	}
	if n < 0 {
		n = 0
	}
	m.items = n
	m.hasItems = true
}

// Fail remembers the stage and error of a request answered with an error body.
func (m *requestMetrics) Fail(stage string, err error) {
	if m == nil {
		return
	}
	if stage != "" {
		m.errorStage = stage
	}
	if err != nil {
		m.err = err
	}
}

func (m *requestMetrics) attributes(status int, err error) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", m.method),
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Float64("vess.api.total_ms", durationToMillis(time.Since(m.start))),
	}
	if m.userID != "" {
		attrs = append(attrs, attribute.String("enduser.id", m.userID))
	}
	if m.hasItems {
		attrs = append(attrs, attribute.Int("vess.api.items", m.items))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("vess.api.error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}
	return attrs
}

// Log ends the span and writes the observability event.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	if err == nil {
		err = m.err
	}
	severity, number := severityForStatus(status, err)
	attrs := m.attributes(status, err)

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		eventAttrs := append([]attribute.KeyValue{
			attribute.String("event.name", requestEventName),
			attribute.String("event.domain", requestEventDomain),
			attribute.String("severity_text", severity),
			attribute.Int("severity_number", number),
		}, attrs...)
		m.span.AddEvent(observabilityEvent, trace.WithAttributes(eventAttrs...))
		if severity == "ERROR" {
			desc := http.StatusText(status)
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		defer m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"severity_text":   severity,
		"severity_number": number,
		"attributes":      attributesToFields(attrs),
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.IsValid() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
	}
	m.logger.WithFields(fields).Log(levelForSeverity(severity), observabilityEvent)
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	case status == 0 && err != nil:
		return "ERROR", 17
	}
	return "INFO", 9
}

func levelForSeverity(severity string) log.Level {
	switch severity {
	case "ERROR":
		return log.ErrorLevel
	case "WARN":
		return log.WarnLevel
	}
	return log.InfoLevel
}

func attributesToFields(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
