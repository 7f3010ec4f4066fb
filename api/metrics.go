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

	"github.com/petabite/shiptivitas-2/domain"
)

const (
	tracerName         = "github.com/petabite/shiptivitas-2/api"
	clientsSpanName    = "clients.request"
	clientsEventName   = "clients.request.metrics"
	clientsEventDomain = "shiptivity.clients"
	observabilityEvent = "observability.event"
)

type clientRequestMetrics struct {
	logger          *log.Logger
	span            trace.Span
	route           string
	requestID       string
	start           time.Time
	storeDuration   time.Duration
	encodeDuration  time.Duration
	statusFilter    string
	clientsReturned int
	updateMode      domain.Mode
	errorStage      string
	cause           error
}

func newClientRequestMetrics(ctx context.Context, logger *log.Logger, route, requestID string) (*clientRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, clientsSpanName, trace.WithSpanKind(trace.SpanKindServer))
	return &clientRequestMetrics{
		logger:    logger,
		span:      span,
		route:     route,
		requestID: requestID,
		start:     time.Now(),
	}, spanCtx
}

func (m *clientRequestMetrics) ObserveStore(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.storeDuration = duration
}

func (m *clientRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *clientRequestMetrics) SetStatusFilter(status string) {
	m.statusFilter = status
}

func (m *clientRequestMetrics) SetClientsReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.clientsReturned = count
}

func (m *clientRequestMetrics) SetUpdateMode(mode domain.Mode) {
	m.updateMode = mode
}

func (m *clientRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Fail records an error that was answered with a response rather than
// returned from the handler.
func (m *clientRequestMetrics) Fail(err error) {
	m.cause = err
}

// Log ends the request span and emits one structured log entry carrying the
// same attributes.
func (m *clientRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	if err == nil {
		err = m.cause
	}
	severityText, severityNumber := severityForStatus(status, err)

	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Float64("shiptivity.clients.total_ms", durationToMillis(time.Since(m.start))),
		attribute.Int("shiptivity.clients.returned", m.clientsReturned),
	}
	if m.requestID != "" {
		attrs = append(attrs, attribute.String("http.request_id", m.requestID))
	}
	if m.statusFilter != "" {
		attrs = append(attrs, attribute.String("shiptivity.clients.status_filter", m.statusFilter))
	}
	if m.updateMode != "" {
		attrs = append(attrs, attribute.String("shiptivity.clients.update_mode", string(m.updateMode)))
	}
	if m.storeDuration > 0 {
		attrs = append(attrs, attribute.Float64("shiptivity.clients.store_ms", durationToMillis(m.storeDuration)))
	}
	if m.encodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("shiptivity.clients.encode_ms", durationToMillis(m.encodeDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("shiptivity.clients.error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	var traceID, spanID string
	if m.span != nil {
		m.span.SetAttributes(attrs...)
		eventAttrs := append([]attribute.KeyValue{
			attribute.String("event.name", clientsEventName),
			attribute.String("event.domain", clientsEventDomain),
			attribute.String("severity_text", severityText),
			attribute.Int("severity_number", severityNumber),
		}, attrs...)
		m.span.AddEvent(observabilityEvent, trace.WithAttributes(eventAttrs...))
		if severityText == "ERROR" {
			desc := http.StatusText(status)
			if err != nil {
				desc = err.Error()
				m.span.RecordError(err)
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			traceID = sc.TraceID().String()
			spanID = sc.SpanID().String()
		}
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      clientsEventName,
		"event.domain":    clientsEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      attributeFields(attrs),
	}
	if traceID != "" {
		fields["trace_id"] = traceID
		fields["span_id"] = spanID
	}
	m.logger.WithFields(fields).Log(levelForSeverity(severityText), observabilityEvent)
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func levelForSeverity(text string) log.Level {
	switch text {
	case "ERROR":
		return log.ErrorLevel
	case "WARN":
		return log.WarnLevel
	}
	return log.InfoLevel
}

func attributeFields(attrs []attribute.KeyValue) map[string]any {
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
