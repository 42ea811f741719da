package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the speechcord tracer.
const tracerName = "github.com/MrWong99/speechcord"

// Tracer returns the package-level [trace.Tracer] for speechcord. It uses the
// globally registered [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span and returns the updated context and span. The
// caller must call span.End() when done. Request fields stored with
// [WithRequest] are attached to the span as attributes.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if rf, ok := requestFromContext(ctx); ok {
		opts = append(opts, trace.WithAttributes(
			attribute.String("speech.request_id", rf.id),
			attribute.String("discord.guild_id", rf.guildID),
			attribute.String("discord.channel_id", rf.channelID),
		))
	}
	return Tracer().Start(ctx, name, opts...)
}

// CorrelationID extracts the trace ID from the OTel span context in ctx.
// Returns the empty string when no active span with a valid trace ID exists.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

type requestKey struct{}

type requestFields struct {
	id        string
	guildID   string
	channelID string
}

// WithRequest stores the identifiers of one speech request in ctx so that
// [Logger] and [StartSpan] can attach them.
func WithRequest(ctx context.Context, requestID, guildID, channelID string) context.Context {
	return context.WithValue(ctx, requestKey{}, requestFields{
		id:        requestID,
		guildID:   guildID,
		channelID: channelID,
	})
}

// RequestID returns the request ID stored by [WithRequest], or "".
func RequestID(ctx context.Context) string {
	rf, _ := requestFromContext(ctx)
	return rf.id
}

func requestFromContext(ctx context.Context) (requestFields, bool) {
	rf, ok := ctx.Value(requestKey{}).(requestFields)
	return rf, ok
}

// Logger returns an [slog.Logger] enriched with the request fields stored by
// [WithRequest] and with trace_id and span_id from the OTel span context in
// ctx. Without either, the default slog logger is returned unchanged.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if rf, ok := requestFromContext(ctx); ok {
		l = l.With(
			slog.String("request_id", rf.id),
			slog.String("guild_id", rf.guildID),
			slog.String("channel_id", rf.channelID),
		)
	}
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
