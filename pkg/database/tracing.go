package database

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/evento-ems/access/pkg/database"

// QueryTracer implements pgx.QueryTracer. It opens a client span per
// statement and logs statements slower than the configured threshold.
type QueryTracer struct {
	threshold time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

var _ pgx.QueryTracer = (*QueryTracer)(nil)

// NewQueryTracer returns a tracer. A zero threshold or nil logger disables
// slow query logging; spans are always recorded.
func NewQueryTracer(threshold time.Duration, logger *slog.Logger) *QueryTracer {
	return &QueryTracer{threshold: threshold, logger: logger, now: time.Now}
}

type queryStartKey struct{}

type queryStart struct {
	at  time.Time
	sql string
}

// operationName returns the leading SQL keyword, e.g. "SELECT".
func operationName(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "QUERY"
	}
	return strings.ToUpper(fields[0])
}

// TraceQueryStart is called by pgx before a statement is sent.
func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := operationName(data.SQL)
	ctx, _ = otel.Tracer(tracerName).Start(ctx, "db."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
			attribute.String("db.statement", data.SQL),
		),
	)
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: t.now(), sql: data.SQL})
}

// TraceQueryEnd is called by pgx once the statement completes.
func (t *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span := trace.SpanFromContext(ctx)
	if data.Err != nil {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, data.Err.Error())
	}
	span.End()

	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok || t.threshold <= 0 || t.logger == nil {
		return
	}
	elapsed := t.now().Sub(start.at)
	if elapsed < t.threshold {
		return
	}
	attrs := []any{
		slog.String("operation", operationName(start.sql)),
		slog.String("statement", start.sql),
		slog.Duration("duration", elapsed),
	}
	if data.Err != nil {
		attrs = append(attrs, slog.String("error", data.Err.Error()))
	}
	t.logger.WarnContext(ctx, "slow query detected", attrs...)
}
