package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"
)

// AuditGapField marks log entries where an audit record could not be written.
const AuditGapField = "audit_gap"

// Core implements zapcore.Core to forward error logs to OpenTelemetry as spans.
type Core struct {
	zapcore.LevelEnabler
	tracer trace.Tracer
	fields []zapcore.Field
}

// NewCore creates a new core that forwards logs to OpenTelemetry.
func NewCore(enab zapcore.LevelEnabler) zapcore.Core {
	return &Core{
		LevelEnabler: enab,
		tracer:       otel.Tracer("logs"),
	}
}

func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(clone.fields[:len(clone.fields):len(clone.fields)], fields...)

	return &clone
}

func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	// Only forward Error and higher severity
	if ent.Level < zapcore.ErrorLevel {
		return nil
	}

	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)

	_, span := c.tracer.Start(context.Background(), "error."+getErrorCategory(ent, all))
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("error.message", ent.Message),
		attribute.String("error.level", ent.Level.String()),
		attribute.String("error.caller", ent.Caller.String()),
	}

	for _, field := range all {
		attrs = append(attrs, fieldAttribute(field))
	}

	span.SetAttributes(attrs...)
	span.SetStatus(codes.Error, ent.Message)

	return nil
}

func (c *Core) Sync() error {
	return nil
}

// fieldAttribute converts a zap field into a span attribute.
func fieldAttribute(field zapcore.Field) attribute.KeyValue {
	switch field.Type {
	case zapcore.StringType:
		return attribute.String(field.Key, field.String)
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return attribute.Int64(field.Key, field.Integer)
	case zapcore.BoolType:
		return attribute.Bool(field.Key, field.Integer == 1)
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok {
			return attribute.String(field.Key, err.Error())
		}
	}

	enc := zapcore.NewMapObjectEncoder()
	field.AddTo(enc)

	return attribute.String(field.Key, fmt.Sprint(enc.Fields[field.Key]))
}

// getErrorCategory determines the error category based on the log entry.
func getErrorCategory(ent zapcore.Entry, fields []zapcore.Field) string {
	for _, field := range fields {
		if field.Key == AuditGapField {
			return "audit"
		}
	}

	switch {
	case strings.Contains(ent.Caller.Function, "database"):
		return "database"
	case strings.Contains(ent.Caller.Function, "redis"), strings.Contains(ent.Caller.Function, "warning"):
		return "redis"
	case strings.Contains(ent.Caller.Function, "platform"):
		return "platform"
	case strings.Contains(ent.Caller.Function, "detector"):
		return "detector"
	case strings.Contains(ent.Caller.Function, "moderation"):
		return "moderation"
	case strings.Contains(ent.Caller.Function, "setup"):
		return "setup"
	default:
		return "application"
	}
}
