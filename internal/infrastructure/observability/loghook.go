package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	otellog "go.opentelemetry.io/otel/log"
)

// LogHook copies zerolog events into an OpenTelemetry logger so they are
// exported next to traces. Only the level and message are forwarded.
type LogHook struct {
	logger otellog.Logger
}

// InstallLogHook attaches a LogHook to the global zerolog logger
func InstallLogHook(logger otellog.Logger) {
	zlog.Logger = zlog.Logger.Hook(LogHook{logger: logger})
}

// Run implements zerolog.Hook
func (h LogHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level == zerolog.NoLevel || level == zerolog.Disabled {
		return
	}
	ctx := e.GetCtx()
	if ctx == nil {
		ctx = context.Background()
	}

	var record otellog.Record
	record.SetTimestamp(time.Now())
	record.SetSeverity(severityFor(level))
	record.SetSeverityText(level.String())
	record.SetBody(otellog.StringValue(msg))
	h.logger.Emit(ctx, record)
}

func severityFor(level zerolog.Level) otellog.Severity {
	switch level {
	case zerolog.TraceLevel:
		return otellog.SeverityTrace
	case zerolog.DebugLevel:
		return otellog.SeverityDebug
	case zerolog.InfoLevel:
		return otellog.SeverityInfo
	case zerolog.WarnLevel:
		return otellog.SeverityWarn
	case zerolog.ErrorLevel:
		return otellog.SeverityError
	case zerolog.FatalLevel:
		return otellog.SeverityFatal
	case zerolog.PanicLevel:
		return otellog.SeverityFatal4
	}
	return otellog.SeverityUndefined
}
