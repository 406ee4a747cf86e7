package logging

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/giovaniif/e-commerce/inventory/infra/loki"
	"github.com/giovaniif/e-commerce/inventory/infra/requestid"
)

// New builds a JSON logger on stdout. When lokiURL is set the same entries are
// also pushed to Loki; the returned closer flushes and stops that writer.
func New(serviceName string, lokiURL string, level zapcore.Level) (*zap.Logger, io.Closer) {
	cores := []zapcore.Core{newCore(zapcore.Lock(os.Stdout), level)}
	var closer io.Closer = nopCloser{}
	if w := loki.NewWriter(lokiURL, serviceName); w != nil {
		cores = append(cores, newCore(zapcore.AddSync(w), level))
		closer = w
	}
	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).
		With(zap.String("service", serviceName))
	return logger, closer
}

func newCore(sink zapcore.WriteSyncer, level zapcore.Level) zapcore.Core {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(cfg), sink, level)
}

// FromContext tags logger with the request id carried by ctx, if any.
func FromContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if id := requestid.FromContext(ctx); id != "" {
		return logger.With(zap.String("request_id", id))
	}
	return logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
