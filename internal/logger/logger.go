package logger

import (
	"os"

	"quiztube/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// log is a no-op until Initialize runs so packages can log before startup wiring.
var log = zap.NewNop()

// Initialize replaces the process logger. Production emits JSON lines; every
// other environment gets the human-readable console encoder.
func Initialize(cfg config.LoggerConfig) error {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return err
		}
		level = parsed
	}

	core := zapcore.NewCore(newEncoder(cfg.Env), zapcore.Lock(os.Stdout), level)
	log = zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	).With(zap.String("service", "quiztube"))
	return nil
}

func newEncoder(env string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	if env == "production" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func Get() *zap.Logger {
	return log
}

// Sync flushes buffered entries; call it once on shutdown.
func Sync() error {
	return log.Sync()
}
