package logger

import (
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Retention of rotated log files.
const (
	rotationTime = 24 * time.Hour
	maxAge       = 7 * 24 * time.Hour
)

// New builds the JSON logger. When dir is set, entries are also written to
// daily files in dir.
func New(level, dir string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevelAt(parseLevel(level))

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(enc)

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), lvl)}
	if dir != "" {
		w, err := fileWriter(dir)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(w), lvl))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn":
		return zap.WarnLevel
	default:
		return zap.ErrorLevel
	}
}

func fileWriter(dir string) (*rotatelogs.RotateLogs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return rotatelogs.New(
		filepath.Join(dir, "legendalf.%Y%m%d.log"),
		rotatelogs.WithLinkName(filepath.Join(dir, "legendalf.log")),
		rotatelogs.WithRotationTime(rotationTime),
		rotatelogs.WithMaxAge(maxAge),
	)
}
