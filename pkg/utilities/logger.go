package utilities

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level string
	Dev   bool
	// File adds a rotating JSON sink next to stdout when set.
	File        string
	RotateEvery time.Duration
	MaxAge      time.Duration
}

// ConfigFromEnv reads LOG_LEVEL, LOG_DEV, LOG_FILE, LOG_ROTATE_HOURS and LOG_MAX_AGE_DAYS.
func ConfigFromEnv() Config {
	cfg := Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Dev:         os.Getenv("LOG_DEV") == "1",
		File:        os.Getenv("LOG_FILE"),
		RotateEvery: time.Duration(envInt("LOG_ROTATE_HOURS", 24)) * time.Hour,
		MaxAge:      time.Duration(envInt("LOG_MAX_AGE_DAYS", 7)) * 24 * time.Hour,
	}
	if cfg.Level == "" && cfg.Dev {
		cfg.Level = "debug"
	}
	return cfg
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return def
}

// Init builds the process logger. Unknown or empty levels mean info.
func Init(cfg Config) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		lvl = zapcore.InfoLevel
	}
	if cfg.Dev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if cfg.File != "" {
		w, err := rotatingWriter(cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, zapcore.AddSync(w))
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.NewMultiWriteSyncer(sinks...), lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// rotatingWriter writes <file>.YYYYMMDDHH and keeps <file> linked to the current one.
func rotatingWriter(cfg Config) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, err
	}
	return rotatelogs.New(
		cfg.File+".%Y%m%d%H",
		rotatelogs.WithLinkName(cfg.File),
		rotatelogs.WithRotationTime(cfg.RotateEvery),
		rotatelogs.WithMaxAge(cfg.MaxAge),
	)
}
