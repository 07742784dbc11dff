package utils

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions mirrors the logging section of the application config
type LoggerOptions struct {
	Level            string
	Format           string // json, console
	Output           string // stdout, file, both
	FilePath         string
	MaxSize          int // MB
	MaxBackups       int
	MaxAge           int // days
	Compress         bool
	EnableCaller     bool
	EnableStacktrace bool
}

// NewLogger builds a zap logger writing to stdout, a rotated file, or both
func NewLogger(opts LoggerOptions) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if opts.Format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	var sinks []zapcore.WriteSyncer
	switch opts.Output {
	case "file":
		sinks = append(sinks, fileSink(opts))
	case "both":
		sinks = append(sinks, zapcore.Lock(os.Stdout), fileSink(opts))
	default:
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)

	var zopts []zap.Option
	if opts.EnableCaller {
		zopts = append(zopts, zap.AddCaller())
	}
	if opts.EnableStacktrace {
		zopts = append(zopts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return zap.New(core, zopts...), nil
}

func fileSink(opts LoggerOptions) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    opts.MaxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAge,
		Compress:   opts.Compress,
	})
}
