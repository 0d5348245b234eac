package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	// Parse level
	config.Level = zap.NewAtomicLevelAt(parseLevel(level))

	return config.Build()
}

// NewFileLogger writes colored, human-readable lines to stdout and JSON lines
// to the file at path. The returned func syncs and closes the file.
func NewFileLogger(path, level string) (*zap.Logger, func(), error) {
	file, closeFile, err := zap.Open(path)
	if err != nil {
		return nil, nil, err
	}
	lvl := zap.NewAtomicLevelAt(parseLevel(level))

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")

	fileCfg := zap.NewProductionEncoderConfig()
	fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), lvl),
		zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), file, lvl),
	)
	logger := zap.New(core, zap.AddCaller())
	return logger, func() {
		_ = logger.Sync()
		closeFile()
	}, nil
}

func parseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}
