// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	FATAL
)

// Logger wraps a zap logger behind the field-map API used across the services.
type Logger struct {
	mu      sync.RWMutex
	zl      *zap.Logger
	level   zap.AtomicLevel
	rotator *lumberjack.Logger
	enabled bool
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		level := zap.NewAtomicLevelAt(zap.InfoLevel)
		globalLogger = &Logger{
			level:   level,
			zl:      zap.New(consoleCore(level, true), zap.AddCaller(), zap.AddCallerSkip(2)),
			enabled: true,
		}
	})
	return globalLogger
}

func consoleCore(level zap.AtomicLevel, dev bool) zapcore.Core {
	var enc zapcore.Encoder
	if dev {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		enc = zapcore.NewJSONEncoder(fileEncoderConfig())
	}
	return zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)
}

func fileEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.MessageKey = "message"
	cfg.LevelKey = "level"
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// InitLogger initializes the logger with a rotating log file.
// Console output stays human readable in debug mode and switches to JSON otherwise.
func InitLogger(logFile string, debug bool) error {
	logger := GetLogger()

	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig()), zapcore.AddSync(rotator), logger.level)
	core := zapcore.NewTee(fileCore, consoleCore(logger.level, debug))

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if logger.rotator != nil {
		logger.rotator.Close()
	}
	_ = logger.zl.Sync()
	logger.zl = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
	logger.rotator = rotator
	if debug {
		logger.level.SetLevel(zap.DebugLevel)
	}
	return nil
}

// NewTestLogger returns a logger that writes into the given core, for tests.
func NewTestLogger(core zapcore.Core) *Logger {
	return &Logger{
		zl:      zap.New(core, zap.AddCallerSkip(2)),
		level:   zap.NewAtomicLevelAt(zap.DebugLevel),
		enabled: true,
	}
}

// Zap exposes the underlying zap logger for libraries that take one.
func (l *Logger) Zap() *zap.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zl
}

// SetLogLevel sets the minimum level for logging
func (l *Logger) SetLogLevel(level LogLevel) {
	switch level {
	case DEBUG:
		l.level.SetLevel(zap.DebugLevel)
	case INFO:
		l.level.SetLevel(zap.InfoLevel)
	case WARNING:
		l.level.SetLevel(zap.WarnLevel)
	case ERROR:
		l.level.SetLevel(zap.ErrorLevel)
	case FATAL:
		l.level.SetLevel(zap.FatalLevel)
	}
}

// Enable enables or disables logging
func (l *Logger) Enable(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zl.Sync()
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	l.mu.RLock()
	zl, enabled := l.zl, l.enabled
	l.mu.RUnlock()
	if !enabled {
		return
	}

	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		if err, ok := v.(error); ok {
			zf = append(zf, zap.NamedError(k, err))
			continue
		}
		zf = append(zf, zap.Any(k, v))
	}

	switch level {
	case DEBUG:
		zl.Debug(message, zf...)
	case INFO:
		zl.Info(message, zf...)
	case WARNING:
		zl.Warn(message, zf...)
	case ERROR:
		zl.Error(message, zf...)
	case FATAL:
		zl.Fatal(message, zf...)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(DEBUG, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(INFO, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(WARNING, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(ERROR, message, fields)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(message string, fields map[string]interface{}) {
	l.log(FATAL, message, fields)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(DEBUG, fmt.Sprintf(format, args...), nil)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(INFO, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WARNING, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ERROR, fmt.Sprintf(format, args...), nil)
}
