package logx

import (
	"context"
	"fmt"
	"strings"
	"sync"

	contextx "github.com/blueplan/diary-go/internal/diary/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 日志记录器，字段统一通过 KV 传入，请求/会话ID从 context 中读取
type Logger struct {
	base *zap.Logger
}

// Field 键值对
type Field struct {
	Key   string
	Value any
}

// KV 创建键值对
func KV(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// NewLogger builds a JSON logger at the given level ("debug", "info", ...).
func NewLogger(level string) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &Logger{base: z}, nil
}

// NewDevelopment is the console logger used by the CLI.
func NewDevelopment() (*Logger, error) {
	z, err := zap.NewDevelopment(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &Logger{base: z}, nil
}

// NewNop discards everything; tests use it.
func NewNop() *Logger {
	return &Logger{base: zap.NewNop()}
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{base: z}
}

func (l *Logger) Info(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, zapcore.InfoLevel, message, fields)
}

func (l *Logger) Warn(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, zapcore.WarnLevel, message, fields)
}

func (l *Logger) Error(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, zapcore.ErrorLevel, message, fields)
}

func (l *Logger) Debug(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, zapcore.DebugLevel, message, fields)
}

// With returns a child logger that always carries fields.
func (l *Logger) With(fields ...Field) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{base: l.base.With(toZap(fields)...)}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.base.Sync()
}

func (l *Logger) log(ctx context.Context, level zapcore.Level, message string, fields []Field) {
	if l == nil || l.base == nil {
		return
	}
	ce := l.base.Check(level, message)
	if ce == nil {
		return
	}
	zf := toZap(fields)
	if rid, ok := contextx.GetRequestID(ctx); ok {
		zf = append(zf, zap.String("request_id", rid))
	}
	if sid, ok := contextx.GetSessionID(ctx); ok {
		zf = append(zf, zap.String("session_id", sid))
	}
	ce.Write(zf...)
}

func toZap(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

// 全局日志记录器实例
var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// GetLogger 获取全局日志记录器，未设置时返回 Nop
func GetLogger() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return NewNop()
	}
	return globalLogger
}

// SetGlobalLogger 设置全局日志记录器
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}
