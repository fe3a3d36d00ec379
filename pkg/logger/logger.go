package logger

import (
	"context"
	"edumate_backend/internal/config"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 在 InitLogger 之前为 no-op，便于测试和工具直接使用
var Log = zap.NewNop()

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userIDKey
)

func InitLogger(cfg *config.Config) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	file := cfg.Log.File
	if file == "" {
		file = "logs/edumate.log"
	}
	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	consoleWriter := zapcore.AddSync(os.Stdout)

	level := ParseLevel(cfg.Log.Level, cfg.Server.Mode)

	core := zapcore.NewTee(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			fileWriter,
			level,
		),
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			consoleWriter,
			level,
		),
	)

	Log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)).
		With(zap.String("service", cfg.Tracing.ServiceName))
}

// ParseLevel 显式配置优先，无法识别时回退到按运行模式决定
func ParseLevel(level, mode string) zapcore.Level {
	var l zapcore.Level
	if level != "" && l.UnmarshalText([]byte(level)) == nil {
		return l
	}
	if mode == "debug" {
		return zap.DebugLevel
	}
	return zap.InfoLevel
}

// WithRequestID 请求ID随 context 传到服务层
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithUserID 当前登录用户随 context 传到服务层
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Ctx 附带 context 中的请求ID、登录用户(actorId)和 traceId
func Ctx(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return Log
	}
	fields := make([]zap.Field, 0, 3)
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("requestId", id))
	}
	if uid, ok := ctx.Value(userIDKey).(uint); ok && uid != 0 {
		fields = append(fields, zap.Uint("actorId", uid))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("traceId", sc.TraceID().String()))
	}
	if len(fields) == 0 {
		return Log
	}
	return Log.With(fields...)
}
