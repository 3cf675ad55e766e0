package logger

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"equity-screener/pkg/types"
)

// 日志文件名
const fileName = "screener.log"

// New 创建日志：控制台 + 按大小切割的JSON文件，FilePath 为空时只输出到控制台
func New(config types.LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if config.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(config.Level))); err != nil {
			return nil, err
		}
	}

	consoleEncoder := zap.NewDevelopmentEncoderConfig()
	consoleEncoder.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	consoleEncoder.EncodeLevel = zapcore.CapitalColorLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoder), zapcore.Lock(os.Stdout), level),
	}

	if config.FilePath != "" {
		if err := os.MkdirAll(config.FilePath, 0o755); err != nil {
			return nil, err
		}
		writer := &lumberjack.Logger{
			Filename:   filepath.Join(config.FilePath, fileName),
			MaxSize:    config.MaxSize,
			MaxAge:     config.MaxAge,
			MaxBackups: config.MaxBackups,
			Compress:   config.Compress,
			LocalTime:  true,
		}
		fileEncoder := zap.NewProductionEncoderConfig()
		fileEncoder.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoder), zapcore.AddSync(writer), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// Init 初始化全局日志，返回的函数用于退出前刷新缓冲
func Init(config types.LogConfig) (func(), error) {
	l, err := New(config)
	if err != nil {
		return nil, err
	}
	undo := zap.ReplaceGlobals(l)
	return func() {
		_ = l.Sync()
		undo()
	}, nil
}
