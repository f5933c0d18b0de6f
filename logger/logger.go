// Package logger 进程级结构化日志
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New 按运行模式创建日志器：release 输出 JSON，其余输出文本
func New(mode, level string) *slog.Logger {
	return NewWithWriter(os.Stdout, mode, level)
}

// NewWithWriter 同 New，可指定输出
func NewWithWriter(w io.Writer, mode, level string) *slog.Logger {
	lv := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lv,
		AddSource: lv == slog.LevelDebug,
	}

	var handler slog.Handler
	if mode == "release" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", "bugmarket")
}

// Discard 丢弃所有输出，测试使用
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
