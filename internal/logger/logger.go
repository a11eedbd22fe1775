// 包 logger：进程级日志器的初始化与获取；级别与格式来自环境变量或命令行参数
package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	// defaultLogger：所有包共用的日志器；SetupWith 可在运行中替换
	defaultLogger atomic.Pointer[slog.Logger]
	lazyInit      sync.Once
)

// Setup：按 LOG_LEVEL（debug|info|warn|error）与 LOG_FORMAT（text|json）构建默认日志器
// 约束：输出固定为标准错误
func Setup() *slog.Logger {
	return SetupWith(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// SetupWith：显式参数版本的 Setup，供 CLI 的 --log-level / --log-format 使用
// 约束：未识别的级别按 info 处理，未识别的格式按 text 处理
func SetupWith(level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	l := slog.New(h)
	defaultLogger.Store(l)
	return l
}

// L：返回默认日志器
// 约束：尚未初始化时只按环境变量初始化一次；并发调用安全
func L() *slog.Logger {
	lazyInit.Do(func() {
		if defaultLogger.Load() == nil {
			Setup()
		}
	})
	return defaultLogger.Load()
}
