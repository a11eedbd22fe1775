package logger

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// statusWriter：包装 ResponseWriter，记录状态码与写出字节数
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// AccessMiddleware：每个请求记录一条 http_access 日志
// 背景：5xx 用 warn 级别，其余用 debug；/sessions/{id} 下的请求附带会话 id
// 约束：不读取请求体（上传文件可能很大）
func AccessMiddleware(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)

			lvl := slog.LevelDebug
			if sw.status >= http.StatusInternalServerError {
				lvl = slog.LevelWarn
			}
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"bytes", sw.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"ip", r.RemoteAddr,
			}
			if sid := SessionFromPath(r.URL.Path); sid != "" {
				attrs = append(attrs, "session", sid)
			}
			l.Log(context.Background(), lvl, "http_access", attrs...)
		})
	}
}

// SessionFromPath：返回路径中 sessions 之后的一段，没有时返回空串
func SessionFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "sessions" {
			return parts[i+1]
		}
	}
	return ""
}
