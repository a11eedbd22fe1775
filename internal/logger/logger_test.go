package logger

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestSessionFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/sessions/abc/datasets", "abc"},
		{"/api/sessions/abc", "abc"},
		{"/api/sessions", ""},
		{"/api/preview", ""},
	}
	for _, tt := range tests {
		if got := SessionFromPath(tt.path); got != tt.want {
			t.Errorf("SessionFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestAccessMiddleware(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	h := AccessMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/boom") {
			w.WriteHeader(http.StatusBadGateway)
		}
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sessions/s1/datasets", nil))
	if buf.Len() != 0 {
		t.Fatalf("2xx logged above debug: %s", buf.String())
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sessions/s1/boom", nil))
	out := buf.String()
	for _, want := range []string{"http_access", "status=502", "session=s1", "bytes=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q lacks %q", out, want)
		}
	}
}

func TestSetupWith(t *testing.T) {
	l := SetupWith("error", "json")
	if l.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn enabled at error level")
	}
	if L() != l {
		t.Error("L() does not return the configured logger")
	}
}

func TestLConcurrentFirstUse(t *testing.T) {
	defaultLogger.Store(nil)
	lazyInit = sync.Once{}
	t.Setenv("LOG_LEVEL", "warn")

	var wg sync.WaitGroup
	got := make([]*slog.Logger, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = L()
		}(i)
	}
	wg.Wait()
	for i, l := range got {
		if l == nil || l != got[0] {
			t.Fatalf("L() #%d = %p, want one shared logger %p", i, l, got[0])
		}
	}
	if got[0].Enabled(context.Background(), slog.LevelInfo) {
		t.Error("lazy init ignored LOG_LEVEL")
	}
}
