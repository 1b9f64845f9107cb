package utils

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestNewLogWriter(t *testing.T) {
	if w := NewLogWriter(LogFileConfig{}); w != os.Stdout {
		t.Errorf("expected stdout without a path, got %T", w)
	}

	path := filepath.Join(t.TempDir(), "service.log")
	w := NewLogWriter(LogFileConfig{Path: path, MaxSizeMB: 1, MaxBackups: 2, MaxAgeDays: 3})
	lj, ok := w.(*lumberjack.Logger)
	if !ok {
		t.Fatalf("expected lumberjack writer, got %T", w)
	}
	defer lj.Close()

	if _, err := lj.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestMiddleware_RequestScopedLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := NewSlogLogger(NewJSONLogger(&buf, slog.LevelInfo))

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "req-1")
		c.Next()
	})
	router.Use(ContextLogger(logger))
	router.Use(LoggerMiddleware(logger))
	router.GET("/ping", func(c *gin.Context) {
		FromContext(c.Request.Context(), logger).Info("handling")
		c.Status(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		if entry["request_id"] != "req-1" {
			t.Errorf("missing request id in %v", entry)
		}
	}

	var access map[string]any
	json.Unmarshal(lines[1], &access)
	if access["level"] != "WARN" || access["status"] != float64(http.StatusTeapot) {
		t.Errorf("unexpected access log %v", access)
	}
}
