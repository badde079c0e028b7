package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   NewTextHandler(buf, slog.LevelDebug),
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerAddsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, "app").WithComponent(ComponentMember)

	logger.Info("hello", FieldRegistrationCode, "REG1234")

	out := buf.String()
	if strings.Count(out, "component=") != 1 {
		t.Errorf("expected a single component attribute, got %q", out)
	}
	if !strings.Contains(out, "component=member") || !strings.Contains(out, "registration_code=REG1234") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestComponentMiddlewareKeepsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf, ComponentHTTP).With(FieldRequestID, "req-1")

	var got *Logger
	h := ComponentMiddleware(ComponentMember)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		got.InfoContext(r.Context(), "inside")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/members", nil)
	h.ServeHTTP(httptest.NewRecorder(), req.WithContext(NewContext(req.Context(), base)))

	if got == nil || got.Component() != ComponentMember {
		t.Fatalf("expected member logger in context, got %+v", got)
	}
	out := buf.String()
	if !strings.Contains(out, "request_id=req-1") || !strings.Contains(out, "component=member") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger %+v", l)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentCollection))
	ctx := context.Background()

	sl.LogCollectionRecorded(ctx, 7, "RCPT-20250110-ABCD1234", 15000, "mayyathu", "memorial_fund")
	sl.LogError(ctx, "store failed", errors.New("disk full"), ComponentStorage, OpCreate, NewFields().WithErrorType(ErrorTypeDatabase))

	out := buf.String()
	for _, want := range []string{
		"receipt=RCPT-20250110-ABCD1234",
		"amount_cents=15000",
		"bucket=memorial_fund",
		`error="disk full"`,
		"error_type=database_error",
		"level=ERROR",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{404, "level=WARN"},
		{503, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(newBufferLogger(&buf, ComponentHTTP))
		r := httptest.NewRequest(http.MethodGet, "/api/reports/dashboard", nil)

		sl.LogHTTPEnd(context.Background(), r, tt.status, 3, "10.0.0.1")

		if !strings.Contains(buf.String(), tt.level) {
			t.Errorf("status %d: expected %s in %q", tt.status, tt.level, buf.String())
		}
	}
}

func TestExplicitComponentWins(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentTrace)

	logger.Info("x", FieldComponent, ComponentHTTP)

	if out := buf.String(); strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=http") {
		t.Errorf("unexpected output %q", out)
	}
}
