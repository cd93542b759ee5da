package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/melonneet/ezhishi-chatbot/internal/ctxutil"
)

func TestContextHandler_Handle(t *testing.T) {
	tests := []struct {
		name           string
		setupContext   func(context.Context) context.Context
		expectedFields map[string]string
	}{
		{
			name: "extracts all context values",
			setupContext: func(ctx context.Context) context.Context {
				ctx = ctxutil.WithSessionID(ctx, "sess-123")
				ctx = ctxutil.WithRequestID(ctx, "req-abc")
				ctx = ctxutil.WithClientIP(ctx, "10.1.2.3")
				return ctx
			},
			expectedFields: map[string]string{
				"session_id": "sess-123",
				"request_id": "req-abc",
				"client_ip":  "10.1.2.3",
			},
		},
		{
			name: "skips empty session id",
			setupContext: func(ctx context.Context) context.Context {
				ctx = ctxutil.WithSessionID(ctx, "")
				return ctxutil.WithRequestID(ctx, "req-only")
			},
			expectedFields: map[string]string{
				"request_id": "req-only",
			},
		},
		{
			name:           "handles empty context",
			setupContext:   func(ctx context.Context) context.Context { return ctx },
			expectedFields: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := NewContextHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			slog.New(handler).InfoContext(tt.setupContext(context.Background()), "test message")

			output := buf.String()
			for key, value := range tt.expectedFields {
				expectedJSON := `"` + key + `":"` + value + `"`
				if !strings.Contains(output, expectedJSON) {
					t.Errorf("Expected field %s=%s not found in output: %s", key, value, output)
				}
			}
			if len(tt.expectedFields) == 0 {
				for _, field := range []string{"session_id", "request_id", "client_ip"} {
					if strings.Contains(output, `"`+field+`"`) {
						t.Errorf("Unexpected field %s found in output: %s", field, output)
					}
				}
			}
		})
	}
}

func TestContextHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	handler := NewContextHandler(slog.NewJSONHandler(&buf, nil))

	log := slog.New(handler.WithAttrs([]slog.Attr{slog.String("service", "ezhishi-chatbot")}).WithGroup("stage"))
	log.InfoContext(ctxutil.WithSessionID(context.Background(), "s1"), "done", "name", "exact")

	output := buf.String()
	if !strings.Contains(output, `"service":"ezhishi-chatbot"`) {
		t.Errorf("Expected service attribute in output: %s", output)
	}
	if !strings.Contains(output, `"stage":{`) {
		t.Errorf("Expected stage group in output: %s", output)
	}
}
