package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWith_AddsContextFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "trace-123")
	ctx = WithLicenseID(ctx, "lic-456")
	With(ctx, &base).Info().Msg("request failed")

	out := buf.String()
	for _, want := range []string{`"trace_id":"trace-123"`, `"license_id":"lic-456"`, "request failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log line %q missing %q", out, want)
		}
	}
}

func TestWith_EmptyContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := zerolog.New(&buf)
	With(context.Background(), &base).Info().Msg("plain")

	out := buf.String()
	if strings.Contains(out, "trace_id") || strings.Contains(out, "license_id") {
		t.Fatalf("unexpected context fields in %q", out)
	}
}
