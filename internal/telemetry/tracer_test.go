package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestInitTracerExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	if _, err := InitTracer("reels-test", "test", &buf); err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}

	_, span := Tracer("telemetry").Start(context.Background(), "test-span")
	span.End()
	ShutdownTracer(context.Background())

	if !strings.Contains(buf.String(), "test-span") {
		t.Errorf("exported spans do not contain test-span: %s", buf.String())
	}
}
