package tracing

import (
	"context"
	"testing"
)

func TestSetup_EmptyEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "alumnihub-test", "")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}

	_, span := Tracer("test").Start(context.Background(), "noop")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Error("expected a non-recording span without an exporter")
	}
}
