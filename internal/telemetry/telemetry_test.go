package telemetry

import (
	"context"
	"testing"
)

func TestNewNoopWhenNoEndpoint(t *testing.T) {
	tel, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tel.EventsIngested == nil || tel.AgentsActive == nil || tel.ReconcilerRuns == nil || tel.ApplyLatencyMs == nil {
		t.Fatalf("expected all instruments to be non-nil even in no-op mode")
	}
	tel.EventsIngested.Add(context.Background(), 1)
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
