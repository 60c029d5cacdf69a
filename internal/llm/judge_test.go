package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rehoboam-dev/rehoboam/internal/loopctl"
)

func newTestJudge(t *testing.T, reply string) *AnthropicJudge {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := anthropicResponse{
			Content: []anthropicContent{{Type: "text", Text: reply}},
			StopReason: "end_turn",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	client, err := NewAnthropicClient(APIConfig{BaseURL: srv.URL, Model: "claude-3-5-haiku-latest"}, "test-key")
	if err != nil {
		t.Fatalf("NewAnthropicClient: %v", err)
	}
	return &AnthropicJudge{client: client}
}

func TestAnthropicJudgeEvaluateComplete(t *testing.T) {
	j := newTestJudge(t, "COMPLETE")
	verdict, err := j.Evaluate(context.Background(), "ship the feature", "done, tests pass")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if verdict != loopctl.JudgeComplete {
		t.Fatalf("expected complete, got %v", verdict)
	}
}

func TestAnthropicJudgeEvaluateContinue(t *testing.T) {
	j := newTestJudge(t, "CONTINUE")
	verdict, err := j.Evaluate(context.Background(), "ship the feature", "still failing one test")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if verdict != loopctl.JudgeContinue {
		t.Fatalf("expected continue, got %v", verdict)
	}
}

func TestAnthropicJudgeEvaluateUnrecognizedIsUncertain(t *testing.T) {
	j := newTestJudge(t, "not sure honestly")
	verdict, err := j.Evaluate(context.Background(), "ship the feature", "mixed signals")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if verdict != loopctl.JudgeUncertain {
		t.Fatalf("expected uncertain, got %v", verdict)
	}
}
