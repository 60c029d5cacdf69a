package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rehoboam-dev/rehoboam/internal/loopctl"
)

// AnthropicJudge asks a small Claude model whether a loop's progress.md
// demonstrates the anchor goal has been met. It backs loopctl.Judge.
type AnthropicJudge struct {
	client Client
}

// NewAnthropicJudge builds a Judge from API config and an explicit key,
// resolved by the caller from JudgeConfig.APIKeyEnv.
func NewAnthropicJudge(cfg APIConfig, apiKey string) (*AnthropicJudge, error) {
	client, err := NewAnthropicClient(cfg, apiKey)
	if err != nil {
		return nil, fmt.Errorf("building judge client: %w", err)
	}
	retrying := WithRetry(client, RetryConfig{MaxRetries: 2, InitialBackoff: 500 * time.Millisecond, MaxBackoff: 5 * time.Second})
	return &AnthropicJudge{client: retrying}, nil
}

const judgeSystemPrompt = `You are reviewing whether an autonomous coding loop has finished its task.
You will be given the loop's anchor goal and its current progress notes.
Reply with exactly one word: COMPLETE if the goal is clearly met, CONTINUE
if there is clearly more work, or UNCERTAIN if you cannot tell from the
notes alone. Do not explain your answer.`

// Evaluate implements loopctl.Judge.
func (j *AnthropicJudge) Evaluate(ctx context.Context, anchor, progress string) (loopctl.JudgeVerdict, error) {
	resp, err := j.client.Chat(ctx, &ChatRequest{
		Messages: []Message{
			{Role: "system", Content: judgeSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("ANCHOR GOAL:\n%s\n\nPROGRESS NOTES:\n%s", anchor, progress)},
		},
		MaxTokens: 8,
	})
	if err != nil {
		return loopctl.JudgeUncertain, err
	}

	switch strings.ToUpper(strings.TrimSpace(resp.Content)) {
	case "COMPLETE":
		return loopctl.JudgeComplete, nil
	case "CONTINUE":
		return loopctl.JudgeContinue, nil
	default:
		return loopctl.JudgeUncertain, nil
	}
}
