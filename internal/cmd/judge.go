package cmd

import (
	"log"
	"os"

	"github.com/rehoboam-dev/rehoboam/internal/config"
	"github.com/rehoboam-dev/rehoboam/internal/llm"
	"github.com/rehoboam-dev/rehoboam/internal/loopctl"
)

// buildJudge constructs the loop controller's optional second opinion from
// JudgeConfig. It returns a nil Judge (not an error) whenever the judge is
// disabled or its API key environment variable is unset, since the judge
// is strictly optional: the textual completion checks stand on their own.
func buildJudge(cfg config.JudgeConfig) loopctl.Judge {
	if !cfg.Enabled {
		return nil
	}
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		log.Printf("[cmd] judge enabled but %s is unset, running without a second opinion", cfg.APIKeyEnv)
		return nil
	}

	j, err := llm.NewAnthropicJudge(llm.APIConfig{
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		MaxTokens:      cfg.MaxTokens,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, apiKey)
	if err != nil {
		log.Printf("[cmd] failed to build judge, running without a second opinion: %v", err)
		return nil
	}
	return j
}
