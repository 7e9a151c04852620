package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/medassist/clinical-portal/internal/agent"
	"github.com/medassist/clinical-portal/internal/triage"
)

// agent-probe exercises the escalation agent backend end to end:
// thresholds, measurements and a dry-run escalation evaluation.
func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	baseURL := os.Getenv("AGENT_BASE_URL")
	authToken := os.Getenv("AGENT_AUTH_TOKEN")

	if baseURL == "" {
		logger.Fatal("Missing agent backend address. Set AGENT_BASE_URL")
	}

	analysisID := 1
	if len(os.Args) > 1 {
		id, perr := strconv.Atoi(os.Args[1])
		if perr != nil {
			logger.Fatal("analysis id must be an integer", zap.String("arg", os.Args[1]))
		}
		analysisID = id
	}

	client, err := agent.NewClient(baseURL, authToken, 15*time.Second, logger)
	if err != nil {
		logger.Fatal("Failed to create agent client", zap.Error(err))
	}

	ctx := context.Background()

	// Test 1: threshold configuration
	logger.Info("=== Fetching critical thresholds ===")
	table := triage.LoadTable(ctx, client, logger)
	for _, rule := range table {
		logger.Info("rule",
			zap.String("pattern", rule.MetricPattern),
			zap.String("operator", rule.Operator),
			zap.Float64("critical_value", rule.CriticalValue),
			zap.String("specialist", rule.Specialist),
		)
	}

	// Test 2: measurement source
	logger.Info("=== Fetching measurements ===", zap.Int("analysis_id", analysisID))
	measurements, err := client.Measurements(ctx, analysisID)
	if err != nil {
		logger.Fatal("Measurement fetch failed", zap.Error(err))
	}

	// Test 3: full escalation evaluation against the live backend
	logger.Info("=== Running escalation evaluation ===")
	evaluator := triage.NewEvaluator(table, logger)
	classifier := triage.NewClassifier(evaluator, logger)
	orchestrator := triage.NewOrchestrator(evaluator, classifier, client, nil, logger)

	result := orchestrator.Evaluate(ctx, analysisID, measurements)

	logger.Info("evaluation complete",
		zap.Bool("has_critical_values", result.HasCriticalValues),
		zap.String("urgency", result.UrgencyLevel.String()),
		zap.Int("critical_count", len(result.CriticalMeasurements)),
	)
	for _, action := range result.RecommendedActions {
		logger.Info("action", zap.String("text", action))
	}
}
