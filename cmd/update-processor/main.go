package main

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/taxrates/taxrates-api/internal/app"
	"github.com/taxrates/taxrates-api/internal/config"
	"github.com/taxrates/taxrates-api/internal/logger"
	"github.com/taxrates/taxrates-api/internal/services"
)

// Processor runs the scheduled update pipeline.
type Processor struct {
	app *app.Application
}

// HandleRequest runs one update. Needs-review and failed gate outcomes are
// reported through the notifier, not as Lambda errors; only stage errors
// fail the invocation.
func (p *Processor) HandleRequest(ctx context.Context) (*services.PipelineResult, error) {
	logger.Info("Starting scheduled update")

	pipeline, err := p.app.Pipeline(ctx)
	if err != nil {
		return nil, fmt.Errorf("HandleRequest: failed to build pipeline: %w", err)
	}
	defer func() {
		if err := p.app.Close(); err != nil {
			logger.Warn("Failed to close archive", zap.Error(err))
		}
	}()

	result, err := pipeline.Run(ctx)
	p.app.WriteMetrics()
	if err != nil {
		return result, fmt.Errorf("HandleRequest: update run failed: %w", err)
	}

	logger.Info("Scheduled update finished",
		zap.String("run_id", result.RunID.String()),
		zap.String("outcome", result.Outcome))
	return result, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logger.InitLogger(cfg.Stage)
	logger.Info("Lambda Cold Start: Initializing update processor", zap.String("stage", cfg.Stage))
	defer func() {
		_ = logger.Sync()
	}()

	a, err := app.New(context.Background(), cfg, nil)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	p := &Processor{app: a}
	lambda.Start(p.HandleRequest)
}
