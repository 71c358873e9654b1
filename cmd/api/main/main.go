//go:build lambda
// +build lambda

package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/davecgh/go-spew/spew"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taxrates/taxrates-api/internal/app"
	"github.com/taxrates/taxrates-api/internal/config"
	"github.com/taxrates/taxrates-api/internal/logger"
	"github.com/taxrates/taxrates-api/internal/middleware"
	"github.com/taxrates/taxrates-api/internal/server"
)

// @title           taxrates-us API
// @version         0.3.0
// @description     US sales tax rate lookup by ZIP code, state, city and county.

// @license.name  MIT

// @BasePath  /api

var ginLambda *ginadapter.GinLambda

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	logger.InitLogger(cfg.Stage)
	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	// Each execution environment loads the catalog once at cold start.
	holder := a.Holder()
	if _, err := holder.Reload(ctx); err != nil {
		logger.Fatal("Failed to load committed data", zap.Error(err))
	}

	r := server.NewRouter(server.Options{
		Rates:   a.RateService(holder),
		Holder:  holder,
		Metrics: a.Metrics,
		Limiter: middleware.NewRateLimiter(cfg.RateLimitMinute, cfg.RateLimitHour, middleware.WithLimiterMetrics(a.Metrics)),
	})
	ginLambda = ginadapter.New(r)
}

func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger.Debug("Received Lambda request",
		zap.String("path", req.Path),
		zap.Any("request", spew.Sdump(req)),
	)

	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	defer logger.Sync()
	lambda.Start(Handler)
}
