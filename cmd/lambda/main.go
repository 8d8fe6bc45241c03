package main

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"synergy-backend/infrastructure/config"
	"synergy-backend/infrastructure/di"
)

var (
	// chiLambda wraps the Chi router for AWS Lambda integration
	chiLambda *chiadapter.ChiLambdaV2

	container *di.Container

	coldStart = true
)

// init runs during cold start
func init() {
	coldStartTime := time.Now()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, cfg.InitTimeout+cfg.OperationTimeout)
	defer cancel()
	if err := container.Start(startCtx); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	chiRouter, ok := container.Router.Setup().(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)

	container.Logger.Info("Lambda cold start completed", zap.Duration("duration", time.Since(coldStartTime)))
}

// Handler serves one API Gateway request. Mutations are flushed before
// returning because the execution environment may be frozen afterwards.
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if coldStart {
		container.Logger.Info("Serving first request after cold start",
			zap.String("request_id", req.RequestContext.RequestID))
		coldStart = false
	}

	resp, err := chiLambda.ProxyWithContextV2(ctx, req)

	if container.Writer.Pending() > 0 {
		if result, persistErr := container.Graph.Persist(ctx); persistErr != nil {
			container.Logger.Error("Persist after request failed",
				zap.String("flush_id", result.FlushID),
				zap.Int("pending", result.Pending),
				zap.Error(persistErr))
		}
	}

	return resp, err
}

func main() {
	lambda.Start(Handler)
}
