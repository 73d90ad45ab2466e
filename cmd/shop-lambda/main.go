// Package main provides a Lambda entry point for the shop.
//
// It serves the same routes as shop-server behind API Gateway (HTTP API,
// payload v2). Background tasks run inline before the response is
// returned, because Lambda freezes the environment afterwards; the webhook
// must therefore be configured with a timeout long enough for a photo to
// be described, hosted and published.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/app"
	"github.com/kalaasaarathi/shopbot/internal/config"
	"github.com/kalaasaarathi/shopbot/internal/logging"
)

func main() {
	logging.Init()
	initStart := time.Now()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	a, err := app.New(context.Background(), cfg, app.Options{
		Name:        "shop-lambda",
		CommitSHA:   commitHash,
		BuildTime:   buildTime,
		InlineTasks: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	log.Debug().Dur("init", time.Since(initStart)).Msg("Cold start complete")

	adapter := httpadapter.NewV2(a.Handler)
	lambda.Start(adapter.ProxyWithContext)
}
