package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"portfolio-contact/internal/app"
	"portfolio-contact/internal/config"
	"portfolio-contact/internal/logging"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("invalid configuration", "err", err)
	}
	logging.Setup(cfg.LogLevel)

	// ---- Handler ----
	h, cleanup, err := app.Build(ctx, cfg)
	if err != nil {
		logging.Fatal("failed to build handler", "err", err)
	}
	defer cleanup()

	lambda.Start(h.Handle)
}
