package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"portfolio-contact/handler"
	"portfolio-contact/internal/config"
	"portfolio-contact/internal/integrations/hcaptcha"
	"portfolio-contact/internal/integrations/paramstore"
	"portfolio-contact/internal/integrations/supabase"
	"portfolio-contact/internal/repository"
	"portfolio-contact/internal/usecase"
)

// Build constructs the submission handler for cfg. The returned cleanup
// releases long-lived resources such as the Postgres pool and is never nil.
//
// A backend missing its settings still yields a handler; every request then
// fails with the misconfiguration response.
func Build(ctx context.Context, cfg config.Config) (*handler.Handler, func(), error) {
	cleanup := func() {}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	if cfg.ParamPrefix != "" {
		ac, err := loadAWS()
		if err != nil {
			return nil, cleanup, err
		}
		ps, err := paramstore.New(awsssm.NewFromConfig(ac))
		if err != nil {
			return nil, cleanup, fmt.Errorf("app: create SSM client: %w", err)
		}
		if err := cfg.ResolveSecrets(ctx, ps); err != nil {
			return nil, cleanup, err
		}
	}

	var opts []usecase.Option
	var store usecase.MessageStore

	if missing := cfg.Missing(); len(missing) > 0 {
		slog.Warn("message store not configured", "backend", cfg.Backend, "missing", missing)
		opts = append(opts, usecase.WithMissingConfig(missing...))
	} else {
		switch cfg.Backend {
		case config.BackendSupabase:
			c, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.MessagesTable)
			if err != nil {
				return nil, cleanup, fmt.Errorf("app: create supabase client: %w", err)
			}
			store = c
		case config.BackendPostgres:
			pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return nil, cleanup, err
			}
			cleanup = pool.Close
			c, err := repository.NewPostgres(pool, cfg.MessagesTable)
			if err != nil {
				return nil, cleanup, err
			}
			store = c
		case config.BackendDynamoDB:
			ac, err := loadAWS()
			if err != nil {
				return nil, cleanup, err
			}
			c, err := repository.New(awsdynamodb.NewFromConfig(ac), cfg.MessagesTable)
			if err != nil {
				return nil, cleanup, fmt.Errorf("app: create dynamodb client: %w", err)
			}
			store = c
		default:
			return nil, cleanup, fmt.Errorf("app: unknown backend %q", cfg.Backend)
		}
	}

	if cfg.HCaptchaSecret != "" {
		verifier, err := hcaptcha.NewClient(cfg.HCaptchaSecret)
		if err != nil {
			return nil, cleanup, fmt.Errorf("app: create hcaptcha client: %w", err)
		}
		opts = append(opts, usecase.WithCaptcha(verifier))
	}

	svc, err := usecase.NewSubmitService(store, opts...)
	if err != nil {
		return nil, cleanup, fmt.Errorf("app: create submit service: %w", err)
	}
	h, err := handler.NewHandler(svc)
	if err != nil {
		return nil, cleanup, fmt.Errorf("app: create handler: %w", err)
	}

	slog.Info("submission handler ready",
		"backend", cfg.Backend,
		"table", cfg.MessagesTable,
		"captcha", cfg.HCaptchaSecret != "",
	)
	return h, cleanup, nil
}
