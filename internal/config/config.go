package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Backend selects the message store implementation.
type Backend string

const (
	BackendSupabase Backend = "supabase"
	BackendPostgres Backend = "postgres"
	BackendDynamoDB Backend = "dynamodb"
)

const (
	defaultTable      = "messages"
	defaultListenAddr = ":8080"
	defaultRateRPS    = 5
	defaultRateBurst  = 10
)

// Parameter names, relative to PARAM_PREFIX, that secrets are resolved from.
const (
	paramServiceRoleKey = "/supabase-service-role-key"
	paramDatabaseURL    = "/database-url"
	paramHCaptchaSecret = "/hcaptcha-secret"
)

// Config is the process configuration, read once at startup.
type Config struct {
	Backend            Backend
	SupabaseURL        string
	SupabaseServiceKey string
	MessagesTable      string
	DatabaseURL        string
	ParamPrefix        string
	HCaptchaSecret     string
	LogLevel           string

	// Dev server only.
	ListenAddr   string
	DevRateRPS   float64
	DevRateBurst int
}

// Load reads the configuration from the environment. Only an unrecognised
// STORE_BACKEND is an error; absent store settings are reported by Missing.
func Load() (Config, error) {
	c := Config{
		Backend:            Backend(strings.ToLower(String("STORE_BACKEND", string(BackendSupabase)))),
		SupabaseURL:        firstNonEmpty(os.Getenv("SUPABASE_URL"), os.Getenv("VITE_SUPABASE_URL")),
		SupabaseServiceKey: strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_ROLE_KEY")),
		MessagesTable:      String("MESSAGES_TABLE", defaultTable),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ParamPrefix:        strings.TrimRight(strings.TrimSpace(os.Getenv("PARAM_PREFIX")), "/"),
		HCaptchaSecret:     strings.TrimSpace(os.Getenv("HCAPTCHA_SECRET")),
		LogLevel:           String("LOG_LEVEL", "INFO"),
		ListenAddr:         String("LISTEN_ADDR", defaultListenAddr),
		DevRateRPS:         Float("DEV_RATE_RPS", defaultRateRPS),
		DevRateBurst:       Int("DEV_RATE_BURST", defaultRateBurst),
	}
	switch c.Backend {
	case BackendSupabase, BackendPostgres, BackendDynamoDB:
	default:
		return Config{}, fmt.Errorf("config: unknown STORE_BACKEND %q", c.Backend)
	}
	return c, nil
}

// Missing lists the settings the selected backend needs but does not have.
// The Supabase pair is reported together, matching how it is documented.
func (c Config) Missing() []string {
	switch c.Backend {
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return []string{"SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY"}
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return []string{"DATABASE_URL"}
		}
	}
	return nil
}

// SecretLookup is satisfied by *paramstore.Client.
type SecretLookup interface {
	Lookup(ctx context.Context, name string) (string, bool, error)
}

// ResolveSecrets fills secrets that were not set in the environment from
// PARAM_PREFIX. Environment values always win. Parameters that do not exist
// are left empty.
func (c *Config) ResolveSecrets(ctx context.Context, ps SecretLookup) error {
	if c.ParamPrefix == "" || ps == nil {
		return nil
	}
	targets := []struct {
		suffix string
		dst    *string
	}{
		{paramServiceRoleKey, &c.SupabaseServiceKey},
		{paramDatabaseURL, &c.DatabaseURL},
		{paramHCaptchaSecret, &c.HCaptchaSecret},
	}
	for _, t := range targets {
		if *t.dst != "" {
			continue
		}
		v, ok, err := ps.Lookup(ctx, c.ParamPrefix+t.suffix)
		if err != nil {
			return fmt.Errorf("config: resolve %s: %w", t.suffix, err)
		}
		if ok {
			*t.dst = v
		}
	}
	return nil
}

// String returns the trimmed value of key or def when unset.
func String(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// Int returns a non-negative integer from key; unset or invalid values
// result in def.
func Int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// Float is Int for floating point values. Zero and negative values are kept
// so callers can use them to disable a feature.
func Float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
