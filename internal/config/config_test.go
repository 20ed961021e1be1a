package config

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"STORE_BACKEND", "SUPABASE_URL", "VITE_SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY",
	"MESSAGES_TABLE", "DATABASE_URL", "PARAM_PREFIX", "HCAPTCHA_SECRET", "LOG_LEVEL",
	"LISTEN_ADDR", "DEV_RATE_RPS", "DEV_RATE_BURST",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendSupabase, c.Backend)
	require.Equal(t, "messages", c.MessagesTable)
	require.Equal(t, "INFO", c.LogLevel)
	require.Equal(t, ":8080", c.ListenAddr)
	require.Equal(t, float64(5), c.DevRateRPS)
	require.Equal(t, 10, c.DevRateBurst)
	require.Equal(t, []string{"SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY"}, c.Missing())
}

func TestLoad_SupabaseURLFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("VITE_SUPABASE_URL", "https://vite.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "key")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://vite.supabase.co", c.SupabaseURL)
	require.Empty(t, c.Missing())

	t.Setenv("SUPABASE_URL", "https://primary.supabase.co")
	c, err = Load()
	require.NoError(t, err)
	require.Equal(t, "https://primary.supabase.co", c.SupabaseURL)
}

func TestMissing(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want []string
	}{
		{"supabase url only", Config{Backend: BackendSupabase, SupabaseURL: "u"}, []string{"SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY"}},
		{"supabase key only", Config{Backend: BackendSupabase, SupabaseServiceKey: "k"}, []string{"SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY"}},
		{"supabase complete", Config{Backend: BackendSupabase, SupabaseURL: "u", SupabaseServiceKey: "k"}, nil},
		{"postgres missing", Config{Backend: BackendPostgres}, []string{"DATABASE_URL"}},
		{"postgres complete", Config{Backend: BackendPostgres, DatabaseURL: "postgres://x"}, nil},
		{"dynamodb", Config{Backend: BackendDynamoDB}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.cfg.Missing())
		})
	}
}

func TestLoad_Backend(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "DynamoDB")
	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendDynamoDB, c.Backend)

	t.Setenv("STORE_BACKEND", "mysql")
	_, err = Load()
	require.ErrorContains(t, err, "mysql")
}

func TestLoad_DevRate(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEV_RATE_RPS", "0")
	t.Setenv("DEV_RATE_BURST", "noise")
	c, err := Load()
	require.NoError(t, err)
	require.Zero(t, c.DevRateRPS)
	require.Equal(t, 10, c.DevRateBurst)

	t.Setenv("DEV_RATE_RPS", "0.5")
	t.Setenv("DEV_RATE_BURST", "-1")
	c, err = Load()
	require.NoError(t, err)
	require.Equal(t, 0.5, c.DevRateRPS)
	require.Equal(t, 10, c.DevRateBurst)
}

type fakeLookup struct {
	values map[string]string
	err    error
	asked  []string
}

func (f *fakeLookup) Lookup(_ context.Context, name string) (string, bool, error) {
	f.asked = append(f.asked, name)
	if f.err != nil {
		return "", false, f.err
	}
	v, ok := f.values[name]
	return v, ok, nil
}

func TestResolveSecrets_FillsOnlyEmpty(t *testing.T) {
	ps := &fakeLookup{values: map[string]string{
		"/contact/supabase-service-role-key": "from-ssm",
		"/contact/hcaptcha-secret":           "captcha-ssm",
	}}
	c := Config{ParamPrefix: "/contact", DatabaseURL: "postgres://env"}

	require.NoError(t, c.ResolveSecrets(context.Background(), ps))
	require.Equal(t, "from-ssm", c.SupabaseServiceKey)
	require.Equal(t, "captcha-ssm", c.HCaptchaSecret)
	require.Equal(t, "postgres://env", c.DatabaseURL)
	require.NotContains(t, ps.asked, "/contact/database-url")
}

func TestResolveSecrets_NoPrefix(t *testing.T) {
	ps := &fakeLookup{}
	c := Config{}
	require.NoError(t, c.ResolveSecrets(context.Background(), ps))
	require.Empty(t, ps.asked)
}

func TestResolveSecrets_Error(t *testing.T) {
	c := Config{ParamPrefix: "/contact"}
	err := c.ResolveSecrets(context.Background(), &fakeLookup{err: errors.New("AccessDeniedException")})
	require.ErrorContains(t, err, "AccessDeniedException")
}

func TestLoad_ParamPrefixTrimmed(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARAM_PREFIX", " /contact/ ")
	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/contact", c.ParamPrefix)
}
