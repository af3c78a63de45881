package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/mkrupp/portal-session/internal/infra/config"
)

type testConfig struct {
	EnvConfig

	BaseURL   string        `env:"BASE_URL" default:"http://localhost:5276"`
	Retries   int           `env:"RETRIES" default:"0"`
	Insecure  bool          `env:"INSECURE" default:"false"`
	Timeout   time.Duration `env:"TIMEOUT" default:"10s"`
	NoEnvTag  string
	Store     testStoreConfig `envPrefix:"STORE_"`
	Untouched testStoreConfig
}

type testStoreConfig struct {
	Driver string `env:"DRIVER" default:"sqlite"`
}

func defaults() testConfig {
	return testConfig{
		BaseURL:   "http://localhost:5276",
		Timeout:   10 * time.Second,
		Store:     testStoreConfig{Driver: "sqlite"},
		Untouched: testStoreConfig{Driver: "sqlite"},
	}
}

//nolint:paralleltest
func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		envVars map[string]string
		want    func(*testConfig)
		wantErr bool
	}{
		{
			name:   "uses default values when env vars not set",
			prefix: "PORTAL",
		},
		{
			name:   "reads namespaced variables",
			prefix: "PORTAL",
			envVars: map[string]string{
				"PORTAL_BASE_URL":     "https://portal.example.com",
				"PORTAL_RETRIES":      "3",
				"PORTAL_INSECURE":     "true",
				"PORTAL_TIMEOUT":      "1500ms",
				"PORTAL_STORE_DRIVER": "memory",
			},
			want: func(c *testConfig) {
				c.BaseURL = "https://portal.example.com"
				c.Retries = 3
				c.Insecure = true
				c.Timeout = 1500 * time.Millisecond
				c.Store.Driver = "memory"
			},
		},
		{
			name:   "falls back to shorter namespace",
			prefix: "PORTAL_CLI",
			envVars: map[string]string{
				"PORTAL_BASE_URL": "http://fallback",
			},
			want: func(c *testConfig) {
				c.BaseURL = "http://fallback"
			},
		},
		{
			name:   "prefers more specific prefix",
			prefix: "PORTAL_CLI",
			envVars: map[string]string{
				"PORTAL_TIMEOUT":     "1s",
				"PORTAL_CLI_TIMEOUT": "2s",
			},
			want: func(c *testConfig) {
				c.Timeout = 2 * time.Second
			},
		},
		{
			name:   "nested struct without prefix shares the namespace",
			prefix: "PORTAL",
			envVars: map[string]string{
				"PORTAL_DRIVER": "memory",
			},
			want: func(c *testConfig) {
				c.Untouched.Driver = "memory"
			},
		},
		{
			name:    "fails on invalid int value",
			prefix:  "PORTAL",
			envVars: map[string]string{"PORTAL_RETRIES": "many"},
			wantErr: true,
		},
		{
			name:    "fails on invalid bool value",
			prefix:  "PORTAL",
			envVars: map[string]string{"PORTAL_INSECURE": "maybe"},
			wantErr: true,
		},
		{
			name:    "fails on invalid duration",
			prefix:  "PORTAL",
			envVars: map[string]string{"PORTAL_TIMEOUT": "10"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := &testConfig{}
			err := Parse(context.Background(), cfg, tt.prefix)

			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)

			want := defaults()
			if tt.want != nil {
				tt.want(&want)
			}

			cfg.EnvConfig = EnvConfig{}
			assert.Equal(t, want, *cfg)
		})
	}
}

func TestParse_RequiresEnvConfig(t *testing.T) {
	t.Parallel()

	var plain struct {
		Value string `env:"VALUE" default:"x"`
	}

	err := Parse(context.Background(), &plain, "PORTAL")
	require.ErrorIs(t, err, ErrInvalidConfig)

	err = Parse(context.Background(), testConfig{}, "PORTAL")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

//nolint:paralleltest
func TestParse_MissingRequired(t *testing.T) {
	var cfg struct {
		EnvConfig

		Required string `env:"REQUIRED_VALUE"`
	}

	err := Parse(context.Background(), &cfg, "PORTAL_TEST_MISSING")
	require.ErrorIs(t, err, ErrVarNotSet)
}
