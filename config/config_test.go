package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.HTTPAddr)
	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, "gorm.db", cfg.SQLitePath)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 10.0, cfg.AuthRate)
	assert.Equal(t, 20, cfg.AuthBurst)
}

func TestNew_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/tasks")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("CONSUL_ADDR", "127.0.0.1:8500")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "postgres://u:p@localhost/tasks", cfg.DatabaseURL)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, "127.0.0.1:8500", cfg.ConsulAddr)
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing secret",
			env:  map[string]string{"JWT_SECRET": ""},
		},
		{
			name: "bad duration",
			env:  map[string]string{"JWT_SECRET": "x", "TOKEN_TTL": "soon"},
		},
		{
			name: "non-positive ttl",
			env:  map[string]string{"JWT_SECRET": "x", "TOKEN_TTL": "0s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := New()
			assert.Error(t, err)
		})
	}
}
