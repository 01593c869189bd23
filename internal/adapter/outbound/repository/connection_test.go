package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:           "postgres",
		Port:           5432,
		Database:       "analytics",
		Username:       "enricher",
		Password:       "secret",
		Schema:         "public",
		MaxConnections: 5,
		MinConnections: 1,
	}
}

func TestDatabaseConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *DatabaseConfig)
		wantErr string
	}{
		{"valid", func(*DatabaseConfig) {}, ""},
		{"missing host", func(c *DatabaseConfig) { c.Host = "" }, "host is required"},
		{"bad port", func(c *DatabaseConfig) { c.Port = 0 }, "port must be between 1 and 65535"},
		{"missing database", func(c *DatabaseConfig) { c.Database = "" }, "database is required"},
		{"missing user", func(c *DatabaseConfig) { c.Username = "" }, "username is required"},
		{"missing schema", func(c *DatabaseConfig) { c.Schema = "" }, "schema is required"},
		{"min above max", func(c *DatabaseConfig) { c.MinConnections = 6 }, "min connections cannot exceed max connections"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDatabaseConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewPoolConfig_PoolBounds(t *testing.T) {
	poolConfig, err := NewPoolConfig(validDatabaseConfig())
	require.NoError(t, err)

	assert.Equal(t, int32(5), poolConfig.MaxConns)
	assert.Equal(t, int32(1), poolConfig.MinConns)
	assert.Equal(t, "postgres", poolConfig.ConnConfig.Host)
	assert.Equal(t, "analytics", poolConfig.ConnConfig.Database)
	assert.Equal(t, "public", poolConfig.ConnConfig.RuntimeParams["search_path"])
}

func TestNewDatabaseConnection_InvalidConfig(t *testing.T) {
	cfg := validDatabaseConfig()
	cfg.Host = ""

	pool, err := NewDatabaseConnection(context.Background(), cfg)
	assert.Error(t, err)
	assert.Nil(t, pool)
}

func TestDatabaseHealthChecker_NilPool(t *testing.T) {
	checker := NewDatabaseHealthChecker(nil)
	assert.False(t, checker.IsHealthy(context.Background()))
	assert.Nil(t, checker.GetMetrics(context.Background()))
}
