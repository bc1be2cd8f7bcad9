package database_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqiexplorer/aqiexplorer/internal/database"
)

func TestConfigFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSL_MODE", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME"} {
		t.Setenv(key, "")
	}

	cfg, err := database.ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "aqiexplorer", cfg.Database)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
}

func TestConfigFromEnv_InvalidPort(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")

	_, err := database.ConfigFromEnv()
	assert.ErrorContains(t, err, "DB_PORT")
}

func TestConfig_ConnectionStringEscapesPassword(t *testing.T) {
	cfg := database.Config{
		Host: "db", Port: 5432, User: "aqi", Password: "p@ss/word",
		Database: "aqiexplorer", SSLMode: "require",
	}
	assert.Equal(t, "postgres://aqi:p%40ss%2Fword@db:5432/aqiexplorer?sslmode=require", cfg.ConnectionString())
}
