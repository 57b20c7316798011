package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	require.Equal(t, "LOCAL", cfg.EnvType)
	require.Equal(t, "localhost", cfg.DBHost)
	require.Equal(t, "3306", cfg.DBPort)
	require.Equal(t, "8080", cfg.ServerPort)
	require.Equal(t, 2, cfg.RWNFPort)
	require.Equal(t, "auto", cfg.DBMigrationMode)
}

func TestLoadConfigEnvPrefix(t *testing.T) {
	t.Setenv("ENV_TYPE", "SERVER")
	t.Setenv("SERVER_DB_HOST", "db.internal")
	t.Setenv("DB_HOST", "fallback-host")
	t.Setenv("RWN_FPORT", "10")

	cfg := LoadConfig()

	require.Equal(t, "SERVER", cfg.EnvType)
	require.Equal(t, "db.internal", cfg.DBHost)
	require.Equal(t, 10, cfg.RWNFPort)
}

func TestLoadConfigUnprefixedFallback(t *testing.T) {
	t.Setenv("ENV_TYPE", "LOCAL")
	t.Setenv("DB_HOST", "fallback-host")

	cfg := LoadConfig()
	require.Equal(t, "fallback-host", cfg.DBHost)
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{
		DBUser:     "resquser",
		DBPassword: "secret",
		DBHost:     "127.0.0.1",
		DBPort:     "3306",
		DBName:     "resqwave_db",
	}

	dsn := cfg.GetDSN()
	require.Contains(t, dsn, "resquser:secret@tcp(127.0.0.1:3306)/resqwave_db")
	require.Contains(t, dsn, "parseTime=True")
}

func TestGetRedisAddr(t *testing.T) {
	cfg := &Config{RedisHost: "cache.internal", RedisPort: "6380"}
	require.Equal(t, "cache.internal:6380", cfg.GetRedisAddr())
}
