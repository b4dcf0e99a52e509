package config

import (
	"testing"

	"gocausal/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("GOCAUSAL_PARALLELISM", "")
	t.Setenv("GOCAUSAL_METRICS_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 1, cfg.Engine.Parallelism)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Empty(t, cfg.Metrics.File)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://calls@localhost/team?sslmode=disable")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GOCAUSAL_PARALLELISM", "4")
	t.Setenv("GOCAUSAL_METRICS_FILE", "/var/lib/node_exporter/gocausal.prom")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 4, cfg.Engine.Parallelism)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "/var/lib/node_exporter/gocausal.prom", cfg.Metrics.File)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}},
		{"zero parallelism", map[string]string{"GOCAUSAL_PARALLELISM": "0"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "VERBOSE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv("DB_DRIVER", "")
			t.Setenv("LOG_LEVEL", "")
			t.Setenv("GOCAUSAL_PARALLELISM", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
