package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"shootflow-backend/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PROVIDER_API_KEY", "test-key")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/shootflow_test")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5, cfg.EditorWorkloadCap)
	assert.Equal(t, 3, cfg.MaxRevisions)
	assert.Equal(t, 3*time.Hour, cfg.ProcessingTimeout)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("PROVIDER_API_KEY", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PROVIDER_API_KEY", "test-key")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/shootflow_test")
	t.Setenv("EDITOR_WORKLOAD_CAP", "2")
	t.Setenv("PROCESSING_TIMEOUT", "45m")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.EditorWorkloadCap)
	assert.Equal(t, 45*time.Minute, cfg.ProcessingTimeout)
}

func TestValidate_WorkloadCap(t *testing.T) {
	t.Setenv("PROVIDER_API_KEY", "test-key")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/shootflow_test")
	t.Setenv("EDITOR_WORKLOAD_CAP", "0")

	_, err := config.Load()
	assert.Error(t, err)
}
