package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/dental-clinic-api/internal/config"
)

func TestRun_ReturnsConnectionError(t *testing.T) {
	cfg := config.Config{
		PostgresDSN:          "postgres://%zz",
		ClinicLocation:       time.UTC,
		NotificationInterval: time.Minute,
	}

	err := run(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres connection")
}
