package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_Levels(t *testing.T) {
	cases := map[string]zap.AtomicLevel{
		"debug":   zap.NewAtomicLevelAt(zap.DebugLevel),
		"warn":    zap.NewAtomicLevelAt(zap.WarnLevel),
		"error":   zap.NewAtomicLevelAt(zap.ErrorLevel),
		"":        zap.NewAtomicLevelAt(zap.InfoLevel),
		"verbose": zap.NewAtomicLevelAt(zap.InfoLevel),
	}

	for level, want := range cases {
		log, err := New(level, "prod")
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(want.Level()), "level %q", level)
		if want.Level() > zap.DebugLevel {
			assert.False(t, log.Core().Enabled(want.Level()-1), "level %q", level)
		}
	}
}
