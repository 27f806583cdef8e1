package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud", OutputPaths: []string{"stderr"}})
	assert.Error(t, err)
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings("warn", true)
	assert.Equal(t, "warn", cfg.Level)
	assert.True(t, cfg.Development)

	cfg = FromSettings("", false)
	assert.Equal(t, "info", cfg.Level)

	logger, err := New(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger.Logger)
}

func TestComponent(t *testing.T) {
	assert.NotNil(t, Component(nil, "region"))

	core, logs := observer.New(zap.DebugLevel)
	log := Component(zap.New(core), "region", zap.String("state_key", "inventory"))
	log.Info("synced")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "region", entries[0].LoggerName)
	assert.Equal(t, "inventory", entries[0].ContextMap()["state_key"])
}
