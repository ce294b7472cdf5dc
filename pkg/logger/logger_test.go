package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", *DefaultConfig(), false},
		{"console", Config{Level: "debug", Encoding: "console"}, false},
		{"bad level", Config{Level: "loud", Encoding: "json"}, true},
		{"bad encoding", Config{Level: "info", Encoding: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewMergesDefaults(t *testing.T) {
	cfg := &Config{Level: "warn"}
	l, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, l)
	// caller's config is not rewritten
	assert.Empty(t, cfg.Encoding)

	_, err = New(&Config{Level: "nope"})
	assert.Error(t, err)
}

func TestGlobalLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	SetGlobalLogger(zap.New(core, zap.AddCallerSkip(1)))
	defer SetGlobalLogger(nil)

	Info("fetched", zap.String("key", `["questions"]`))
	Warn("retrying")
	Debug("hidden")

	entries := recorded.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "fetched", entries[0].Message)
	assert.Equal(t, `["questions"]`, entries[0].ContextMap()["key"])
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewNop()
	assert.Equal(t, Logger(l), OrNop(l))
}
