package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nhle/audit-mailer/internal/model"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		enabled zapcore.Level
		wantErr bool
	}{
		{name: "defaults", opts: Options{}, enabled: zapcore.InfoLevel},
		{name: "debug console", opts: Options{Level: "DEBUG", Format: "console"}, enabled: zapcore.DebugLevel},
		{name: "warn json", opts: Options{Level: "warn", Format: "json"}, enabled: zapcore.WarnLevel},
		{name: "bad level", opts: Options{Level: "loud"}, wantErr: true},
		{name: "bad format", opts: Options{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			core := logger.Desugar().Core()
			assert.True(t, core.Enabled(tt.enabled))
			if tt.enabled > zapcore.DebugLevel {
				assert.False(t, core.Enabled(tt.enabled-1))
			}
		})
	}
}

func TestNewTestLogger(t *testing.T) {
	require.NotNil(t, NewTestLogger())
}

func TestItemFields(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	logger := zap.New(core).Sugar()

	logger.Infow("dispatched", ItemFields(model.DispatchItem{Position: 4, ClientID: "123"})...)

	entries := recorded.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.EqualValues(t, 4, ctx["row"])
	assert.Equal(t, "123", ctx["client_id"])
}

func TestFromConfig(t *testing.T) {
	assert.Equal(t, Options{Level: "debug", Format: "json"}, FromConfig(model.LogConfig{Level: "debug", Format: "json"}))
}
