package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/user"
)

func TestRollbarLogger(t *testing.T) {
	conf := core.NewConfig()
	conf.TestMode = true

	obs, logs := observer.New(zapcore.DebugLevel)
	logger := NewRollbarLogger(zap.New(obs), conf)
	logger.Enable(false)

	usr := user.User{ID: "u-1", Username: "boss", Email: "boss@kcci.example.com"}
	other := user.User{ID: "u-2", Username: "other"}
	logger.Error("settling", errors.New("disk full"), map[string]interface{}{"reviewer_id": "r-1"}, usr, other, 42)
	logger.Info("plain")

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, "settling", entries[0].Message)

		ctx := entries[0].ContextMap()
		assert.Equal(t, "disk full", ctx["error0"])
		assert.Equal(t, map[string]interface{}{"reviewer_id": "r-1"}, ctx["extras"])
		assert.Equal(t, "u-1", ctx["user_id"])
		assert.Equal(t, "boss", ctx["username"])
		assert.EqualValues(t, 42, ctx["arg4"])

		assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
		assert.Empty(t, entries[1].Context)
	}
}
