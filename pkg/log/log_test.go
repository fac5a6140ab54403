package log

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestGetLoggerCarriesRequestId(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	ctx := context.WithValue(context.Background(), CtxRequestId, "req-1")
	GetLogger(ctx).Info("hello")
	NewLogger().Info("plain")

	entries := hook.AllEntries()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "req-1", entries[0].Data[CtxRequestId])
		assert.NotContains(t, entries[1].Data, CtxRequestId)
	}
}

func TestInitLogFallsBackToInfo(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)

	InitLog("debug")
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	InitLog("loud")
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}

type role string

func (r role) String() string { return string(r) }

func TestComponentAndRoleFields(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	ctx := context.WithValue(context.Background(), CtxRequestId, "req-2")
	engine := WithComponent(GetLogger(ctx), "engine")
	ForRole(engine, role("lateral")).Warn("stalled")

	entry := hook.LastEntry()
	if assert.NotNil(t, entry) {
		assert.Equal(t, "engine", entry.Data[FieldComponent])
		assert.Equal(t, "lateral", entry.Data[FieldRole])
		assert.Equal(t, "req-2", entry.Data[CtxRequestId])
	}
}
