package telegram

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNotifier_Announce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.access.SyncAdmins(context.Background(), []int64{adminID, 9}))

	NewNotifier(f.client, f.access, fast, zap.NewNop()).Announce(context.Background())

	assert.Equal(t, []string{startupNotice}, f.client.texts(adminID))
	assert.Equal(t, []string{startupNotice}, f.client.texts(9))
}

func TestSetupCommands(t *testing.T) {
	f := newFixture(t)

	SetupCommands(context.Background(), f.client, f.access, zap.NewNop())

	require.Len(t, f.client.requests, 2)
	common, ok := f.client.requests[0].(tgbotapi.SetMyCommandsConfig)
	require.True(t, ok)
	assert.Nil(t, common.Scope)
	assert.Len(t, common.Commands, len(commonCommands))

	scoped, ok := f.client.requests[1].(tgbotapi.SetMyCommandsConfig)
	require.True(t, ok)
	require.NotNil(t, scoped.Scope)
	assert.Equal(t, adminID, scoped.Scope.ChatID)
	assert.Len(t, scoped.Commands, len(commonCommands)+len(adminCommands))
	assert.Equal(t, "users", scoped.Commands[len(scoped.Commands)-1].Command)
}

func TestNotifier_UndeliverableAdminDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.client.sendErr = &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}

	f.say(strangerID, "/mellon")

	pending, err := f.access.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, strangerID, pending[0].ID)
}
