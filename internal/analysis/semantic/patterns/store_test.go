package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestStore_Reload(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	initial := builtin(t)
	store := NewStore(initial, zap.New(core))
	require.Same(t, initial, store.Load())

	t.Run("valid reload swaps", func(t *testing.T) {
		require.NoError(t, store.Reload(false, writeRules(t, customRules)))
		assert.Equal(t, 2, store.Load().Len())
		assert.Equal(t, 1, logs.FilterMessage("Rules reloaded.").Len())
	})

	t.Run("invalid reload keeps previous", func(t *testing.T) {
		before := store.Load()
		err := store.Reload(false, writeRules(t, "version: 1\nrules: [\n"))
		require.Error(t, err)
		assert.Same(t, before, store.Load())

		entries := logs.FilterMessage("Rule reload failed, keeping previous rules.").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	})
}

func TestNewStore_NilLogger(t *testing.T) {
	store := NewStore(nil, nil)
	assert.Nil(t, store.Load())
}
