package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/tablehand/internal/util"
	"github.com/jmcleod/tablehand/storage"
	"github.com/jmcleod/tablehand/storage/memory"
)

var fastParams = util.Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1}

func newSlots(t *testing.T) (*storage.Slots, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	slots, err := storage.OpenSlots(repo, "storage passphrase", fastParams)
	require.NoError(t, err)
	t.Cleanup(slots.Close)
	return slots, repo
}

func TestSlotsCredential(t *testing.T) {
	slots, repo := newSlots(t)

	_, err := slots.LoadCredential()
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, slots.SaveCredential("token-1"))
	got, err := slots.LoadCredential()
	require.NoError(t, err)
	assert.Equal(t, "token-1", got)

	// Stored value is sealed, never the raw token.
	env, err := repo.Get(storage.Namespace, storage.SlotAccessCredential)
	require.NoError(t, err)
	assert.NotContains(t, string(env.Ciphertext), "token-1")

	require.NoError(t, slots.ClearCredential())
	require.NoError(t, slots.ClearCredential(), "clearing an empty slot is not an error")
	_, err = slots.LoadCredential()
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSlotsReturnPath(t *testing.T) {
	slots, _ := newSlots(t)

	path, err := slots.TakeReturnPath()
	require.NoError(t, err)
	assert.Empty(t, path)

	require.NoError(t, slots.SaveReturnPath("/tables?area=terrace"))
	path, err = slots.TakeReturnPath()
	require.NoError(t, err)
	assert.Equal(t, "/tables?area=terrace", path)

	path, err = slots.TakeReturnPath()
	require.NoError(t, err)
	assert.Empty(t, path, "return path is consumed on read")
}

func TestSlotsReopenWithSamePassphrase(t *testing.T) {
	repo := memory.NewRepository()
	first, err := storage.OpenSlots(repo, "storage passphrase", fastParams)
	require.NoError(t, err)
	require.NoError(t, first.SaveCredential("token-2"))
	first.Close()

	second, err := storage.OpenSlots(repo, "storage passphrase", fastParams)
	require.NoError(t, err)
	defer second.Close()
	got, err := second.LoadCredential()
	require.NoError(t, err)
	assert.Equal(t, "token-2", got)

	wrong, err := storage.OpenSlots(repo, "another passphrase", fastParams)
	require.NoError(t, err)
	defer wrong.Close()
	_, err = wrong.LoadCredential()
	require.Error(t, err)
	require.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestSlotsSwappedEnvelopeRejected(t *testing.T) {
	slots, repo := newSlots(t)
	require.NoError(t, slots.SaveReturnPath("/sales"))

	env, err := repo.Get(storage.Namespace, storage.SlotReturnPath)
	require.NoError(t, err)
	require.NoError(t, repo.Put(storage.Namespace, storage.SlotAccessCredential, env))

	_, err = slots.LoadCredential()
	require.Error(t, err)
}

func TestSlotsClosed(t *testing.T) {
	slots, _ := newSlots(t)
	slots.Close()
	slots.Close()
	require.Error(t, slots.SaveCredential("x"))
}
