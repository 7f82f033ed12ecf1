package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/delivery-app/lifecycle"
)

func TestSessionPersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	s := NewSession(FileStore{Dir: dir})
	require.NoError(t, s.Restore(), "nothing stored yet")
	assert.False(t, s.Authenticated())

	require.NoError(t, s.Set("tok", Profile{UserID: 3, Name: "Ana", Role: "rider"}))
	_, err := os.Stat(filepath.Join(dir, SessionKey+".json"))
	require.NoError(t, err)

	restored := NewSession(FileStore{Dir: dir})
	require.NoError(t, restored.Restore())
	assert.Equal(t, "tok", restored.Token())
	assert.Equal(t, "Ana", restored.Profile().Name)
	actor, ok := restored.Actor()
	require.True(t, ok)
	assert.Equal(t, lifecycle.ActorRider, actor)
	assert.Equal(t, uint(3), restored.Identity().UserID)

	require.NoError(t, restored.Clear())
	again := NewSession(FileStore{Dir: dir})
	require.NoError(t, again.Restore())
	assert.False(t, again.Authenticated())
	_, ok = again.Actor()
	assert.False(t, ok)
}

func TestSessionRejectsCorruptStore(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(SessionKey, []byte("{not json")))
	assert.Error(t, NewSession(store).Restore())
}
