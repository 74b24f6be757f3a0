package storage

import (
	"os"
	"path/filepath"
	"testing"

	"babywatch/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalAudioStore_Save(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalAudioStore(dir, zap.NewNop())
	require.NoError(t, err)

	ownerID := uuid.NewString()
	url, err := store.Save(ownerID, "recording.wav", []byte("audio-bytes"))

	require.NoError(t, err)
	assert.Contains(t, url, "audio_"+ownerID)
	assert.Equal(t, ".wav", filepath.Ext(url))

	data, err := os.ReadFile(url)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-bytes"), data)
}

func TestLocalAudioStore_InvalidExtension(t *testing.T) {
	store, err := NewLocalAudioStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	url, err := store.Save(uuid.NewString(), "malware.exe", []byte("nope"))

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, url)
}

func TestLocalAudioStore_UppercaseExtension(t *testing.T) {
	store, err := NewLocalAudioStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	url, err := store.Save(uuid.NewString(), "RECORDING.WAV", []byte("audio"))

	require.NoError(t, err)
	assert.Equal(t, ".wav", filepath.Ext(url))
}

func TestNewLocalAudioStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")

	_, err := NewLocalAudioStore(dir, zap.NewNop())

	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
