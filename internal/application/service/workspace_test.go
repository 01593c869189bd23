package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspace_Lifecycle(t *testing.T) {
	parent := t.TempDir()

	ws, err := NewWorkspace(parent, 42)
	require.NoError(t, err)
	assert.Equal(t, parent, filepath.Dir(ws.Dir()))
	assert.True(t, strings.HasPrefix(filepath.Base(ws.Dir()), "enrich-job-42-"))

	video := ws.NewFile("video", ".mp4")
	assert.Equal(t, ws.Dir(), filepath.Dir(video))
	assert.True(t, strings.HasPrefix(filepath.Base(video), "video_"))
	assert.True(t, strings.HasSuffix(video, ".mp4"))
	assert.NotEqual(t, video, ws.NewFile("video", ".mp4"))

	require.NoError(t, os.WriteFile(video, []byte("data"), 0o600))
	files, err := ws.Files()
	require.NoError(t, err)
	assert.Len(t, files, 1)

	require.NoError(t, ws.Cleanup())
	require.NoError(t, ws.Cleanup())

	_, err = os.Stat(ws.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestWorkspace_RemoveMissingFile(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), 1)
	require.NoError(t, err)
	defer ws.Cleanup()

	assert.NoError(t, ws.Remove(ws.NewFile("audio", ".wav")))
}
