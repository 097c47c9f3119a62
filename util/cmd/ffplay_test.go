package cmd

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/agiledragon/gomonkey/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fake(t *testing.T, name string, args ...string) {
	backup := ffplay
	t.Cleanup(func() { ffplay = backup })
	ffplay = func(ctx context.Context, _ string) *exec.Cmd {
		return exec.CommandContext(ctx, name, args...)
	}
}

func TestPlayEnds(t *testing.T) {
	fake(t, "true")
	player := new(FFPlay)
	assert.ErrorIs(t, player.Wait(), ErrIdle)
	require.NoError(t, player.Play(context.Background(), "https://example.com/a"))
	assert.NoError(t, player.Wait())
	assert.ErrorIs(t, player.Stop(), ErrIdle)
}

func TestPlayFailure(t *testing.T) {
	fake(t, "sh", "-c", "echo broken stream >&2; exit 1")
	player := new(FFPlay)
	require.NoError(t, player.Play(context.Background(), "https://example.com/a"))
	assert.EqualError(t, player.Wait(), "broken stream")
}

func TestPlayControls(t *testing.T) {
	fake(t, "sleep", "10")
	player := new(FFPlay)
	require.NoError(t, player.Play(context.Background(), "https://example.com/a"))
	assert.ErrorIs(t, player.Play(context.Background(), "https://example.com/b"), ErrPlaying)
	assert.NoError(t, player.Pause())
	assert.NoError(t, player.Resume())
	assert.NoError(t, player.Stop())
	assert.NoError(t, player.Wait())
}

func TestPlayCancel(t *testing.T) {
	fake(t, "sleep", "10")
	ctx, cancel := context.WithCancel(context.Background())
	player := new(FFPlay)
	require.NoError(t, player.Play(ctx, "https://example.com/a"))
	time.AfterFunc(20*time.Millisecond, cancel)
	assert.NoError(t, player.Wait())
}

func TestAvailable(t *testing.T) {
	patches := gomonkey.ApplyFuncReturn(exec.LookPath, "/usr/bin/ffplay", nil)
	assert.NoError(t, Available())
	patches.Reset()

	defer gomonkey.ApplyFuncReturn(exec.LookPath, "", errors.New("executable file not found in $PATH")).Reset()
	assert.ErrorContains(t, Available(), "install ffmpeg")
}
