package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rollcall/internal/engine"
)

func TestPreviewText(t *testing.T) {
	env := newStoreEnv(t)
	seedRoster(t, env)

	out, err := env.run(NewPreviewCommand, "guild-1")
	require.NoError(t, err)
	assert.Contains(t, out, "7 blocks (1 groups, 2 members)")
	assert.Contains(t, out, "--- [0]")
	assert.Contains(t, out, "--- [6]")
	assert.Contains(t, out, engine.DefaultTitle)
	assert.Contains(t, out, "Kell")
}

func TestPreviewJSON(t *testing.T) {
	env := newStoreEnv(t)
	env.opts.Format = "json"
	seedRoster(t, env)

	out, err := env.run(NewPreviewCommand, "guild-1")
	require.NoError(t, err)

	var resp struct {
		Status string  `json:"status"`
		Data   Preview `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "guild-1", resp.Data.CommunityID)
	require.Len(t, resp.Data.Blocks, 7)
	for i, b := range resp.Data.Blocks {
		assert.Equal(t, i, b.Index)
	}
	assert.Empty(t, resp.Data.Blocks[0].Attachment, "no banner configured")
}

func TestPreviewEmptyRoster(t *testing.T) {
	env := newStoreEnv(t)

	out, err := env.run(NewPreviewCommand, "guild-1")
	require.NoError(t, err)
	assert.Contains(t, out, "3 blocks (0 groups, 0 members)")
}

func TestPreviewRequiresCommunity(t *testing.T) {
	env := newStoreEnv(t)
	cmd := NewPreviewCommand(env.opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	require.Error(t, cmd.Execute())
}
