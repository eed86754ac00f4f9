package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rollcall/internal/roster"
)

func TestGetSettings_Unconfigured(t *testing.T) {
	s := createTestStore(t)

	st, err := s.GetSettings(context.Background(), "guild-1")
	require.NoError(t, err)
	assert.Equal(t, "guild-1", st.CommunityID)
	assert.False(t, st.HasDisplay())
	assert.False(t, st.HasLog())
}

func TestSetDestination_Upsert(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetDestination(ctx, roster.Settings{
		CommunityID:      "guild-1",
		DisplaySurfaceID: "chan-display",
		LogSurfaceID:     "chan-log",
	}))

	st, err := s.GetSettings(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, "chan-display", st.DisplaySurfaceID)
	assert.Equal(t, "chan-log", st.LogSurfaceID)

	// Omitting the log surface clears it.
	require.NoError(t, s.SetDestination(ctx, roster.Settings{
		CommunityID:      "guild-1",
		DisplaySurfaceID: "chan-other",
	}))

	st, err = s.GetSettings(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, "chan-other", st.DisplaySurfaceID)
	assert.False(t, st.HasLog())
}

func TestSetDestination_RequiresCommunity(t *testing.T) {
	s := createTestStore(t)

	err := s.SetDestination(context.Background(), roster.Settings{DisplaySurfaceID: "x"})
	assert.Error(t, err)
}

func TestListSettings_OnlyConfiguredDisplays(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetDestination(ctx, roster.Settings{CommunityID: "b", DisplaySurfaceID: "2"}))
	require.NoError(t, s.SetDestination(ctx, roster.Settings{CommunityID: "a", DisplaySurfaceID: "1"}))
	require.NoError(t, s.SetDestination(ctx, roster.Settings{CommunityID: "c", LogSurfaceID: "9"}))

	all, err := s.ListSettings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].CommunityID)
	assert.Equal(t, "b", all[1].CommunityID)
}

func TestGrants(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	g := roster.Grant{CommunityID: "guild", RoleID: "role-1"}

	added, err := s.AddGrant(ctx, g)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddGrant(ctx, g)
	require.NoError(t, err)
	assert.False(t, added, "duplicate grant is a no-op")

	_, err = s.AddGrant(ctx, roster.Grant{CommunityID: "guild", RoleID: "role-0"})
	require.NoError(t, err)

	grants, err := s.ListGrants(ctx, "guild")
	require.NoError(t, err)
	require.Len(t, grants, 2)
	assert.Equal(t, "role-0", grants[0].RoleID)

	removed, err := s.RemoveGrant(ctx, g)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.RemoveGrant(ctx, g)
	require.NoError(t, err)
	assert.False(t, removed)

	grants, err = s.ListGrants(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, grants)
}
