package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rollcall/internal/roster"
)

func TestSnapshot_Empty(t *testing.T) {
	s := createTestStore(t)

	snap, err := s.Snapshot(context.Background(), "guild")
	require.NoError(t, err)
	assert.NotNil(t, snap.Groups)
	assert.Empty(t, snap.Groups)
	assert.Equal(t, 0, snap.MemberCount())
}

func TestSnapshot_DefinitionOrder(t *testing.T) {
	s := createTestStore(t)
	a := mustCreateGroup(t, s, "Alpha", 9)
	b := mustCreateGroup(t, s, "Bravo", 1)
	mustCreateGroup(t, s, "Charlie", 5)
	mustAssign(t, s, "3", b.ID)
	mustAssign(t, s, "1", a.ID)
	mustAssign(t, s, "2", a.ID)

	snap, err := s.Snapshot(context.Background(), "guild")
	require.NoError(t, err)

	require.Len(t, snap.Groups, 3)
	assert.Equal(t, "Alpha", snap.Groups[0].Group.Name)
	assert.Equal(t, "Bravo", snap.Groups[1].Group.Name)
	assert.Equal(t, "Charlie", snap.Groups[2].Group.Name)

	require.Len(t, snap.Groups[0].Members, 2)
	assert.Equal(t, "1", snap.Groups[0].Members[0].PersonID)
	assert.Equal(t, "2", snap.Groups[0].Members[1].PersonID)
	require.Len(t, snap.Groups[1].Members, 1)
	assert.Empty(t, snap.Groups[2].Members, "empty groups are kept")
	assert.Equal(t, 3, snap.MemberCount())
}

func TestSnapshot_PriorityOrder(t *testing.T) {
	s := createTestStore(t, WithGroupOrder(roster.OrderPriority))
	mustCreateGroup(t, s, "Alpha", 9)
	mustCreateGroup(t, s, "Bravo", 1)
	mustCreateGroup(t, s, "Charlie", 1)

	snap, err := s.Snapshot(context.Background(), "guild")
	require.NoError(t, err)

	require.Len(t, snap.Groups, 3)
	assert.Equal(t, "Bravo", snap.Groups[0].Group.Name)
	assert.Equal(t, "Charlie", snap.Groups[1].Group.Name, "ties fall back to creation order")
	assert.Equal(t, "Alpha", snap.Groups[2].Group.Name)
}

func TestSnapshot_MemberFields(t *testing.T) {
	s := createTestStore(t)
	g := mustCreateGroup(t, s, "Alpha", 1)
	_, err := s.AssignMember(context.Background(), roster.Member{
		PersonID:          "555",
		PersonDisplayName: "bob#0001",
		ProfileName:       "Bob",
		ProfileReference:  "bob on steam",
		GroupID:           &g.ID,
	})
	require.NoError(t, err)

	snap, err := s.Snapshot(context.Background(), "guild")
	require.NoError(t, err)
	require.Len(t, snap.Groups, 1)
	require.Len(t, snap.Groups[0].Members, 1)

	m := snap.Groups[0].Members[0]
	assert.Equal(t, "555", m.PersonID)
	assert.Equal(t, "bob#0001", m.PersonDisplayName)
	assert.Equal(t, "Bob", m.ProfileName)
	assert.Equal(t, "bob on steam", m.ProfileReference)
	require.NotNil(t, m.GroupID)
	assert.Equal(t, g.ID, *m.GroupID)
}
