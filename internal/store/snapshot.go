package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/rollcall/internal/roster"
)

// Snapshot reads the roster in render order: groups by the configured group
// order, members by insertion order within each group. Groups without
// members are included with an empty member list.
//
// The roster is deployment-wide; communityID only scopes logging by callers.
// Reads are not isolated from concurrent writes: a later pass re-converges.
func (s *Store) Snapshot(ctx context.Context, communityID string) (roster.Snapshot, error) {
	orderBy := "g.id ASC"
	if s.order == roster.OrderPriority {
		orderBy = "g.priority ASC, g.id ASC"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.priority,
		       m.id, m.person_id, m.person_display_name, m.profile_name, m.profile_reference
		FROM groups g
		LEFT JOIN members m ON m.group_id = g.id
		ORDER BY `+orderBy+`, m.id ASC
	`)
	if err != nil {
		return roster.Snapshot{}, fmt.Errorf("snapshot %s: %w", communityID, err)
	}
	defer rows.Close()

	snap := roster.Snapshot{Groups: []roster.GroupEntry{}}
	for rows.Next() {
		var (
			g                                roster.Group
			memberID                         sql.NullInt64
			personID, displayName, name, ref sql.NullString
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.Priority,
			&memberID, &personID, &displayName, &name, &ref); err != nil {
			return roster.Snapshot{}, fmt.Errorf("scan snapshot row: %w", err)
		}

		n := len(snap.Groups)
		if n == 0 || snap.Groups[n-1].Group.ID != g.ID {
			snap.Groups = append(snap.Groups, roster.GroupEntry{Group: g, Members: []roster.Member{}})
			n++
		}

		if !memberID.Valid {
			continue
		}
		groupID := g.ID
		snap.Groups[n-1].Members = append(snap.Groups[n-1].Members, roster.Member{
			ID:                memberID.Int64,
			PersonID:          personID.String,
			PersonDisplayName: displayName.String,
			ProfileName:       name.String,
			ProfileReference:  ref.String,
			GroupID:           &groupID,
		})
	}
	if err := rows.Err(); err != nil {
		return roster.Snapshot{}, fmt.Errorf("iterate snapshot: %w", err)
	}

	return snap, nil
}
