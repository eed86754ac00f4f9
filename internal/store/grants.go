package store

import (
	"context"
	"fmt"

	"github.com/roach88/rollcall/internal/roster"
)

// AddGrant records a role grant. Returns false if it already existed.
func (s *Store) AddGrant(ctx context.Context, g roster.Grant) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO access_grants (community_id, role_id) VALUES (?, ?)
		ON CONFLICT(community_id, role_id) DO NOTHING
	`, g.CommunityID, g.RoleID)
	if err != nil {
		return false, fmt.Errorf("add grant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add grant: rows affected: %w", err)
	}
	return affected > 0, nil
}

// RemoveGrant deletes a role grant. Returns false if it did not exist.
func (s *Store) RemoveGrant(ctx context.Context, g roster.Grant) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM access_grants WHERE community_id = ? AND role_id = ?
	`, g.CommunityID, g.RoleID)
	if err != nil {
		return false, fmt.Errorf("remove grant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove grant: rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListGrants returns the grants of a community ordered by role id.
func (s *Store) ListGrants(ctx context.Context, communityID string) ([]roster.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT community_id, role_id FROM access_grants
		WHERE community_id = ?
		ORDER BY role_id ASC
	`, communityID)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	grants := []roster.Grant{}
	for rows.Next() {
		var g roster.Grant
		if err := rows.Scan(&g.CommunityID, &g.RoleID); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return grants, nil
}
