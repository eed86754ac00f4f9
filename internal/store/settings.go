package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rollcall/internal/roster"
)

// SetDestination upserts the display and log surfaces for a community.
// An empty LogSurfaceID clears the log surface.
func (s *Store) SetDestination(ctx context.Context, st roster.Settings) error {
	if st.CommunityID == "" {
		return fmt.Errorf("set destination: community id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO per_destination_settings (community_id, display_surface_id, log_surface_id)
		VALUES (?, ?, ?)
		ON CONFLICT(community_id) DO UPDATE SET
			display_surface_id = excluded.display_surface_id,
			log_surface_id = excluded.log_surface_id
	`, st.CommunityID, nullString(st.DisplaySurfaceID), nullString(st.LogSurfaceID))
	if err != nil {
		return fmt.Errorf("set destination: %w", err)
	}
	return nil
}

// GetSettings returns the settings for a community.
// A community with no row yields Settings with only CommunityID set and no
// error: an unconfigured destination is not a failure.
func (s *Store) GetSettings(ctx context.Context, communityID string) (roster.Settings, error) {
	var display, logSurface sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT display_surface_id, log_surface_id
		FROM per_destination_settings WHERE community_id = ?
	`, communityID).Scan(&display, &logSurface)
	if errors.Is(err, sql.ErrNoRows) {
		return roster.Settings{CommunityID: communityID}, nil
	}
	if err != nil {
		return roster.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return roster.Settings{
		CommunityID:      communityID,
		DisplaySurfaceID: display.String,
		LogSurfaceID:     logSurface.String,
	}, nil
}

// ListSettings returns every community that has a display surface, ordered
// by community id.
func (s *Store) ListSettings(ctx context.Context) ([]roster.Settings, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT community_id, display_surface_id, log_surface_id
		FROM per_destination_settings
		WHERE display_surface_id IS NOT NULL AND display_surface_id != ''
		ORDER BY community_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := []roster.Settings{}
	for rows.Next() {
		var (
			st                  roster.Settings
			display, logSurface sql.NullString
		)
		if err := rows.Scan(&st.CommunityID, &display, &logSurface); err != nil {
			return nil, fmt.Errorf("scan settings: %w", err)
		}
		st.DisplaySurfaceID = display.String
		st.LogSurfaceID = logSurface.String
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
