package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/rollcall/internal/roster"
)

// AssignMember places a person in a group, replacing any existing row for
// that person (delete + insert in one transaction). Returns the target group.
//
// Returns ErrGroupNotFound if m.GroupID is nil or does not exist.
func (s *Store) AssignMember(ctx context.Context, m roster.Member) (roster.Group, error) {
	if m.PersonID == "" {
		return roster.Group{}, fmt.Errorf("assign member: person id is required")
	}
	if m.GroupID == nil {
		return roster.Group{}, fmt.Errorf("assign member: %w", ErrGroupNotFound)
	}

	var group roster.Group
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := getGroup(ctx, tx, *m.GroupID)
		if err != nil {
			return err
		}
		group = g

		if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE person_id = ?`, m.PersonID); err != nil {
			return fmt.Errorf("assign member: remove previous: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO members
			(person_id, person_display_name, profile_name, profile_reference, group_id)
			VALUES (?, ?, ?, ?, ?)
		`,
			m.PersonID,
			m.PersonDisplayName,
			m.ProfileName,
			m.ProfileReference,
			*m.GroupID,
		)
		if err != nil {
			return fmt.Errorf("assign member: %w", err)
		}
		return nil
	})
	if err != nil {
		return roster.Group{}, err
	}
	return group, nil
}

// RemoveMember deletes the person's member row.
// Returns false if the person had no row.
func (s *Store) RemoveMember(ctx context.Context, personID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE person_id = ?`, personID)
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove member: rows affected: %w", err)
	}
	return affected > 0, nil
}

// MoveMember changes the person's group in place, keeping their position in
// insertion order. Returns the target group.
func (s *Store) MoveMember(ctx context.Context, personID string, groupID int64) (roster.Group, error) {
	var group roster.Group
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := getGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		group = g

		res, err := tx.ExecContext(ctx, `
			UPDATE members SET group_id = ? WHERE person_id = ?
		`, groupID, personID)
		if err != nil {
			return fmt.Errorf("move member: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("move member: rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("move member %s: %w", personID, ErrMemberNotFound)
		}
		return nil
	})
	if err != nil {
		return roster.Group{}, err
	}
	return group, nil
}

// GetMember returns the member row for a person.
func (s *Store) GetMember(ctx context.Context, personID string) (roster.Member, error) {
	var (
		m       roster.Member
		groupID sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, person_id, person_display_name, profile_name, profile_reference, group_id
		FROM members WHERE person_id = ?
	`, personID).Scan(&m.ID, &m.PersonID, &m.PersonDisplayName, &m.ProfileName, &m.ProfileReference, &groupID)
	if err == sql.ErrNoRows {
		return roster.Member{}, fmt.Errorf("member %s: %w", personID, ErrMemberNotFound)
	}
	if err != nil {
		return roster.Member{}, fmt.Errorf("get member: %w", err)
	}
	if groupID.Valid {
		id := groupID.Int64
		m.GroupID = &id
	}
	return m, nil
}
