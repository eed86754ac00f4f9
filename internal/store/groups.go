package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/rollcall/internal/roster"
)

// normalizeName trims and NFC-normalizes a group name so visually identical
// names collide on the UNIQUE constraint.
func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// CreateGroup inserts a new group.
// Returns ErrGroupExists if the (normalized) name is taken.
func (s *Store) CreateGroup(ctx context.Context, name string, priority int) (roster.Group, error) {
	name = normalizeName(name)
	if name == "" {
		return roster.Group{}, fmt.Errorf("create group: name is required")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO groups (name, priority) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, priority)
	if err != nil {
		return roster.Group{}, fmt.Errorf("create group: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return roster.Group{}, fmt.Errorf("create group: rows affected: %w", err)
	}
	if affected == 0 {
		return roster.Group{}, fmt.Errorf("create group %q: %w", name, ErrGroupExists)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return roster.Group{}, fmt.Errorf("create group: last insert id: %w", err)
	}

	return roster.Group{ID: id, Name: name, Priority: priority}, nil
}

// GetGroup returns the group with the given id.
func (s *Store) GetGroup(ctx context.Context, id int64) (roster.Group, error) {
	return getGroup(ctx, s.db, id)
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getGroup(ctx context.Context, q queryRower, id int64) (roster.Group, error) {
	var g roster.Group
	err := q.QueryRowContext(ctx, `
		SELECT id, name, priority FROM groups WHERE id = ?
	`, id).Scan(&g.ID, &g.Name, &g.Priority)
	if errors.Is(err, sql.ErrNoRows) {
		return roster.Group{}, fmt.Errorf("group %d: %w", id, ErrGroupNotFound)
	}
	if err != nil {
		return roster.Group{}, fmt.Errorf("get group %d: %w", id, err)
	}
	return g, nil
}

// FindGroup returns the group with the given (normalized) name.
func (s *Store) FindGroup(ctx context.Context, name string) (roster.Group, error) {
	name = normalizeName(name)
	var g roster.Group
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, priority FROM groups WHERE name = ?
	`, name).Scan(&g.ID, &g.Name, &g.Priority)
	if errors.Is(err, sql.ErrNoRows) {
		return roster.Group{}, fmt.Errorf("group %q: %w", name, ErrGroupNotFound)
	}
	if err != nil {
		return roster.Group{}, fmt.Errorf("find group %q: %w", name, err)
	}
	return g, nil
}

// RenameGroup sets a group's name and priority and returns the previous record.
func (s *Store) RenameGroup(ctx context.Context, id int64, newName string, priority int) (roster.Group, error) {
	newName = normalizeName(newName)
	if newName == "" {
		return roster.Group{}, fmt.Errorf("rename group: name is required")
	}

	var old roster.Group
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := getGroup(ctx, tx, id)
		if err != nil {
			return err
		}
		old = g

		_, err = tx.ExecContext(ctx, `
			UPDATE groups SET name = ?, priority = ? WHERE id = ?
		`, newName, priority, id)
		if isUniqueViolation(err) {
			return fmt.Errorf("rename group %q: %w", newName, ErrGroupExists)
		}
		if err != nil {
			return fmt.Errorf("rename group: %w", err)
		}
		return nil
	})
	if err != nil {
		return roster.Group{}, err
	}
	return old, nil
}

// DeleteGroup removes a group and all of its members.
// Returns the deleted group.
func (s *Store) DeleteGroup(ctx context.Context, id int64) (roster.Group, error) {
	var deleted roster.Group
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := getGroup(ctx, tx, id)
		if err != nil {
			return err
		}
		deleted = g

		// Explicit delete keeps the cascade independent of the foreign_keys pragma.
		if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE group_id = ?`, id); err != nil {
			return fmt.Errorf("delete group members: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete group: %w", err)
		}
		return nil
	})
	if err != nil {
		return roster.Group{}, err
	}
	return deleted, nil
}

// ListGroups returns all groups in creation order.
// Returns an empty slice (not nil) when there are no groups.
func (s *Store) ListGroups(ctx context.Context) ([]roster.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, priority FROM groups ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	groups := []roster.Group{}
	for rows.Next() {
		var g roster.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Priority); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

// SearchGroups returns groups whose name contains query, compared
// case-insensitively with full Unicode case folding. An empty query matches
// every group. At most limit groups are returned when limit > 0.
func (s *Store) SearchGroups(ctx context.Context, query string, limit int) ([]roster.Group, error) {
	groups, err := s.ListGroups(ctx)
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	needle := fold.String(normalizeName(query))

	matched := []roster.Group{}
	for _, g := range groups {
		if needle != "" && !strings.Contains(fold.String(g.Name), needle) {
			continue
		}
		matched = append(matched, g)
		if limit > 0 && len(matched) == limit {
			break
		}
	}
	return matched, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
