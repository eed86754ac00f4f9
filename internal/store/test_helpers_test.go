package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/roach88/rollcall/internal/roster"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustCreateGroup creates a group or fails the test.
func mustCreateGroup(t *testing.T, s *Store, name string, priority int) roster.Group {
	t.Helper()
	g, err := s.CreateGroup(context.Background(), name, priority)
	if err != nil {
		t.Fatalf("CreateGroup(%q) failed: %v", name, err)
	}
	return g
}

// mustAssign assigns a person to a group or fails the test.
func mustAssign(t *testing.T, s *Store, personID string, groupID int64) {
	t.Helper()
	_, err := s.AssignMember(context.Background(), roster.Member{
		PersonID:          personID,
		PersonDisplayName: "user-" + personID,
		ProfileName:       "profile-" + personID,
		ProfileReference:  "https://example.com/" + personID,
		GroupID:           &groupID,
	})
	if err != nil {
		t.Fatalf("AssignMember(%q) failed: %v", personID, err)
	}
}

// getTableColumns returns the column names of a table.
func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		t.Fatalf("table_info(%s) failed: %v", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan column: %v", err)
		}
		cols = append(cols, name)
	}
	return cols
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
