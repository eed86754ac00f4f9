// Package store provides SQLite-backed storage for the rollcall roster.
//
// Tables:
//   - groups: named roster sections (name UNIQUE, priority)
//   - members: people assigned to a group (one row per person)
//   - per_destination_settings: display and log surfaces per community
//   - access_grants: roles operators granted command access to
//
// # Patterns
//
// One row per person: assigning a person replaces any existing row in a single
// transaction (delete + insert), so re-assignment moves the person to the end
// of the new group's insertion order.
//
// Cascade: deleting a group deletes its members (ON DELETE CASCADE, with
// foreign_keys=ON).
//
// Deterministic reads: snapshots are ordered by group order then members.id.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// A single long-lived *Store is opened per process and shared; callers never
// reopen the database per operation.
package store
