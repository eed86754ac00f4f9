// Package roster holds the community roster records shared by the store, the
// display engine and the operator surfaces.
package roster

// Group is a named section of the roster.
type Group struct {
	ID       int64
	Name     string
	Priority int
}

// Member is one person assigned to a group.
// Members with a nil GroupID are never rendered.
type Member struct {
	ID                int64
	PersonID          string
	PersonDisplayName string
	ProfileName       string
	ProfileReference  string
	GroupID           *int64
}

// Settings binds a community to its display and log surfaces.
// An empty DisplaySurfaceID means the community has no display configured.
type Settings struct {
	CommunityID      string
	DisplaySurfaceID string
	LogSurfaceID     string
}

// HasDisplay reports whether a display surface is configured.
func (s Settings) HasDisplay() bool {
	return s.DisplaySurfaceID != ""
}

// HasLog reports whether an operational log surface is configured.
func (s Settings) HasLog() bool {
	return s.LogSurfaceID != ""
}

// Grant records a role that operators granted access to roster commands.
type Grant struct {
	CommunityID string
	RoleID      string
}

// GroupEntry is one group with its members in insertion order.
type GroupEntry struct {
	Group   Group
	Members []Member
}

// Snapshot is a point-in-time read of the roster in render order.
type Snapshot struct {
	Groups []GroupEntry
}

// MemberCount returns the number of members across all groups.
func (s Snapshot) MemberCount() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g.Members)
	}
	return n
}

// GroupOrder selects how groups are ordered in a snapshot.
type GroupOrder string

const (
	// OrderDefinition renders groups in creation order.
	OrderDefinition GroupOrder = "definition"

	// OrderPriority renders groups by ascending priority, ties by creation order.
	OrderPriority GroupOrder = "priority"
)

// Valid reports whether o is a known ordering.
func (o GroupOrder) Valid() bool {
	return o == OrderDefinition || o == OrderPriority
}
