package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/config"
	"github.com/roach88/rollcall/internal/roster"
	"github.com/roach88/rollcall/internal/store"
)

// GroupView is one group in command output.
type GroupView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

// GroupList is the output of group list.
type GroupList struct {
	Groups []GroupView `json:"groups"`
}

// Text renders one group per line.
func (l GroupList) Text() string {
	if len(l.Groups) == 0 {
		return "No groups found.\n"
	}
	var b strings.Builder
	for _, g := range l.Groups {
		fmt.Fprintf(&b, "%d. %s (priority %d)\n", g.ID, g.Name, g.Priority)
	}
	return b.String()
}

// NewGroupCommand creates the group command tree.
func NewGroupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage roster groups",
	}

	var priority int
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storeCommand(rootOpts, cmd, func(ctx context.Context, st *store.Store, out *OutputFormatter) error {
				g, err := st.CreateGroup(ctx, args[0], priority)
				if err != nil {
					return storeFailure(out, err)
				}
				return out.Success(fmt.Sprintf("Group %q created with id %d.", g.Name, g.ID))
			})
		},
	}
	create.Flags().IntVarP(&priority, "priority", "p", 0, "sort priority, lowest first")

	var renamePriority int
	rename := &cobra.Command{
		Use:   "rename <group> <new-name>",
		Short: "Rename a group and optionally change its priority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storeCommand(rootOpts, cmd, func(ctx context.Context, st *store.Store, out *OutputFormatter) error {
				g, err := resolveGroup(ctx, st, args[0])
				if err != nil {
					return storeFailure(out, err)
				}
				p := g.Priority
				if cmd.Flags().Changed("priority") {
					p = renamePriority
				}
				old, err := st.RenameGroup(ctx, g.ID, args[1], p)
				if err != nil {
					return storeFailure(out, err)
				}
				return out.Success(fmt.Sprintf("Group %q renamed to %q.", old.Name, strings.TrimSpace(args[1])))
			})
		},
	}
	rename.Flags().IntVarP(&renamePriority, "priority", "p", 0, "new sort priority (default: unchanged)")

	del := &cobra.Command{
		Use:   "delete <group>",
		Short: "Delete a group and its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storeCommand(rootOpts, cmd, func(ctx context.Context, st *store.Store, out *OutputFormatter) error {
				g, err := resolveGroup(ctx, st, args[0])
				if err != nil {
					return storeFailure(out, err)
				}
				deleted, err := st.DeleteGroup(ctx, g.ID)
				if err != nil {
					return storeFailure(out, err)
				}
				return out.Success(fmt.Sprintf("Group %q deleted.", deleted.Name))
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List groups in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return storeCommand(rootOpts, cmd, func(ctx context.Context, st *store.Store, out *OutputFormatter) error {
				groups, err := st.ListGroups(ctx)
				if err != nil {
					return err
				}
				l := GroupList{Groups: make([]GroupView, 0, len(groups))}
				for _, g := range groups {
					l.Groups = append(l.Groups, GroupView{ID: g.ID, Name: g.Name, Priority: g.Priority})
				}
				return out.Success(l)
			})
		},
	}

	cmd.AddCommand(create, rename, del, list)
	return cmd
}

// NewMemberCommand creates the member command tree.
func NewMemberCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage roster members",
	}

	var m roster.Member
	add := &cobra.Command{
		Use:   "add <group> <person-id>",
		Short: "Add a person to a group, replacing any previous assignment",
		Long: `Add a person to a group. A person has at most one roster entry: adding
someone who is already listed moves them to the end of the new group.

<group> is a group id or name.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storeCommand(rootOpts, cmd, func(ctx context.Context, st *store.Store, out *OutputFormatter) error {
				g, err := resolveGroup(ctx, st, args[0])
				if err != nil {
					return storeFailure(out, err)
				}
				member := m
				member.PersonID = args[1]
				member.GroupID = &g.ID
				if _, err := st.AssignMember(ctx, member); err != nil {
					return storeFailure(out, err)
				}
				return out.Success(fmt.Sprintf("Member %s added to group %q.", member.PersonID, g.Name))
			})
		},
	}
	add.Flags().StringVar(&m.PersonDisplayName, "display-name", "", "display name of the person")
	add.Flags().StringVar(&m.ProfileName, "profile-name", "", "profile name shown on the roster")
	add.Flags().StringVar(&m.ProfileReference, "profile-ref", "", "profile link or identifier shown on the roster")

	remove := &cobra.Command{
		Use:   "remove <person-id>",
		Short: "Remove a person from the roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storeCommand(rootOpts, cmd, func(ctx context.Context, st *store.Store, out *OutputFormatter) error {
				removed, err := st.RemoveMember(ctx, args[0])
				if err != nil {
					return err
				}
				if !removed {
					return storeFailure(out, fmt.Errorf("member %s: %w", args[0], store.ErrMemberNotFound))
				}
				return out.Success(fmt.Sprintf("Member %s removed.", args[0]))
			})
		},
	}

	move := &cobra.Command{
		Use:   "move <person-id> <group>",
		Short: "Move a person to another group, keeping their position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storeCommand(rootOpts, cmd, func(ctx context.Context, st *store.Store, out *OutputFormatter) error {
				g, err := resolveGroup(ctx, st, args[1])
				if err != nil {
					return storeFailure(out, err)
				}
				if _, err := st.MoveMember(ctx, args[0], g.ID); err != nil {
					return storeFailure(out, err)
				}
				return out.Success(fmt.Sprintf("Member %s moved to group %q.", args[0], g.Name))
			})
		},
	}

	cmd.AddCommand(add, remove, move)
	return cmd
}

// NewDestinationCommand creates the destination command tree.
func NewDestinationCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "destination",
		Short: "Configure where a community's roster is displayed",
	}

	var logSurface string
	set := &cobra.Command{
		Use:   "set <community-id> <display-channel-id>",
		Short: "Set the display channel (and optional log channel)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storeCommand(rootOpts, cmd, func(ctx context.Context, st *store.Store, out *OutputFormatter) error {
				err := st.SetDestination(ctx, roster.Settings{
					CommunityID:      args[0],
					DisplaySurfaceID: args[1],
					LogSurfaceID:     logSurface,
				})
				if err != nil {
					return err
				}
				return out.Success(fmt.Sprintf("Community %s displays in %s.", args[0], args[1]))
			})
		},
	}
	set.Flags().StringVar(&logSurface, "log", "", "channel receiving diagnostics (empty clears it)")

	show := &cobra.Command{
		Use:   "show <community-id>",
		Short: "Show a community's display and log channels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storeCommand(rootOpts, cmd, func(ctx context.Context, st *store.Store, out *OutputFormatter) error {
				s, err := st.GetSettings(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Success(destinationView(s))
			})
		},
	}

	cmd.AddCommand(set, show)
	return cmd
}

// DestinationView is the output of destination show.
type DestinationView struct {
	CommunityID      string `json:"community_id"`
	DisplaySurfaceID string `json:"display_surface_id"`
	LogSurfaceID     string `json:"log_surface_id"`
}

func destinationView(s roster.Settings) DestinationView {
	return DestinationView{
		CommunityID:      s.CommunityID,
		DisplaySurfaceID: s.DisplaySurfaceID,
		LogSurfaceID:     s.LogSurfaceID,
	}
}

// Text renders the destination, marking unset channels.
func (d DestinationView) Text() string {
	orNone := func(s string) string {
		if s == "" {
			return "(none)"
		}
		return s
	}
	return fmt.Sprintf("community: %s\ndisplay:   %s\nlog:       %s\n",
		d.CommunityID, orNone(d.DisplaySurfaceID), orNone(d.LogSurfaceID))
}

// GrantList is the output of grant list.
type GrantList struct {
	CommunityID string   `json:"community_id"`
	Roles       []string `json:"roles"`
}

// Text renders one role per line.
func (l GrantList) Text() string {
	if len(l.Roles) == 0 {
		return fmt.Sprintf("No roles granted in %s.\n", l.CommunityID)
	}
	return strings.Join(l.Roles, "\n") + "\n"
}

// NewGrantCommand creates the grant command tree.
func NewGrantCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Record which roles may use roster commands",
	}

	add := &cobra.Command{
		Use:   "add <community-id> <role-id>",
		Short: "Grant a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storeCommand(rootOpts, cmd, func(ctx context.Context, st *store.Store, out *OutputFormatter) error {
				added, err := st.AddGrant(ctx, roster.Grant{CommunityID: args[0], RoleID: args[1]})
				if err != nil {
					return err
				}
				if !added {
					return out.Success(fmt.Sprintf("Role %s already granted.", args[1]))
				}
				return out.Success(fmt.Sprintf("Role %s granted.", args[1]))
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <community-id> <role-id>",
		Short: "Revoke a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storeCommand(rootOpts, cmd, func(ctx context.Context, st *store.Store, out *OutputFormatter) error {
				removed, err := st.RemoveGrant(ctx, roster.Grant{CommunityID: args[0], RoleID: args[1]})
				if err != nil {
					return err
				}
				if !removed {
					return out.Success(fmt.Sprintf("Role %s was not granted.", args[1]))
				}
				return out.Success(fmt.Sprintf("Role %s revoked.", args[1]))
			})
		},
	}

	list := &cobra.Command{
		Use:   "list <community-id>",
		Short: "List granted roles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storeCommand(rootOpts, cmd, func(ctx context.Context, st *store.Store, out *OutputFormatter) error {
				grants, err := st.ListGrants(ctx, args[0])
				if err != nil {
					return err
				}
				l := GrantList{CommunityID: args[0], Roles: []string{}}
				for _, g := range grants {
					l.Roles = append(l.Roles, g.RoleID)
				}
				return out.Success(l)
			})
		},
	}

	cmd.AddCommand(add, remove, list)
	return cmd
}

// storeCommand runs fn against the configured store.
func storeCommand(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, st *store.Store, out *OutputFormatter) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return withStore(opts, func(cfg *config.Config, st *store.Store) error {
		newLogger(cmd, opts, cfg)
		return fn(ctx, st, formatter(cmd, opts))
	})
}

// resolveGroup accepts a numeric group id or a group name.
func resolveGroup(ctx context.Context, st *store.Store, ref string) (roster.Group, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		g, err := st.GetGroup(ctx, id)
		if err == nil || !errors.Is(err, store.ErrGroupNotFound) {
			return g, err
		}
	}
	return st.FindGroup(ctx, ref)
}

// storeFailure reports known store errors and maps them to exit codes.
func storeFailure(out *OutputFormatter, err error) error {
	switch {
	case errors.Is(err, store.ErrGroupNotFound), errors.Is(err, store.ErrMemberNotFound):
		_ = out.Error(CodeNotFound, err.Error(), nil)
		return WrapExitError(ExitFailure, "not found", err)
	case errors.Is(err, store.ErrGroupExists):
		_ = out.Error(CodeConflict, err.Error(), nil)
		return WrapExitError(ExitFailure, "conflict", err)
	default:
		return err
	}
}
