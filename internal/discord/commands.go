package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Command names.
const (
	CmdCreateGroup       = "create_group"
	CmdRenameGroup       = "rename_group"
	CmdDeleteGroup       = "delete_group"
	CmdListGroups        = "list_groups"
	CmdAddUser           = "add_user"
	CmdRemoveUser        = "remove_user"
	CmdMoveUser          = "move_user"
	CmdSetDisplayChannel = "set_display_channel"
	CmdUpdateList        = "update_list"
	CmdSetPermissions    = "set_permissions"
	CmdRemovePermissions = "remove_permissions"
	CmdListPermissions   = "list_permissions"
	CmdLoadData          = "load_data"
)

// Option names.
const (
	optGroupName      = "group_name"
	optGroupID        = "group_id"
	optNewGroupID     = "new_group_id"
	optNewName        = "new_name"
	optPriority       = "priority"
	optUser           = "user"
	optProfileName    = "profile_name"
	optProfileRef     = "profile_reference"
	optDisplayChannel = "display_channel"
	optLogChannel     = "logging_channel"
	optRole           = "role"
)

// CommandRegistrar is the subset of *discordgo.Session used to publish
// slash commands.
type CommandRegistrar interface {
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// RegisterCommands replaces the application's commands with ApplicationCommands.
// An empty guildID registers them globally.
func RegisterCommands(ctx context.Context, r CommandRegistrar, appID, guildID string) error {
	_, err := r.ApplicationCommandBulkOverwrite(appID, guildID, ApplicationCommands(), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	return nil
}

// ApplicationCommands returns the slash command definitions. Every command is
// restricted to members with Manage Server by default; guild admins can widen
// that in the integration settings.
func ApplicationCommands() []*discordgo.ApplicationCommand {
	perm := int64(discordgo.PermissionManageServer)
	dm := false

	groupOpt := func(name string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:         discordgo.ApplicationCommandOptionInteger,
			Name:         name,
			Description:  "Group",
			Required:     true,
			Autocomplete: true,
		}
	}
	userOpt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        optUser,
		Description: "Member",
		Required:    true,
	}
	priorityOpt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        optPriority,
		Description: "Sort priority, lowest first",
		Required:    true,
	}
	roleOpt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionRole,
		Name:        optRole,
		Description: "Role",
		Required:    true,
	}

	cmds := []*discordgo.ApplicationCommand{
		{
			Name:        CmdCreateGroup,
			Description: "Create a new group",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optGroupName,
					Description: "Name of the group",
					Required:    true,
				},
				priorityOpt,
			},
		},
		{
			Name:        CmdRenameGroup,
			Description: "Rename an existing group",
			Options: []*discordgo.ApplicationCommandOption{
				groupOpt(optGroupID),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optNewName,
					Description: "New name of the group",
					Required:    true,
				},
				priorityOpt,
			},
		},
		{
			Name:        CmdDeleteGroup,
			Description: "Delete an existing group",
			Options:     []*discordgo.ApplicationCommandOption{groupOpt(optGroupID)},
		},
		{
			Name:        CmdListGroups,
			Description: "List all existing groups",
		},
		{
			Name:        CmdAddUser,
			Description: "Add a user to a group",
			Options: []*discordgo.ApplicationCommandOption{
				groupOpt(optGroupID),
				userOpt,
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optProfileName,
					Description: "In-game profile name",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optProfileRef,
					Description: "Profile link or identifier",
					Required:    true,
				},
			},
		},
		{
			Name:        CmdRemoveUser,
			Description: "Remove a user from all groups",
			Options:     []*discordgo.ApplicationCommandOption{userOpt},
		},
		{
			Name:        CmdMoveUser,
			Description: "Move a user to a different group",
			Options:     []*discordgo.ApplicationCommandOption{userOpt, groupOpt(optNewGroupID)},
		},
		{
			Name:        CmdSetDisplayChannel,
			Description: "Set the channel to display the group list",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        optDisplayChannel,
					Description: "Channel or thread showing the roster",
					Required:    true,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
						discordgo.ChannelTypeGuildPublicThread,
						discordgo.ChannelTypeGuildPrivateThread,
					},
				},
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         optLogChannel,
					Description:  "Channel receiving audit lines and sync failures",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				},
			},
		},
		{
			Name:        CmdUpdateList,
			Description: "Update group list in the display channel",
		},
		{
			Name:        CmdSetPermissions,
			Description: "Grant a role access to roster commands",
			Options:     []*discordgo.ApplicationCommandOption{roleOpt},
		},
		{
			Name:        CmdRemovePermissions,
			Description: "Remove a role's access to roster commands",
			Options:     []*discordgo.ApplicationCommandOption{roleOpt},
		},
		{
			Name:        CmdListPermissions,
			Description: "List roles with access to roster commands",
		},
		{
			Name:        CmdLoadData,
			Description: "Send yourself a copy of the roster database",
		},
	}

	for _, c := range cmds {
		c.DefaultMemberPermissions = &perm
		c.DMPermission = &dm
	}
	return cmds
}
