package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/logging"
	"github.com/roach88/rollcall/internal/roster"
	"github.com/roach88/rollcall/internal/store"
)

// maxChoices is Discord's cap on autocomplete suggestions.
const maxChoices = 25

// exportFileName names the database copy sent by load_data.
const exportFileName = "rollcall.db"

// Store is the roster store as used by slash commands.
type Store interface {
	CreateGroup(ctx context.Context, name string, priority int) (roster.Group, error)
	RenameGroup(ctx context.Context, id int64, newName string, priority int) (roster.Group, error)
	DeleteGroup(ctx context.Context, id int64) (roster.Group, error)
	GetGroup(ctx context.Context, id int64) (roster.Group, error)
	ListGroups(ctx context.Context) ([]roster.Group, error)
	SearchGroups(ctx context.Context, query string, limit int) ([]roster.Group, error)

	AssignMember(ctx context.Context, m roster.Member) (roster.Group, error)
	RemoveMember(ctx context.Context, personID string) (bool, error)
	MoveMember(ctx context.Context, personID string, groupID int64) (roster.Group, error)

	SetDestination(ctx context.Context, st roster.Settings) error
	GetSettings(ctx context.Context, communityID string) (roster.Settings, error)

	AddGrant(ctx context.Context, g roster.Grant) (bool, error)
	RemoveGrant(ctx context.Context, g roster.Grant) (bool, error)
	ListGrants(ctx context.Context, communityID string) ([]roster.Grant, error)

	Backup(ctx context.Context, path string) error
}

var _ Store = (*store.Store)(nil)

// Reconciler runs one pass for a community.
type Reconciler interface {
	Reconcile(ctx context.Context, communityID string) (engine.Report, error)
}

// Responder is the subset of *discordgo.Session used to answer interactions.
type Responder interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, edit *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ Responder = (*discordgo.Session)(nil)

// DirectMessenger is the subset of *discordgo.Session used to send files to
// a user in private.
type DirectMessenger interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ DirectMessenger = (*discordgo.Session)(nil)

// userError carries a message meant for the operator as is.
type userError struct {
	msg string
}

func (e *userError) Error() string { return e.msg }

func userErrorf(format string, args ...any) error {
	return &userError{msg: fmt.Sprintf(format, args...)}
}

// result is what a command handler produced.
type result struct {
	reply  string
	audit  string // empty: nothing to record
	resync bool
}

type handlerFunc func(ctx context.Context, i *discordgo.Interaction, opts options) (result, error)

// Commands dispatches slash command interactions.
type Commands struct {
	store      Store
	reconciler Reconciler
	notifier   engine.Notifier
	dm         DirectMessenger
	logger     *slog.Logger
	handlers   map[string]handlerFunc
}

// NewCommands creates the slash command dispatcher. notifier may be nil, in
// which case audit lines are only logged.
func NewCommands(st Store, r Reconciler, notifier engine.Notifier, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = logging.Discard()
	}
	c := &Commands{
		store:      st,
		reconciler: r,
		notifier:   notifier,
		logger:     logger,
	}
	c.handlers = map[string]handlerFunc{
		CmdCreateGroup:       c.createGroup,
		CmdRenameGroup:       c.renameGroup,
		CmdDeleteGroup:       c.deleteGroup,
		CmdListGroups:        c.listGroups,
		CmdAddUser:           c.addUser,
		CmdRemoveUser:        c.removeUser,
		CmdMoveUser:          c.moveUser,
		CmdSetDisplayChannel: c.setDisplayChannel,
		CmdSetPermissions:    c.setPermissions,
		CmdRemovePermissions: c.removePermissions,
		CmdListPermissions:   c.listPermissions,
		CmdLoadData:          c.loadData,
	}
	return c
}

// WithDirectMessages enables load_data, which sends the database to the
// requesting operator through dm.
func (c *Commands) WithDirectMessages(dm DirectMessenger) *Commands {
	c.dm = dm
	return c
}

// Handler adapts Commands to a discordgo event handler. ctx bounds every
// store write and triggered pass.
func (c *Commands) Handler(ctx context.Context) func(*discordgo.Session, *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		c.Handle(ctx, s, ic.Interaction)
	}
}

// Handle processes one interaction.
func (c *Commands) Handle(ctx context.Context, r Responder, i *discordgo.Interaction) {
	switch i.Type {
	case discordgo.InteractionApplicationCommandAutocomplete:
		c.autocomplete(ctx, r, i)
	case discordgo.InteractionApplicationCommand:
		c.command(ctx, r, i)
	}
}

func (c *Commands) command(ctx context.Context, r Responder, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	logger := c.logger.With("command", data.Name, "community", i.GuildID, "actor", actorID(i))

	if i.GuildID == "" {
		c.reply(r, i, "Roster commands only work inside a server.")
		return
	}

	if data.Name == CmdUpdateList {
		c.updateList(ctx, r, i, logger)
		return
	}

	h, ok := c.handlers[data.Name]
	if !ok {
		logger.Warn("unknown command")
		c.reply(r, i, "Unknown command.")
		return
	}

	res, err := h(ctx, i, newOptions(data))
	if err != nil {
		var ue *userError
		if errors.As(err, &ue) {
			logger.Info("command rejected", "reason", ue.msg)
			c.reply(r, i, ue.msg)
			return
		}
		logger.Error("command failed", "error", err)
		c.reply(r, i, "Something went wrong. The error was logged.")
		return
	}

	if res.audit != "" {
		c.audit(ctx, i.GuildID, res.audit)
	}
	c.reply(r, i, res.reply)

	if res.resync {
		c.resync(ctx, i.GuildID, logger)
	}
}

// updateList defers the response so the pass can outlive the interaction
// acknowledgement window, then edits the response with the outcome.
func (c *Commands) updateList(ctx context.Context, r Responder, i *discordgo.Interaction, logger *slog.Logger) {
	err := r.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		logger.Error("defer response failed", "error", err)
		return
	}

	report, err := c.reconciler.Reconcile(ctx, i.GuildID)
	var text string
	switch {
	case err != nil:
		text = fmt.Sprintf("Group list update failed: %s", describePassError(err))
	case report.Skipped:
		text = fmt.Sprintf("No display channel is set. Use /%s first.", CmdSetDisplayChannel)
	default:
		s := report.Stats
		text = fmt.Sprintf("Group list updated! (%d created, %d edited, %d deleted)", s.Created, s.Edited, s.Deleted)
	}

	if _, err := r.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &text}); err != nil {
		logger.Error("edit response failed", "error", err)
	}

	c.audit(ctx, i.GuildID, fmt.Sprintf("<@%s> updated group list channel", actorID(i)))
}

func describePassError(err error) string {
	if code := engine.PassErrorCodeOf(err); code != "" {
		return string(code)
	}
	return err.Error()
}

func (c *Commands) reply(r Responder, i *discordgo.Interaction, text string) {
	err := r.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		c.logger.Error("respond failed", "interaction", i.ID, "error", err)
	}
}

// audit logs an operator action and posts it to the community's log channel.
func (c *Commands) audit(ctx context.Context, communityID, text string) {
	c.logger.Info("audit", "community", communityID, "text", text)
	if c.notifier == nil {
		return
	}

	settings, err := c.store.GetSettings(ctx, communityID)
	if err != nil {
		c.logger.Warn("audit: settings lookup failed", "community", communityID, "error", err)
		return
	}
	if !settings.HasLog() {
		return
	}
	if err := c.notifier.Notify(ctx, settings.LogSurfaceID, text); err != nil {
		c.logger.Warn("audit: post to log channel failed", "community", communityID, "error", err)
	}
}

// resync triggers a pass. Its outcome is reported by the engine itself.
func (c *Commands) resync(ctx context.Context, communityID string, logger *slog.Logger) {
	report, err := c.reconciler.Reconcile(ctx, communityID)
	if err != nil {
		logger.Debug("triggered pass failed", "pass", report.PassID, "error", err)
		return
	}
	logger.Debug("triggered pass finished", "pass", report.PassID, "skipped", report.Skipped)
}

func (c *Commands) autocomplete(ctx context.Context, r Responder, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()

	var query string
	for _, o := range data.Options {
		if o.Focused {
			query = fmt.Sprint(o.Value)
			break
		}
	}

	groups, err := c.store.SearchGroups(ctx, query, maxChoices)
	if err != nil {
		c.logger.Error("autocomplete failed", "command", data.Name, "error", err)
		groups = nil
	}

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(groups))
	for _, g := range groups {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: g.Name, Value: g.ID})
	}

	err = r.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err != nil {
		c.logger.Error("autocomplete respond failed", "error", err)
	}
}

func (c *Commands) createGroup(ctx context.Context, i *discordgo.Interaction, o options) (result, error) {
	name := o.string(optGroupName)
	priority := int(o.int(optPriority))

	g, err := c.store.CreateGroup(ctx, name, priority)
	if errors.Is(err, store.ErrGroupExists) {
		return result{}, userErrorf("Group `%s` already exists!", strings.TrimSpace(name))
	}
	if err != nil {
		return result{}, err
	}

	return result{
		reply:  fmt.Sprintf("Group `%s` created!", g.Name),
		audit:  fmt.Sprintf("<@%s> created a group `%s` with priority `%d`", actorID(i), g.Name, g.Priority),
		resync: true,
	}, nil
}

func (c *Commands) renameGroup(ctx context.Context, i *discordgo.Interaction, o options) (result, error) {
	id := o.int(optGroupID)
	newName := o.string(optNewName)
	priority := int(o.int(optPriority))

	old, err := c.store.RenameGroup(ctx, id, newName, priority)
	switch {
	case errors.Is(err, store.ErrGroupNotFound):
		return result{}, groupNotFound(id)
	case errors.Is(err, store.ErrGroupExists):
		return result{}, userErrorf("Group `%s` already exists!", strings.TrimSpace(newName))
	case err != nil:
		return result{}, err
	}

	renamed, err := c.store.GetGroup(ctx, id)
	if err != nil {
		return result{}, err
	}

	return result{
		reply: fmt.Sprintf("Group `%s` renamed to `%s`!", old.Name, renamed.Name),
		audit: fmt.Sprintf("<@%s> renamed group `%s` to `%s` with priority `%d`",
			actorID(i), old.Name, renamed.Name, renamed.Priority),
		resync: true,
	}, nil
}

func (c *Commands) deleteGroup(ctx context.Context, i *discordgo.Interaction, o options) (result, error) {
	id := o.int(optGroupID)

	g, err := c.store.DeleteGroup(ctx, id)
	if errors.Is(err, store.ErrGroupNotFound) {
		return result{}, groupNotFound(id)
	}
	if err != nil {
		return result{}, err
	}

	return result{
		reply:  fmt.Sprintf("Group `%s` deleted!", g.Name),
		audit:  fmt.Sprintf("<@%s> deleted group `%s`", actorID(i), g.Name),
		resync: true,
	}, nil
}

func (c *Commands) listGroups(ctx context.Context, i *discordgo.Interaction, o options) (result, error) {
	groups, err := c.store.ListGroups(ctx)
	if err != nil {
		return result{}, err
	}
	if len(groups) == 0 {
		return result{reply: "No groups found."}, nil
	}

	var b strings.Builder
	b.WriteString("Existing groups:")
	for _, g := range groups {
		fmt.Fprintf(&b, "\n**%d.** `%s` : *priority = `%d`*", g.ID, g.Name, g.Priority)
	}
	return result{reply: b.String()}, nil
}

func (c *Commands) addUser(ctx context.Context, i *discordgo.Interaction, o options) (result, error) {
	groupID := o.int(optGroupID)
	personID := o.id(optUser)
	label := o.userLabel(optUser)

	g, err := c.store.AssignMember(ctx, roster.Member{
		PersonID:          personID,
		PersonDisplayName: label,
		ProfileName:       o.string(optProfileName),
		ProfileReference:  o.string(optProfileRef),
		GroupID:           &groupID,
	})
	if errors.Is(err, store.ErrGroupNotFound) {
		return result{}, groupNotFound(groupID)
	}
	if err != nil {
		return result{}, err
	}

	return result{
		reply:  fmt.Sprintf("User `%s` added to group `%s`!", label, g.Name),
		audit:  fmt.Sprintf("<@%s> added user <@%s> to group `%s`", actorID(i), personID, g.Name),
		resync: true,
	}, nil
}

func (c *Commands) removeUser(ctx context.Context, i *discordgo.Interaction, o options) (result, error) {
	personID := o.id(optUser)
	label := o.userLabel(optUser)

	removed, err := c.store.RemoveMember(ctx, personID)
	if err != nil {
		return result{}, err
	}
	if !removed {
		return result{}, userErrorf("User `%s` is not in any group.", label)
	}

	return result{
		reply:  fmt.Sprintf("User `%s` removed from all groups!", label),
		audit:  fmt.Sprintf("<@%s> removed user <@%s> from all groups", actorID(i), personID),
		resync: true,
	}, nil
}

func (c *Commands) moveUser(ctx context.Context, i *discordgo.Interaction, o options) (result, error) {
	personID := o.id(optUser)
	label := o.userLabel(optUser)
	groupID := o.int(optNewGroupID)

	g, err := c.store.MoveMember(ctx, personID, groupID)
	switch {
	case errors.Is(err, store.ErrGroupNotFound):
		return result{}, groupNotFound(groupID)
	case errors.Is(err, store.ErrMemberNotFound):
		return result{}, userErrorf("User `%s` is not in any group.", label)
	case err != nil:
		return result{}, err
	}

	return result{
		reply:  fmt.Sprintf("User `%s` moved to group `%s`!", label, g.Name),
		audit:  fmt.Sprintf("<@%s> moved user <@%s> to `%s`", actorID(i), personID, g.Name),
		resync: true,
	}, nil
}

func (c *Commands) setDisplayChannel(ctx context.Context, i *discordgo.Interaction, o options) (result, error) {
	display := o.id(optDisplayChannel)
	logChannel := o.id(optLogChannel)

	err := c.store.SetDestination(ctx, roster.Settings{
		CommunityID:      i.GuildID,
		DisplaySurfaceID: display,
		LogSurfaceID:     logChannel,
	})
	if err != nil {
		return result{}, err
	}

	audit := fmt.Sprintf("<@%s> set display chat to <#%s>.", actorID(i), display)
	if logChannel != "" {
		audit += fmt.Sprintf(" Logging chat now in <#%s>", logChannel)
	}

	return result{
		reply:  fmt.Sprintf("Display channel set to <#%s>", display),
		audit:  audit,
		resync: true,
	}, nil
}

func (c *Commands) setPermissions(ctx context.Context, i *discordgo.Interaction, o options) (result, error) {
	roleID := o.id(optRole)
	label := o.roleLabel(optRole)

	added, err := c.store.AddGrant(ctx, roster.Grant{CommunityID: i.GuildID, RoleID: roleID})
	if err != nil {
		return result{}, err
	}
	if !added {
		return result{reply: fmt.Sprintf("`%s` already had access to roster commands", label)}, nil
	}

	return result{
		reply: fmt.Sprintf("`%s` now has access to roster commands", label),
		audit: fmt.Sprintf("<@%s> set access to <@&%s>", actorID(i), roleID),
	}, nil
}

func (c *Commands) removePermissions(ctx context.Context, i *discordgo.Interaction, o options) (result, error) {
	roleID := o.id(optRole)
	label := o.roleLabel(optRole)

	removed, err := c.store.RemoveGrant(ctx, roster.Grant{CommunityID: i.GuildID, RoleID: roleID})
	if err != nil {
		return result{}, err
	}
	if !removed {
		return result{reply: fmt.Sprintf("`%s` did not have access to roster commands", label)}, nil
	}

	return result{
		reply: fmt.Sprintf("`%s` access to roster commands has been removed", label),
		audit: fmt.Sprintf("<@%s> removed access from <@&%s>", actorID(i), roleID),
	}, nil
}

func (c *Commands) listPermissions(ctx context.Context, i *discordgo.Interaction, o options) (result, error) {
	grants, err := c.store.ListGrants(ctx, i.GuildID)
	if err != nil {
		return result{}, err
	}
	if len(grants) == 0 {
		return result{reply: "No roles have access to roster commands in this server."}, nil
	}

	var b strings.Builder
	b.WriteString("Roles with access to roster commands:")
	for _, g := range grants {
		fmt.Fprintf(&b, "\n<@&%s>", g.RoleID)
	}
	return result{reply: b.String()}, nil
}

func (c *Commands) loadData(ctx context.Context, i *discordgo.Interaction, o options) (result, error) {
	if c.dm == nil {
		return result{}, userErrorf("Database export is not available.")
	}
	actor := actorID(i)

	dir, err := os.MkdirTemp("", "rollcall-export-")
	if err != nil {
		return result{}, fmt.Errorf("load data: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, exportFileName)
	if err := c.store.Backup(ctx, path); err != nil {
		return result{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return result{}, fmt.Errorf("load data: %w", err)
	}

	if err := c.sendPrivateFile(ctx, actor, exportFileName, data); err != nil {
		c.logger.Warn("load data: direct message failed", "actor", actor, "error", err)
		return result{}, userErrorf("I cannot send messages to you. Please check your privacy settings.")
	}

	return result{
		reply: "Sent the database file in private messages.",
		audit: fmt.Sprintf("<@%s> downloaded the roster database", actor),
	}, nil
}

func (c *Commands) sendPrivateFile(ctx context.Context, userID, name string, data []byte) error {
	ch, err := c.dm.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	_, err = c.dm.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Files: []*discordgo.File{{
			Name:        name,
			ContentType: "application/vnd.sqlite3",
			Reader:      bytes.NewReader(data),
		}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send file: %w", err)
	}
	return nil
}

func groupNotFound(id int64) error {
	return userErrorf("Group with id `%d` does not exist!", id)
}

func actorID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
