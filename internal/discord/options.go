package discord

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// options indexes a command's options by name.
type options struct {
	byName   map[string]*discordgo.ApplicationCommandInteractionDataOption
	resolved *discordgo.ApplicationCommandInteractionDataResolved
}

func newOptions(data discordgo.ApplicationCommandInteractionData) options {
	o := options{
		byName:   make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options)),
		resolved: data.Resolved,
	}
	for _, opt := range data.Options {
		o.byName[opt.Name] = opt
	}
	return o
}

func (o options) string(name string) string {
	opt, ok := o.byName[name]
	if !ok || opt.Value == nil {
		return ""
	}
	if s, ok := opt.Value.(string); ok {
		return s
	}
	return fmt.Sprint(opt.Value)
}

// int reads an integer option. JSON numbers arrive as float64; autocompleted
// values may arrive as strings.
func (o options) int(name string) int64 {
	opt, ok := o.byName[name]
	if !ok {
		return 0
	}
	switch v := opt.Value.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// id reads a user, channel or role option, which carry snowflake strings.
func (o options) id(name string) string {
	return o.string(name)
}

// userLabel returns the resolved username, falling back to a mention.
func (o options) userLabel(name string) string {
	id := o.id(name)
	if o.resolved != nil {
		if u, ok := o.resolved.Users[id]; ok && u != nil {
			return u.Username
		}
	}
	return "<@" + id + ">"
}

// roleLabel returns the resolved role name, falling back to a mention.
func (o options) roleLabel(name string) string {
	id := o.id(name)
	if o.resolved != nil {
		if r, ok := o.resolved.Roles[id]; ok && r != nil {
			return r.Name
		}
	}
	return "<@&" + id + ">"
}
