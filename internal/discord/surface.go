package discord

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"

	"github.com/roach88/rollcall/internal/engine"
)

// pageSize is the most messages Discord returns per history request.
const pageSize = 100

// API is the subset of *discordgo.Session used by Surface and Notifier.
type API interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

var _ API = (*discordgo.Session)(nil)

// Surface is a Discord channel seen as an ordered message log.
type Surface struct {
	api  API
	self string
}

var _ engine.Surface = (*Surface)(nil)

// NewSurface creates a Surface acting as the bot user selfID.
func NewSurface(api API, selfID string) *Surface {
	return &Surface{api: api, self: selfID}
}

// Self returns the bot user id.
func (s *Surface) Self() string {
	return s.self
}

// History pages backwards from the newest message until limit messages are
// collected or the channel is exhausted, then returns them oldest first.
func (s *Surface) History(ctx context.Context, channelID string, limit int) ([]engine.Message, error) {
	var (
		newestFirst []*discordgo.Message
		before      string
	)

	for len(newestFirst) < limit {
		n := min(pageSize, limit-len(newestFirst))
		page, err := s.api.ChannelMessages(channelID, n, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("channel %s history: %w", channelID, err)
		}
		newestFirst = append(newestFirst, page...)
		if len(page) < n {
			break
		}
		before = page[len(page)-1].ID
	}

	slices.Reverse(newestFirst)

	out := make([]engine.Message, len(newestFirst))
	for i, m := range newestFirst {
		out[i] = toMessage(i, m)
	}
	return out, nil
}

// Send posts a message with an optional attachment.
func (s *Surface) Send(ctx context.Context, channelID, content string, att *engine.Attachment) (engine.Message, error) {
	data := &discordgo.MessageSend{
		Content: content,
		Files:   files(att),
	}
	m, err := s.api.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx))
	if err != nil {
		return engine.Message{}, fmt.Errorf("send to %s: %w", channelID, err)
	}
	return toMessage(-1, m), nil
}

// Edit replaces a message's content and attachments. A nil attachment
// clears every existing attachment.
func (s *Surface) Edit(ctx context.Context, channelID, messageID, content string, att *engine.Attachment) (engine.Message, error) {
	edit := discordgo.NewMessageEdit(channelID, messageID).SetContent(content)
	keep := []*discordgo.MessageAttachment{}
	edit.Attachments = &keep
	edit.Files = files(att)

	m, err := s.api.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	if err != nil {
		return engine.Message{}, fmt.Errorf("edit %s/%s: %w", channelID, messageID, err)
	}
	return toMessage(-1, m), nil
}

// Delete removes a message.
func (s *Surface) Delete(ctx context.Context, channelID, messageID string) error {
	if err := s.api.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

func files(att *engine.Attachment) []*discordgo.File {
	if att == nil {
		return nil
	}
	return []*discordgo.File{{
		Name:   att.Name,
		Reader: bytes.NewReader(att.Data),
	}}
}

func toMessage(position int, m *discordgo.Message) engine.Message {
	msg := engine.Message{
		ID:       m.ID,
		Position: position,
		Type:     messageType(m.Type),
		Content:  m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, a.Filename)
	}
	return msg
}

// messageType maps Discord message types onto the engine's two classes.
// Only regular posts and replies can be edited or deleted by the bot. A
// member's reply in the display channel is a foreign post and gets cleared.
func messageType(t discordgo.MessageType) engine.MessageType {
	switch t {
	case discordgo.MessageTypeDefault, discordgo.MessageTypeReply:
		return engine.MessageStandard
	default:
		return engine.MessageSystem
	}
}

// Notifier posts plain-text lines to a log channel.
type Notifier struct {
	api API
}

var _ engine.Notifier = (*Notifier)(nil)

// NewNotifier creates a Notifier.
func NewNotifier(api API) *Notifier {
	return &Notifier{api: api}
}

// Notify posts text to channelID.
func (n *Notifier) Notify(ctx context.Context, channelID, text string) error {
	if _, err := n.api.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("notify %s: %w", channelID, err)
	}
	return nil
}
