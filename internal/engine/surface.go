package engine

import (
	"context"
	"slices"

	"github.com/roach88/rollcall/internal/roster"
)

// MessageType classifies messages on a surface.
type MessageType string

const (
	// MessageStandard is a regular message that may be edited or deleted.
	MessageStandard MessageType = "standard"

	// MessageSystem is a surface-generated notice the engine never touches.
	MessageSystem MessageType = "system"
)

// Message is one entry of a surface's message log.
type Message struct {
	ID string

	// Position is 0-based within the window, oldest first.
	Position int

	AuthorID    string
	Type        MessageType
	Content     string
	Attachments []string // attachment file names
}

// IsStandard reports whether the message is a regular message.
func (m Message) IsStandard() bool {
	return m.Type == MessageStandard
}

// OwnedBy reports whether the message belongs to the given identity:
// authored by it and of standard type.
func (m Message) OwnedBy(self string) bool {
	return m.AuthorID == self && m.IsStandard()
}

// Carries reports whether the message holds exactly the given attachment.
func (m Message) Carries(att *Attachment) bool {
	if att == nil {
		return len(m.Attachments) == 0
	}
	return slices.Equal(m.Attachments, []string{att.Name})
}

// Surface is the remote ordered message log the engine writes to.
//
// Implementations must be safe for use from multiple goroutines; the engine
// serializes writes per surface id itself.
type Surface interface {
	// History returns up to limit of the most recent messages, oldest first.
	History(ctx context.Context, surfaceID string, limit int) ([]Message, error)

	// Send appends a message, with an optional attachment.
	Send(ctx context.Context, surfaceID, content string, att *Attachment) (Message, error)

	// Edit replaces a message's content. A nil attachment clears any
	// existing attachments; a non-nil one replaces them.
	Edit(ctx context.Context, surfaceID, messageID, content string, att *Attachment) (Message, error)

	// Delete removes a message.
	Delete(ctx context.Context, surfaceID, messageID string) error

	// Self returns the identity the surface acts as.
	Self() string
}

// Notifier posts operational diagnostics to a log surface.
type Notifier interface {
	Notify(ctx context.Context, surfaceID, text string) error
}

// Roster is the read side of the roster store consumed by the engine.
type Roster interface {
	GetSettings(ctx context.Context, communityID string) (roster.Settings, error)
	Snapshot(ctx context.Context, communityID string) (roster.Snapshot, error)
}
