package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// NewSession creates a bot session without connecting to the gateway.
// REST calls work immediately; call Open for slash commands.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("discord token is empty")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	return s, nil
}

// UserGetter is the subset of *discordgo.Session used by SelfID.
type UserGetter interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

// SelfID returns the bot's own user id over REST.
func SelfID(ctx context.Context, g UserGetter) (string, error) {
	u, err := g.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("lookup bot user: %w", err)
	}
	return u.ID, nil
}
