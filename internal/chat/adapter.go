// Package chat bridges storefront operations to chat platforms (Discord,
// Slack). Platform specifics live in subpackages behind the Adapter
// interface.
package chat

import (
	"context"
	"time"
)

// Adapter is the interface platform-specific implementations satisfy. Each
// adapter owns connection management and message I/O for one platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the adapter is closed. Listen must only
	// be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage represents a message received from the chat platform.
type InboundMessage struct {
	Platform  string // e.g. "slack", "discord"
	ChannelID string // platform-specific channel identifier
	UserID    string // platform-specific user identifier
	UserName  string // human-readable username
	Text      string // raw message text
	Timestamp time.Time
}

// OutboundMessage represents a message to be sent to the chat platform.
type OutboundMessage struct {
	ChannelID string
	Text      string
}

// BotUserIDer is an optional interface adapters can implement to expose
// the bot's own user ID for self-message filtering.
type BotUserIDer interface {
	BotUserID() string
}
