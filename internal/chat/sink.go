package chat

import (
	"context"
	"fmt"
)

// ManagerSink posts checkout order texts to a fixed manager channel on one
// platform. It implements storefront.Sink.
type ManagerSink struct {
	adapter   Adapter
	channelID string
}

// NewManagerSink creates a ManagerSink.
func NewManagerSink(adapter Adapter, channelID string) (*ManagerSink, error) {
	if adapter == nil {
		return nil, fmt.Errorf("chat: manager sink: adapter is required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("chat: manager sink: channel ID is required")
	}
	return &ManagerSink{adapter: adapter, channelID: channelID}, nil
}

// Deliver posts the order text to the manager channel. A failure here
// aborts checkout and keeps the cart intact.
func (s *ManagerSink) Deliver(ctx context.Context, orderText string) error {
	if err := s.adapter.Send(ctx, OutboundMessage{ChannelID: s.channelID, Text: orderText}); err != nil {
		return fmt.Errorf("chat: manager sink: %w", err)
	}
	return nil
}
