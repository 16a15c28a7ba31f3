package services

import "github.com/teleiosites/shepherd-backend/internal/models"

// DefaultBridgeURL is the poll-channel fallback when an organization has no
// delivery configuration at all. Sends queued against it fail at delivery
// time rather than being dropped silently.
const DefaultBridgeURL = "http://localhost:3001"

// Channel is the delivery path selected for an organization: either the Meta
// Cloud API (push) or the polling bridge queue (poll).
type Channel interface {
	Kind() string
}

// Channel kinds
const (
	ChannelPush = "push"
	ChannelPoll = "poll"
)

// PushChannel delivers synchronously through the Meta Cloud API.
type PushChannel struct {
	Meta *MetaService
}

func (c *PushChannel) Kind() string { return ChannelPush }

// PollChannel delivers by queueing: messages stay Pending until the bridge
// at BridgeURL polls them and reports an outcome.
type PollChannel struct {
	BridgeURL string
}

func (c *PollChannel) Kind() string { return ChannelPoll }

// RouteChannel selects the delivery channel for an organization. Push wins
// whenever Meta credentials are complete, even if a bridge URL is also set.
// The decision is re-evaluated on every call; nothing is cached across
// configuration changes.
func RouteChannel(org *models.Organization) Channel {
	if org.HasPushCredentials() {
		return &PushChannel{Meta: NewMetaService(org.WhatsAppPhoneID, org.WhatsAppAccessToken)}
	}
	bridgeURL := org.WPPConnectBridgeURL
	if bridgeURL == "" {
		bridgeURL = DefaultBridgeURL
	}
	return &PollChannel{BridgeURL: bridgeURL}
}
