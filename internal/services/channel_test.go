package services

import (
	"testing"

	"github.com/teleiosites/shepherd-backend/internal/models"
)

func TestRouteChannel(t *testing.T) {
	// Complete Meta credentials win, even with a bridge registered.
	org := &models.Organization{
		WhatsAppPhoneID:     "12345",
		WhatsAppAccessToken: "token",
		WPPConnectBridgeURL: "http://bridge.local:3001",
	}
	if kind := RouteChannel(org).Kind(); kind != ChannelPush {
		t.Fatalf("kind = %q, want push", kind)
	}

	// Partial Meta credentials are not enough.
	org = &models.Organization{
		WhatsAppPhoneID:     "12345",
		WPPConnectBridgeURL: "http://bridge.local:3001",
	}
	channel := RouteChannel(org)
	poll, ok := channel.(*PollChannel)
	if !ok {
		t.Fatalf("kind = %q, want poll", channel.Kind())
	}
	if poll.BridgeURL != "http://bridge.local:3001" {
		t.Errorf("bridge url = %q", poll.BridgeURL)
	}

	// No configuration at all falls back to the default bridge URL.
	channel = RouteChannel(&models.Organization{})
	poll, ok = channel.(*PollChannel)
	if !ok {
		t.Fatalf("kind = %q, want poll", channel.Kind())
	}
	if poll.BridgeURL != DefaultBridgeURL {
		t.Errorf("bridge url = %q, want default", poll.BridgeURL)
	}
}

func TestRouteChannelReevaluates(t *testing.T) {
	org := &models.Organization{}
	if RouteChannel(org).Kind() != ChannelPoll {
		t.Fatal("unconfigured organization should poll")
	}

	org.WhatsAppPhoneID = "12345"
	org.WhatsAppAccessToken = "token"
	if RouteChannel(org).Kind() != ChannelPush {
		t.Fatal("adding credentials must flip the channel to push")
	}

	org.WhatsAppAccessToken = ""
	if RouteChannel(org).Kind() != ChannelPoll {
		t.Fatal("removing credentials must flip the channel back to poll")
	}
}
