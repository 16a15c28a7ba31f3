package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WPPConnectService talks to a self-hosted WPPConnect bridge. The server
// never pushes messages through it (the bridge polls for its own work), but
// the dashboard's connection status check is proxied here.
type WPPConnectService struct {
	bridgeURL string
	client    *http.Client
}

// NewWPPConnectService creates a client for one organization's bridge URL.
func NewWPPConnectService(bridgeURL string) *WPPConnectService {
	return &WPPConnectService{
		bridgeURL: bridgeURL,
		client:    &http.Client{Timeout: 5 * time.Second},
	}
}

// GetStatus asks the bridge whether its WhatsApp session is up.
func (s *WPPConnectService) GetStatus() map[string]interface{} {
	resp, err := s.client.Get(s.bridgeURL + "/api/status")
	if err != nil {
		return map[string]interface{}{
			"status":   "disconnected",
			"provider": "wppconnect",
			"message":  "Bridge unreachable: " + err.Error(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return map[string]interface{}{
			"status":   "error",
			"provider": "wppconnect",
			"message":  fmt.Sprintf("Bridge returned %d", resp.StatusCode),
		}
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return map[string]interface{}{
			"status":   "error",
			"provider": "wppconnect",
			"message":  "Invalid bridge response",
		}
	}
	status["provider"] = "wppconnect"
	status["bridge_url"] = s.bridgeURL
	return status
}
