package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/teleiosites/shepherd-backend/internal/utils"
)

// DefaultMetaAPIURL is the Meta Graph API base used unless WHATSAPP_API_URL
// overrides it.
const DefaultMetaAPIURL = "https://graph.facebook.com/v18.0"

// SendResult is the normalized outcome of a channel send.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	Provider  string `json:"provider"`
}

// MetaService sends WhatsApp messages through the Meta Cloud API (push
// channel). Calls are synchronous: the provider either returns a message id
// or a structured error.
type MetaService struct {
	phoneNumberID string
	accessToken   string
	baseURL       string
	client        *http.Client
}

// NewMetaService creates a push sender for one organization's credentials.
func NewMetaService(phoneNumberID, accessToken string) *MetaService {
	baseURL := os.Getenv("WHATSAPP_API_URL")
	if baseURL == "" {
		baseURL = DefaultMetaAPIURL
	}
	return &MetaService{
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		baseURL:       baseURL,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

type metaAPIResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SendMessage sends a text message. The recipient phone is normalized to the
// digits-only form the API expects.
func (s *MetaService) SendMessage(toPhone, message string) *SendResult {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                utils.NormalizePhone(toPhone),
		"type":              "text",
		"text": map[string]interface{}{
			"preview_url": true,
			"body":        message,
		},
	}
	return s.post(payload)
}

// SendMedia sends an image, video or document. The media must already be an
// externally fetchable URL; base64 payloads are rejected up front rather than
// attempting an upload.
func (s *MetaService) SendMedia(toPhone, mediaType, mediaData, caption, filename string) *SendResult {
	metaType := "document"
	switch mediaType {
	case "image", "video":
		metaType = mediaType
	}

	if !isHTTPURL(mediaData) {
		return &SendResult{
			Success:  false,
			Error:    "Base64 media upload not supported on the Meta channel. Provide a media URL or use the bridge.",
			Provider: "meta",
		}
	}

	media := map[string]interface{}{"link": mediaData}
	if caption != "" && metaType != "document" {
		media["caption"] = caption
	}
	if metaType == "document" && filename != "" {
		media["filename"] = filename
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                utils.NormalizePhone(toPhone),
		"type":              metaType,
		metaType:            media,
	}
	return s.post(payload)
}

func (s *MetaService) post(payload map[string]interface{}) *SendResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return &SendResult{Success: false, Error: err.Error(), Provider: "meta"}
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &SendResult{Success: false, Error: err.Error(), Provider: "meta"}
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("❌ Meta API request failed: %v", err)
		return &SendResult{Success: false, Error: err.Error(), Provider: "meta"}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var parsed metaAPIResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		errText := parsed.Error.Message
		if errText == "" {
			errText = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		log.Printf("❌ Meta API returned %d: %s", resp.StatusCode, errText)
		return &SendResult{Success: false, Error: errText, Provider: "meta"}
	}

	messageID := ""
	if len(parsed.Messages) > 0 {
		messageID = parsed.Messages[0].ID
	}
	return &SendResult{Success: true, MessageID: messageID, Provider: "meta"}
}

// GetStatus verifies the credentials by fetching the phone number record.
func (s *MetaService) GetStatus() map[string]interface{} {
	url := fmt.Sprintf("%s/%s?fields=id,verified_name", s.baseURL, s.phoneNumberID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return map[string]interface{}{"status": "error", "provider": "meta", "message": err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return map[string]interface{}{"status": "disconnected", "provider": "meta", "message": err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return map[string]interface{}{
			"status":   "error",
			"provider": "meta",
			"message":  fmt.Sprintf("Meta API returned %d", resp.StatusCode),
		}
	}

	var data struct {
		VerifiedName string `json:"verified_name"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&data)
	return map[string]interface{}{
		"status":          "connected",
		"provider":        "meta",
		"verified_name":   data.VerifiedName,
		"phone_number_id": s.phoneNumberID,
	}
}

func isHTTPURL(s string) bool {
	return len(s) > 7 && (s[:7] == "http://" || (len(s) > 8 && s[:8] == "https://"))
}
