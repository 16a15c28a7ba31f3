package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/teleiosites/shepherd-backend/internal/models"
)

// GenerateParams carries the context for one personalized message.
type GenerateParams struct {
	ContactName      string
	ContactCategory  string
	Context          string
	Tone             string
	SenderName       string
	OrganizationName string
}

// Generator produces message text. Implementations must not fail outward:
// any internal error degrades to the fallback greeting so workflow runs keep
// going.
type Generator interface {
	Generate(org *models.Organization, params GenerateParams) string
}

// FallbackGreeting is the text used whenever generation fails.
func FallbackGreeting(contactName, senderName string) string {
	return fmt.Sprintf("Hi %s, thinking of you today! - %s", contactName, senderName)
}

// AIService generates messages through the organization's configured
// provider: Gemini, or any OpenAI-compatible chat API (OpenAI, DeepSeek,
// Groq, custom base URL).
type AIService struct {
	client *http.Client
}

// NewAIService creates the generator with a bounded request timeout.
func NewAIService() *AIService {
	return &AIService{client: &http.Client{Timeout: 30 * time.Second}}
}

// Generate builds the prompt and calls the configured provider. On any
// failure it logs and returns the fallback greeting.
func (s *AIService) Generate(org *models.Organization, params GenerateParams) string {
	if params.Tone == "" {
		params.Tone = "encouraging"
	}
	if params.SenderName == "" {
		params.SenderName = "Pastor"
	}
	if params.OrganizationName == "" {
		params.OrganizationName = org.Name
	}

	prompt := fmt.Sprintf(`You are %s, a leader at %s.
Write a short, personal, and %s WhatsApp message to %s, who is a %s.

CONTEXT/GOAL:
%s

GUIDELINES:
- Keep it under 50 words
- Be warm and personal
- Use 1-2 emojis
- Do not include subject lines or placeholders
- End with "- %s"`,
		params.SenderName, params.OrganizationName, params.Tone,
		params.ContactName, params.ContactCategory, params.Context, params.SenderName)

	text, err := s.complete(org, prompt)
	if err != nil {
		log.Printf("⚠️  Message generation failed (%s): %v", providerName(org), err)
		return FallbackGreeting(params.ContactName, params.SenderName)
	}
	return strings.TrimSpace(text)
}

func providerName(org *models.Organization) string {
	if org.AIProvider == "" {
		return "gemini"
	}
	return org.AIProvider
}

func (s *AIService) complete(org *models.Organization, prompt string) (string, error) {
	apiKey := org.AIAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return "", fmt.Errorf("no AI API key configured")
	}

	switch providerName(org) {
	case "gemini":
		return s.generateGemini(apiKey, org.AIModel, prompt)
	case "openai":
		return s.generateOpenAICompatible("https://api.openai.com/v1", apiKey, orDefault(org.AIModel, "gpt-3.5-turbo"), prompt)
	case "deepseek":
		return s.generateOpenAICompatible("https://api.deepseek.com/v1", apiKey, orDefault(org.AIModel, "deepseek-chat"), prompt)
	case "groq":
		return s.generateOpenAICompatible("https://api.groq.com/openai/v1", apiKey, orDefault(org.AIModel, "llama-3.1-8b-instant"), prompt)
	case "custom":
		if org.AIBaseURL == "" {
			return "", fmt.Errorf("custom provider requires a base URL")
		}
		return s.generateOpenAICompatible(org.AIBaseURL, apiKey, orDefault(org.AIModel, "default"), prompt)
	}
	return "", fmt.Errorf("unsupported AI provider %q", org.AIProvider)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func (s *AIService) generateGemini(apiKey, model, prompt string) (string, error) {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	url := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s",
		model, apiKey)

	body, _ := json.Marshal(map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	})

	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func (s *AIService) generateOpenAICompatible(baseURL, apiKey, model, prompt string) (string, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens": 200,
	})

	req, err := http.NewRequest(http.MethodPost, strings.TrimSuffix(baseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("provider returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
