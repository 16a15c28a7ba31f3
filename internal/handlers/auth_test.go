package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/teleiosites/shepherd-backend/internal/models"
	"github.com/teleiosites/shepherd-backend/internal/routes"
	"github.com/teleiosites/shepherd-backend/internal/storage"
)

func newApp(t *testing.T) (*fiber.App, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	app := fiber.New()
	routes.SetupRoutes(app, store, fakeGenerator{})
	return app, store
}

func doAuthJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}

	var parsed map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&parsed)
	return resp, parsed
}

func registerAccount(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp, body := doAuthJSON(t, app, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"organization_name": "Grace Chapel",
		"full_name":         "Pastor Dan",
		"email":             "dan@example.com",
		"password":          "sufficiently-long",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatal("register returned no access token")
	}
	return token
}

func TestRegisterAndLogin(t *testing.T) {
	app, _ := newApp(t)
	registerAccount(t, app)

	resp, body := doAuthJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
		"email":    "dan@example.com",
		"password": "sufficiently-long",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatal("login returned no access token")
	}

	resp, body = doAuthJSON(t, app, http.MethodGet, "/api/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d, want 200", resp.StatusCode)
	}
	code, _ := body["connection_code"].(string)
	if len(code) != models.ConnectionCodeLength {
		t.Fatalf("connection code %q, want %d characters", code, models.ConnectionCodeLength)
	}

	resp, _ = doAuthJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
		"email":    "dan@example.com",
		"password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d, want 401", resp.StatusCode)
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	app, _ := newApp(t)

	resp, _ := doAuthJSON(t, app, http.MethodGet, "/api/contacts", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", resp.StatusCode)
	}

	resp, _ = doAuthJSON(t, app, http.MethodGet, "/api/contacts", "not-a-jwt", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", resp.StatusCode)
	}
}

func TestCreateContactFiresDayZero(t *testing.T) {
	app, store := newApp(t)
	token := registerAccount(t, app)

	// Find the organization the registration created.
	user, err := store.GetUserByEmail("dan@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	step := &models.WorkflowStep{
		OrganizationID: user.OrganizationID,
		Category:       "First Timer",
		Day:            0,
		Title:          "Welcome",
		Prompt:         "Welcome them warmly",
	}
	if err := store.CreateWorkflowStep(step); err != nil {
		t.Fatalf("CreateWorkflowStep: %v", err)
	}

	resp, body := doAuthJSON(t, app, http.MethodPost, "/api/contacts", token, map[string]interface{}{
		"name":     "Ada",
		"phone":    "+1 555 123 4567",
		"category": "First Timer",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create contact status = %d, want 201", resp.StatusCode)
	}
	if body["welcome_queued"] != true {
		t.Fatal("day-zero message was not queued")
	}
	contact := body["contact"].(map[string]interface{})
	if contact["phone"] != "15551234567" {
		t.Errorf("phone = %v, want normalized digits", contact["phone"])
	}

	messages, err := store.ListMessages(user.OrganizationID, storage.MessageFilter{Status: models.MessageStatusPending})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "Hello Ada" {
		t.Fatalf("pending messages = %d, want the generated day-zero message", len(messages))
	}

	// Same phone again is a conflict.
	resp, _ = doAuthJSON(t, app, http.MethodPost, "/api/contacts", token, map[string]interface{}{
		"name":     "Ada Again",
		"phone":    "15551234567",
		"category": "First Timer",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate phone status = %d, want 409", resp.StatusCode)
	}
}

func TestCreateContactWithoutDayZeroStep(t *testing.T) {
	app, store := newApp(t)
	token := registerAccount(t, app)

	resp, body := doAuthJSON(t, app, http.MethodPost, "/api/contacts", token, map[string]interface{}{
		"name":     "Ben",
		"phone":    "15550000001",
		"category": "Member",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create contact status = %d, want 201", resp.StatusCode)
	}
	if body["welcome_queued"] != false {
		t.Fatal("welcome_queued = true with no day-zero step defined")
	}

	user, _ := store.GetUserByEmail("dan@example.com")
	messages, _ := store.ListMessages(user.OrganizationID, storage.MessageFilter{})
	if len(messages) != 0 {
		t.Fatalf("messages = %d, want 0", len(messages))
	}
}
