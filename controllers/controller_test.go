package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"dispatch/config"
	"dispatch/realtime"
	"dispatch/store"
)

// noopEmitter satisfies store.Emitter for handler tests that don't
// assert on realtime delivery.
type noopEmitter struct{}

func (noopEmitter) BroadcastTeam(string, string, interface{})    {}
func (noopEmitter) BroadcastVisitor(string, string, interface{}) {}
func (noopEmitter) DisconnectVisitor(string)                     {}

func setupApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	config.DB = db

	st := store.New(db, noopEmitter{}, log.New(io.Discard, "", 0))
	sessionController := NewSessionController(db, st, log.New(io.Discard, "", 0))
	workspaceController := NewWorkspaceController(db, realtime.NewPresence(), log.New(io.Discard, "", 0))
	inviteController := NewInviteController(db, log.New(io.Discard, "", 0))
	analyticsController := NewAnalyticsController(db, st, log.New(io.Discard, "", 0))

	app := fiber.New()
	app.Post("/api/auth/sign_up", SignUp)
	app.Post("/api/auth/sign_in", SignIn)
	app.Post("/api/auth/reset_password", ResetPassword)
	app.Post("/api/user/me", Me)
	app.Post("/api/workspaces/new", workspaceController.Create)
	app.Post("/api/workspaces/:id", workspaceController.Get)
	app.Delete("/api/workspaces/:id/users/:userId", workspaceController.RemoveMember)
	app.Post("/api/invites/new", inviteController.Create)
	app.Post("/api/invites", inviteController.List)
	app.Post("/api/invites/:id/accept", inviteController.Accept)
	app.Post("/api/invites/:id", inviteController.PublicInfo)
	app.Delete("/api/invites/:id", inviteController.Delete)
	app.Post("/api/analytics/:teamId", analyticsController.Get)
	app.Post("/api/sessions/create", sessionController.Create)
	app.Post("/api/sessions/:teamId", sessionController.List)
	app.Post("/api/session/:id/create", sessionController.Append)
	app.Post("/api/session/:id", sessionController.Get)
	app.Patch("/api/session/:id", sessionController.Update)
	return app
}

func request(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, path, err)
	}

	var decoded map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp, decoded
}

// signUp registers a user and returns their auth token.
func signUp(t *testing.T, app *fiber.App, name, email string) string {
	t.Helper()

	resp, body := request(t, app, "POST", "/api/auth/sign_up", map[string]string{
		"name":     name,
		"email":    email,
		"password": "hunter2hunter2",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("sign_up status = %d, body = %v", resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("sign_up returned no token")
	}
	return token
}

// createWorkspace makes a team owned by the token's user and returns
// its id.
func createWorkspace(t *testing.T, app *fiber.App, token, name string) string {
	t.Helper()

	resp, body := request(t, app, "POST", "/api/workspaces/new", map[string]string{
		"token": token,
		"name":  name,
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("workspace create status = %d, body = %v", resp.StatusCode, body)
	}
	data := body["data"].(map[string]interface{})
	return data["id"].(string)
}

// openSession starts a visitor session and returns its id and token.
func openSession(t *testing.T, app *fiber.App, teamID string) (string, string) {
	t.Helper()

	resp, body := request(t, app, "POST", "/api/sessions/create", map[string]string{
		"teamId": teamID,
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("session create status = %d, body = %v", resp.StatusCode, body)
	}
	data := body["data"].(map[string]interface{})
	return data["id"].(string), data["token"].(string)
}
