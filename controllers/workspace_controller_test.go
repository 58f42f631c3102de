package controller

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"

	"dispatch/config"
	"dispatch/models"
)

func TestWorkspaceMembers(t *testing.T) {
	app := setupApp(t)

	ownerToken := signUp(t, app, "Dana", "dana@example.com")
	teamID := createWorkspace(t, app, ownerToken, "Support")

	resp, body := request(t, app, "POST", "/api/workspaces/"+teamID, map[string]string{
		"token": ownerToken,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("workspace get status = %d, body = %v", resp.StatusCode, body)
	}
	data := body["data"].(map[string]interface{})
	users := data["users"].([]interface{})
	if len(users) != 1 {
		t.Fatalf("users = %d, want 1", len(users))
	}
	owner := users[0].(map[string]interface{})
	if owner["name"] != "Dana" || owner["role"] != "owner" {
		t.Errorf("owner = %v", owner)
	}
	// No websocket connection in this test, so nobody is online
	if owner["online"] != false {
		t.Errorf("online = %v, want false", owner["online"])
	}

	// Non-members cannot read the roster
	outsiderToken := signUp(t, app, "Eve", "eve@example.com")
	resp, _ = request(t, app, "POST", "/api/workspaces/"+teamID, map[string]string{
		"token": outsiderToken,
	})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("outsider get status = %d, want 401", resp.StatusCode)
	}
}

func TestLastMemberLeavingDeletesWorkspace(t *testing.T) {
	app := setupApp(t)

	ownerToken := signUp(t, app, "Dana", "dana@example.com")
	teamID := createWorkspace(t, app, ownerToken, "Support")
	sessionID, _ := openSession(t, app, teamID)

	var user models.User
	if err := config.DB.First(&user, "email = ?", "dana@example.com").Error; err != nil {
		t.Fatalf("load user: %v", err)
	}

	path := fmt.Sprintf("/api/workspaces/%s/users/%d", teamID, user.ID)
	resp, _ := request(t, app, "DELETE", path, map[string]string{
		"token": ownerToken,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("leave status = %d", resp.StatusCode)
	}

	var teams int64
	config.DB.Model(&models.Team{}).Where("id = ?", teamID).Count(&teams)
	if teams != 0 {
		t.Error("empty workspace should have been deleted")
	}

	var sessions int64
	config.DB.Model(&models.Session{}).Where("id = ?", sessionID).Count(&sessions)
	if sessions != 0 {
		t.Error("workspace sessions should be gone with it")
	}
}
