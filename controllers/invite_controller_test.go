package controller

import (
	"testing"

	"github.com/gofiber/fiber/v2"

	"dispatch/config"
	"dispatch/models"
)

func TestInviteFlow(t *testing.T) {
	app := setupApp(t)

	ownerToken := signUp(t, app, "Dana", "dana@example.com")
	teamID := createWorkspace(t, app, ownerToken, "Support")

	resp, body := request(t, app, "POST", "/api/invites/new", map[string]string{
		"token":  ownerToken,
		"teamId": teamID,
		"email":  "sam@example.com",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("invite create status = %d, body = %v", resp.StatusCode, body)
	}
	inviteData := body["data"].(map[string]interface{})
	inviteID := inviteData["id"].(string)

	// Duplicate pending invite
	resp, _ = request(t, app, "POST", "/api/invites/new", map[string]string{
		"token":  ownerToken,
		"teamId": teamID,
		"email":  "sam@example.com",
	})
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("duplicate invite status = %d, want 409", resp.StatusCode)
	}

	// Pending list shows it
	resp, body = request(t, app, "POST", "/api/invites", map[string]string{
		"token":  ownerToken,
		"teamId": teamID,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("invite list status = %d", resp.StatusCode)
	}
	if invites := body["data"].([]interface{}); len(invites) != 1 {
		t.Errorf("pending invites = %d, want 1", len(invites))
	}

	// Public info needs no credentials
	resp, body = request(t, app, "POST", "/api/invites/"+inviteID, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("public info status = %d", resp.StatusCode)
	}
	info := body["data"].(map[string]interface{})
	if info["team"] != "Support" || info["email"] != "sam@example.com" {
		t.Errorf("public info = %v", info)
	}
	if info["isUser"] != false {
		t.Error("isUser should be false before the invitee signs up")
	}

	// The capability token never appears in responses; read it from
	// the table the way the emailed link would carry it
	var invite models.Invite
	if err := config.DB.First(&invite, "id = ?", inviteID).Error; err != nil {
		t.Fatalf("load invite: %v", err)
	}
	if _, exposed := inviteData["token"]; exposed {
		t.Error("capability token leaked in create response")
	}

	// Invitee signs up and accepts
	inviteeToken := signUp(t, app, "Sam", "sam@example.com")

	// Without the capability token acceptance fails
	resp, _ = request(t, app, "POST", "/api/invites/"+inviteID+"/accept", map[string]string{
		"token": inviteeToken,
	})
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("accept without capability status = %d, want 404", resp.StatusCode)
	}

	resp, body = request(t, app, "POST", "/api/invites/"+inviteID+"/accept?token="+invite.Token, map[string]string{
		"token": inviteeToken,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("accept status = %d, body = %v", resp.StatusCode, body)
	}
	if body["id"] != teamID {
		t.Errorf("accept returned id = %v, want %s", body["id"], teamID)
	}

	// Membership granted, invite consumed
	resp, body = request(t, app, "POST", "/api/sessions/"+teamID, map[string]string{
		"token": inviteeToken,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("new member list status = %d, want 200", resp.StatusCode)
	}
	resp, body = request(t, app, "POST", "/api/invites", map[string]string{
		"token":  ownerToken,
		"teamId": teamID,
	})
	if invites := body["data"].([]interface{}); len(invites) != 0 {
		t.Errorf("pending invites after accept = %d, want 0", len(invites))
	}
}

func TestInviteRevocation(t *testing.T) {
	app := setupApp(t)

	ownerToken := signUp(t, app, "Dana", "dana@example.com")
	teamID := createWorkspace(t, app, ownerToken, "Support")

	resp, body := request(t, app, "POST", "/api/invites/new", map[string]string{
		"token":  ownerToken,
		"teamId": teamID,
		"email":  "sam@example.com",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("invite create status = %d", resp.StatusCode)
	}
	inviteID := body["data"].(map[string]interface{})["id"].(string)

	// Outsiders cannot revoke
	outsiderToken := signUp(t, app, "Eve", "eve@example.com")
	resp, _ = request(t, app, "DELETE", "/api/invites/"+inviteID, map[string]string{
		"token": outsiderToken,
	})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("outsider delete status = %d, want 401", resp.StatusCode)
	}

	resp, _ = request(t, app, "DELETE", "/api/invites/"+inviteID, map[string]string{
		"token": ownerToken,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("owner delete status = %d, want 200", resp.StatusCode)
	}

	resp, _ = request(t, app, "POST", "/api/invites/"+inviteID, nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("public info after revoke status = %d, want 404", resp.StatusCode)
	}
}
