package controller

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"dispatch/gate"
	"dispatch/models"
	"dispatch/utils"
)

const inviteTTL = 7 * 24 * time.Hour

type InviteController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewInviteController(db *gorm.DB, logger *log.Logger) *InviteController {
	return &InviteController{DB: db, Logger: logger}
}

type CreateInviteRequest struct {
	Token  string `json:"token" form:"token" validate:"required"`
	TeamID string `json:"teamId" form:"teamId" validate:"required"`
	Email  string `json:"email" form:"email" validate:"required,email"`
}

type ListInvitesRequest struct {
	Token  string `json:"token" form:"token" validate:"required"`
	TeamID string `json:"teamId" form:"teamId" validate:"required"`
}

type AcceptInviteRequest struct {
	Token string `json:"token" form:"token" validate:"required"`
}

// Create issues an invitation and emails the capability link to the
// invitee.
func (ic *InviteController) Create(c *fiber.Ctx) error {
	var req CreateInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}
	if err := utils.ValidateEmailAddress(req.Email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "email must be a valid email")
	}

	identity, err := gate.ResolveAgent(ic.DB, req.Token, req.TeamID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Please sign in again")
	}

	var team models.Team
	if err := ic.DB.First(&team, "id = ?", req.TeamID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "workspace not found")
	}

	var existing models.Invite
	err = ic.DB.Where("team_id = ? AND email = ? AND expires_at > ?", req.TeamID, req.Email, time.Now()).
		First(&existing).Error
	if err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "An invitation for this email is already pending")
	}

	id, err := utils.GenerateID()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}
	captoken, err := utils.GenerateSecureToken()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	invite := models.Invite{
		ID:        id,
		Token:     captoken,
		TeamID:    req.TeamID,
		Email:     req.Email,
		ExpiresAt: time.Now().Add(inviteTTL),
	}
	if err := ic.DB.Create(&invite).Error; err != nil {
		utils.LogError("invite_create", err, map[string]interface{}{"team_id": req.TeamID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	if err := utils.SendInviteEmail(req.Email, team.Name, invite.ID, invite.Token); err != nil {
		utils.LogError("invite_email", err, map[string]interface{}{"invite_id": invite.ID})
	}

	utils.LogEvent("invite_created", map[string]interface{}{
		"invite_id": invite.ID,
		"team_id":   req.TeamID,
		"user_id":   identity.UserID,
	})
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(invite))
}

// List returns the team's pending invitations.
func (ic *InviteController) List(c *fiber.Ctx) error {
	var req ListInvitesRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	if _, err := gate.ResolveAgent(ic.DB, req.Token, req.TeamID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Please sign in again")
	}

	var invites []models.Invite
	err := ic.DB.Where("team_id = ? AND expires_at > ?", req.TeamID, time.Now()).
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	return c.JSON(utils.SuccessResponse(invites))
}

// PublicInfo shows an invitee what they were invited to before they
// sign in. Knowing the invite id alone reveals nothing sensitive.
func (ic *InviteController) PublicInfo(c *fiber.Ctx) error {
	var invite models.Invite
	err := ic.DB.Preload("Team").First(&invite, "id = ?", c.Params("id")).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "invite not found")
	}
	if invite.Expired(time.Now()) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "invite not found")
	}

	var count int64
	ic.DB.Model(&models.User{}).Where("email = ?", invite.Email).Count(&count)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"team":      invite.Team.Name,
		"email":     invite.Email,
		"expiresAt": invite.ExpiresAt,
		"isUser":    count > 0,
	}))
}

// Accept consumes an invitation. The capability token from the emailed
// link rides the query string; the signed-in user's auth token rides
// the body.
func (ic *InviteController) Accept(c *fiber.Ctx) error {
	var req AcceptInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	user, err := gate.ResolveUser(ic.DB, req.Token)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Please sign in again")
	}

	var invite models.Invite
	err = ic.DB.Where("id = ? AND token = ?", c.Params("id"), c.Query("token")).
		First(&invite).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "invite not found")
	}
	if invite.Expired(time.Now()) {
		ic.DB.Delete(&invite)
		return utils.ErrorResponse(c, fiber.StatusNotFound, "invite not found")
	}

	err = ic.DB.Transaction(func(tx *gorm.DB) error {
		var membership models.TeamMember
		err := tx.Where("team_id = ? AND user_id = ?", invite.TeamID, user.ID).
			First(&membership).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			membership = models.TeamMember{
				TeamID: invite.TeamID,
				UserID: user.ID,
				Role:   "member",
			}
			if err := tx.Create(&membership).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&invite).Error
	})
	if err != nil {
		utils.LogError("invite_accept", err, map[string]interface{}{"invite_id": invite.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	utils.LogEvent("invite_accepted", map[string]interface{}{
		"invite_id": invite.ID,
		"team_id":   invite.TeamID,
		"user_id":   user.ID,
	})
	return c.JSON(fiber.Map{"id": invite.TeamID})
}

// Delete revokes a pending invitation.
func (ic *InviteController) Delete(c *fiber.Ctx) error {
	var req AcceptInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	var invite models.Invite
	if err := ic.DB.First(&invite, "id = ?", c.Params("id")).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "invite not found")
	}

	if _, err := gate.ResolveAgent(ic.DB, req.Token, invite.TeamID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Please sign in again")
	}

	if err := ic.DB.Delete(&invite).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"id": invite.ID}))
}
