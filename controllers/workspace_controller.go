package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"dispatch/gate"
	"dispatch/models"
	"dispatch/realtime"
	"dispatch/utils"
)

type WorkspaceController struct {
	DB       *gorm.DB
	Presence *realtime.Presence
	Logger   *log.Logger
}

func NewWorkspaceController(db *gorm.DB, presence *realtime.Presence, logger *log.Logger) *WorkspaceController {
	return &WorkspaceController{
		DB:       db,
		Presence: presence,
		Logger:   logger,
	}
}

type CreateWorkspaceRequest struct {
	Token       string `json:"token" form:"token" validate:"required"`
	Name        string `json:"name" form:"name" validate:"required,max=100"`
	Description string `json:"description" form:"description" validate:"max=500"`
}

type workspaceTokenRequest struct {
	Token string `json:"token" form:"token" validate:"required"`
}

// MemberInfo is a team member decorated with their live presence.
type MemberInfo struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Online bool   `json:"online"`
}

// Create makes a new workspace with the caller as its owner.
func (wc *WorkspaceController) Create(c *fiber.Ctx) error {
	var req CreateWorkspaceRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := gate.ResolveUser(wc.DB, req.Token)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Please sign in again")
	}

	id, err := utils.GenerateID()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	team := models.Team{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
	}
	err = wc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&team).Error; err != nil {
			return err
		}
		member := models.TeamMember{
			TeamID: team.ID,
			UserID: user.ID,
			Role:   "owner",
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		utils.LogError("workspace_create", err, map[string]interface{}{"user_id": user.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	utils.LogEvent("workspace_created", map[string]interface{}{
		"team_id": team.ID,
		"user_id": user.ID,
	})
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(team))
}

// Get returns the workspace with its member roster, each member
// carrying an online flag from the presence registry.
func (wc *WorkspaceController) Get(c *fiber.Ctx) error {
	teamID := c.Params("id")

	var req workspaceTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if _, err := gate.ResolveAgent(wc.DB, req.Token, teamID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Please sign in again")
	}

	var team models.Team
	if err := wc.DB.Preload("Members.User").First(&team, "id = ?", teamID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "workspace not found")
	}

	users := make([]MemberInfo, 0, len(team.Members))
	for _, member := range team.Members {
		users = append(users, MemberInfo{
			ID:     member.UserID,
			Name:   member.User.Name,
			Email:  member.User.Email,
			Role:   member.Role,
			Online: wc.Presence.IsOnline(teamID, member.UserID),
		})
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"id":          team.ID,
		"name":        team.Name,
		"description": team.Description,
		"users":       users,
	}))
}

// RemoveMember removes a user from the workspace, or lets them leave.
// When the last member goes, the workspace and everything under it is
// deleted.
func (wc *WorkspaceController) RemoveMember(c *fiber.Ctx) error {
	teamID := c.Params("id")
	targetID := utils.ParseUint(c.Params("userId"))

	var req workspaceTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	identity, err := gate.ResolveAgent(wc.DB, req.Token, teamID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Please sign in again")
	}

	var target models.TeamMember
	err = wc.DB.Where("team_id = ? AND user_id = ?", teamID, targetID).
		First(&target).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "member not found")
	}

	if err := wc.DB.Delete(&target).Error; err != nil {
		utils.LogError("member_remove", err, map[string]interface{}{"team_id": teamID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	var remaining int64
	wc.DB.Model(&models.TeamMember{}).Where("team_id = ?", teamID).Count(&remaining)
	if remaining == 0 {
		if err := wc.deleteWorkspace(teamID); err != nil {
			utils.LogError("workspace_delete", err, map[string]interface{}{"team_id": teamID})
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
		}
		utils.LogEvent("workspace_deleted", map[string]interface{}{"team_id": teamID})
	}

	wc.Logger.Printf("user %d removed from workspace %s by %d", targetID, teamID, identity.UserID)
	return c.JSON(utils.SuccessResponse(fiber.Map{"removed": targetID}))
}

// deleteWorkspace drops the team and its sessions, messages and
// invites in one transaction.
func (wc *WorkspaceController) deleteWorkspace(teamID string) error {
	return wc.DB.Transaction(func(tx *gorm.DB) error {
		var sessionIDs []string
		if err := tx.Model(&models.Session{}).
			Where("team_id = ?", teamID).
			Pluck("id", &sessionIDs).Error; err != nil {
			return err
		}
		if len(sessionIDs) > 0 {
			if err := tx.Where("session_id IN ?", sessionIDs).Delete(&models.Message{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", sessionIDs).Delete(&models.Session{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("team_id = ?", teamID).Delete(&models.Invite{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Team{}, "id = ?", teamID).Error
	})
}
