package controller

import (
	"github.com/gofiber/fiber/v2"

	"dispatch/config"
	"dispatch/gate"
	"dispatch/models"
	"dispatch/utils"
)

type MeRequest struct {
	Token     string `json:"token" form:"token" validate:"required"`
	Workspace string `json:"workspace" form:"workspace"`
}

// Me returns the caller's profile and team list. When the dashboard
// reports which workspace it has open, that choice is persisted so the
// next sign-in restores it.
func Me(c *fiber.Ctx) error {
	var req MeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := gate.ResolveUser(config.DB, req.Token)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Please sign in again")
	}

	if req.Workspace != "" {
		var membership models.TeamMember
		err := config.DB.Where("team_id = ? AND user_id = ?", req.Workspace, user.ID).
			First(&membership).Error
		if err == nil {
			user.LastOpenedID = &req.Workspace
			config.DB.Model(user).Update("last_opened_id", req.Workspace)
		}
	}

	var teams []models.Team
	err = config.DB.
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.user_id = ?", user.ID).
		Order("teams.created_at ASC").
		Find(&teams).Error
	if err != nil {
		utils.LogError("user_teams", err, map[string]interface{}{"user_id": user.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"id":           user.ID,
		"name":         user.Name,
		"email":        user.Email,
		"teams":        teams,
		"lastOpenedId": user.LastOpenedID,
	}))
}
