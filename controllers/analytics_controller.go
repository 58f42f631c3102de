package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"dispatch/gate"
	"dispatch/store"
	"dispatch/utils"
)

type AnalyticsController struct {
	DB     *gorm.DB
	Store  *store.Store
	Logger *log.Logger
}

func NewAnalyticsController(db *gorm.DB, st *store.Store, logger *log.Logger) *AnalyticsController {
	return &AnalyticsController{DB: db, Store: st, Logger: logger}
}

type AnalyticsRequest struct {
	Token    string `json:"token" form:"token" validate:"required"`
	Range    string `json:"range" form:"range" validate:"required,oneof=24h 7d 30d"`
	Timezone string `json:"timezone" form:"timezone" validate:"required"`
}

// rangeDays maps the dashboard's range presets to trailing day counts.
var rangeDays = map[string]int{
	"24h": 1,
	"7d":  7,
	"30d": 30,
}

// Get builds the activity report for a workspace over the requested
// trailing range.
func (ac *AnalyticsController) Get(c *fiber.Ctx) error {
	teamID := c.Params("teamId")

	var req AnalyticsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	loc, err := time.LoadLocation(req.Timezone)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "timezone is invalid")
	}

	if _, err := gate.ResolveAgent(ac.DB, req.Token, teamID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Please sign in again")
	}

	report, err := ac.Store.Analytics(teamID, rangeDays[req.Range], loc)
	if err != nil {
		utils.LogError("analytics", err, map[string]interface{}{"team_id": teamID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	return c.JSON(utils.SuccessResponse(report))
}
