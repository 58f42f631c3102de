package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"dispatch/gate"
	"dispatch/models"
	"dispatch/store"
	"dispatch/utils"
)

type SessionController struct {
	DB     *gorm.DB
	Store  *store.Store
	Logger *log.Logger
}

func NewSessionController(db *gorm.DB, st *store.Store, logger *log.Logger) *SessionController {
	return &SessionController{DB: db, Store: st, Logger: logger}
}

type CreateSessionRequest struct {
	TeamID string `json:"teamId" form:"teamId" validate:"required"`
}

type agentTokenRequest struct {
	Token string `json:"token" form:"token" validate:"required"`
}

type actorRequest struct {
	Type  string `json:"type" form:"type" validate:"required,oneof=agent visitor"`
	Token string `json:"token" form:"token" validate:"required"`
}

type AppendMessageRequest struct {
	Type    string `json:"type" form:"type" validate:"required,oneof=agent visitor"`
	Token   string `json:"token" form:"token" validate:"required"`
	Message string `json:"message" form:"message" validate:"required"`
}

type UpdateSessionRequest struct {
	Token  string `json:"token" form:"token" validate:"required"`
	Status string `json:"status" form:"status" validate:"required,oneof=open closed delete"`
}

// Create opens a visitor session. No credentials required; the
// response is the only time the session token crosses the wire.
func (sc *SessionController) Create(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	session, err := sc.Store.CreateSession(req.TeamID)
	if err != nil {
		return sc.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"id":        session.ID,
		"token":     session.Token,
		"teamId":    session.TeamID,
		"status":    session.Status,
		"createdAt": session.CreatedAt,
	}))
}

// List returns the team's sessions for the agent inbox.
func (sc *SessionController) List(c *fiber.Ctx) error {
	teamID := c.Params("teamId")

	var req agentTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if _, err := gate.ResolveAgent(sc.DB, req.Token, teamID); err != nil {
		return sc.respondError(c, err)
	}

	sessions, err := sc.Store.ListSessions(teamID)
	if err != nil {
		return sc.respondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(sessions))
}

// Get fetches one session with its transcript for either actor.
func (sc *SessionController) Get(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	var req actorRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	identity, err := sc.resolve(req.Type, req.Token, sessionID)
	if err != nil {
		return sc.respondError(c, err)
	}

	session, err := sc.Store.GetSession(identity, sessionID)
	if err != nil {
		return sc.respondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(session))
}

// Append adds a message to the session's transcript.
func (sc *SessionController) Append(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	var req AppendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	identity, err := sc.resolve(req.Type, req.Token, sessionID)
	if err != nil {
		return sc.respondError(c, err)
	}

	message, err := sc.Store.AppendMessage(identity, sessionID, req.Message)
	if err != nil {
		return sc.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(message))
}

// Update transitions a session's status or deletes it. Agent only.
func (sc *SessionController) Update(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	var req UpdateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	identity, err := sc.resolveAgentForSession(req.Token, sessionID)
	if err != nil {
		return sc.respondError(c, err)
	}

	if req.Status == "delete" {
		if err := sc.Store.DeleteSession(sessionID); err != nil {
			return sc.respondError(c, err)
		}
		sc.Logger.Printf("session %s deleted by agent %d", sessionID, identity.UserID)
		return c.JSON(utils.SuccessResponse(fiber.Map{"id": sessionID}))
	}

	session, err := sc.Store.SetStatus(sessionID, req.Status)
	if err != nil {
		return sc.respondError(c, err)
	}

	return c.JSON(utils.SuccessResponse(session))
}

// resolve builds the caller identity for session endpoints. Agents are
// resolved against the session's team, visitors against the session
// itself.
func (sc *SessionController) resolve(actorType, token, sessionID string) (*gate.Identity, error) {
	if actorType == gate.ActorVisitor {
		return gate.ResolveVisitor(sc.DB, sessionID, token)
	}
	return sc.resolveAgentForSession(token, sessionID)
}

func (sc *SessionController) resolveAgentForSession(token, sessionID string) (*gate.Identity, error) {
	var session models.Session
	if err := sc.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrSessionNotFound
		}
		return nil, err
	}
	return gate.ResolveAgent(sc.DB, token, session.TeamID)
}

func (sc *SessionController) respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, gate.ErrInvalidToken), errors.Is(err, gate.ErrNoAccess):
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Please sign in again")
	case errors.Is(err, gate.ErrSessionNotFound), errors.Is(err, store.ErrSessionNotFound),
		errors.Is(err, store.ErrTeamNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrAlreadyUpdated):
		return utils.ErrorResponse(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, store.ErrBadContent), errors.Is(err, store.ErrBadStatus),
		errors.Is(err, store.ErrSessionClosed):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	default:
		utils.LogError("session_request", err, map[string]interface{}{"path": c.Path()})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}
}
