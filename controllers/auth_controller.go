package controller

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"dispatch/config"
	"dispatch/models"
	"dispatch/utils"
)

const resetTokenTTL = time.Hour

type SignUpRequest struct {
	Name     string `json:"name" form:"name" validate:"required,max=100"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
}

type SignInRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

type ResetPasswordRequest struct {
	Email           string `json:"email" form:"email" validate:"required,email"`
	ResetToken      string `json:"reset_token" form:"reset_token"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

func SignUp(c *fiber.Ctx) error {
	var req SignUpRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	var existing models.User
	if err := config.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Email already registered")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hashed),
	}
	if err := config.DB.Create(&user).Error; err != nil {
		utils.LogError("sign_up", err, map[string]interface{}{"email": req.Email})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	token, err := issueAuthToken(config.DB, user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	utils.LogEvent("user_signed_up", map[string]interface{}{"user_id": user.ID})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"token": token})
}

func SignIn(c *fiber.Ctx) error {
	var req SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	var user models.User
	if err := config.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid email or password")
	}

	token, err := issueAuthToken(config.DB, user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	return c.JSON(fiber.Map{"token": token})
}

// ResetPassword handles both halves of the reset flow. Without a
// reset_token it emails a reset link; with one it consumes the token
// and replaces the password, revoking every live auth token.
func ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	if req.ResetToken == "" {
		return requestPasswordReset(c, req.Email)
	}
	return confirmPasswordReset(c, req)
}

func requestPasswordReset(c *fiber.Ctx, email string) error {
	var user models.User
	err := config.DB.Where("email = ?", email).First(&user).Error
	if err == nil {
		token, tokenErr := utils.GenerateSecureToken()
		if tokenErr != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
		}
		reset := models.AuthToken{
			Token:     token,
			UserID:    user.ID,
			Purpose:   models.TokenReset,
			ExpiresAt: utils.Pointer(time.Now().Add(resetTokenTTL)),
		}
		if err := config.DB.Create(&reset).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
		}
		if err := utils.SendPasswordResetEmail(user.Email, token); err != nil {
			utils.LogError("reset_email", err, map[string]interface{}{"user_id": user.ID})
		}
	}

	// Same response whether or not the account exists
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "If that email is registered, a reset link has been sent",
	}))
}

func confirmPasswordReset(c *fiber.Ctx, req ResetPasswordRequest) error {
	if len(req.Password) < 8 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "password must be at least 8 characters")
	}
	if req.Password != req.ConfirmPassword {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "passwords do not match")
	}

	var reset models.AuthToken
	err := config.DB.Preload("User").
		Where("token = ? AND purpose = ?", req.ResetToken, models.TokenReset).
		First(&reset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "invalid or expired token")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}
	if reset.Expired(time.Now()) || reset.User.Email != req.Email {
		config.DB.Delete(&reset)
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "invalid or expired token")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("id = ?", reset.UserID).
			Update("password_hash", string(hashed)).Error; err != nil {
			return err
		}
		// Single use, and every existing sign-in is revoked
		return tx.Where("user_id = ?", reset.UserID).Delete(&models.AuthToken{}).Error
	})
	if err != nil {
		utils.LogError("reset_password", err, map[string]interface{}{"user_id": reset.UserID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An internal error occurred")
	}

	utils.LogEvent("password_reset", map[string]interface{}{"user_id": reset.UserID})
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Password updated"}))
}

func issueAuthToken(db *gorm.DB, userID uint) (string, error) {
	token, err := utils.GenerateSecureToken()
	if err != nil {
		return "", err
	}
	auth := models.AuthToken{
		Token:   token,
		UserID:  userID,
		Purpose: models.TokenAuth,
	}
	if err := db.Create(&auth).Error; err != nil {
		return "", err
	}
	return token, nil
}
