package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockroom-server/internal/services"
	"stockroom-server/internal/utils"
)

type AuthHandler struct {
	auth   *services.AuthService
	logger *slog.Logger
}

// LoginRequest binds OAuth2-style form credentials as well as JSON bodies.
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func NewAuthHandler(auth *services.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// TestToken echoes the user resolved from the presented token.
func (h *AuthHandler) TestToken(c *gin.Context) {
	user, ok := requireActive(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

// RecoverPassword issues a password reset token for the given username.
// The token would normally be delivered by email; without a mailer it is
// logged for the operator instead of returned to the caller.
func (h *AuthHandler) RecoverPassword(c *gin.Context) {
	username := c.Param("username")

	if _, err := h.auth.GetUser(c.Request.Context(), username); err != nil {
		utils.RespondError(c, err)
		return
	}

	token, err := h.auth.GeneratePasswordResetToken(username)
	if err != nil {
		utils.RespondError(c, utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, "could not generate reset token", nil))
		return
	}

	h.logger.Info("password recovery requested", "username", username, "reset_token", token)
	c.JSON(http.StatusOK, gin.H{"msg": "Password recovery email sent"})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": "Password updated successfully"})
}
