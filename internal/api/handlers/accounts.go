package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/emotune/internal/account"
	"github.com/your-org/emotune/internal/auth"
	"github.com/your-org/emotune/internal/models"
	"github.com/your-org/emotune/pkg/dto"
)

// AccountService is the subset of *account.Service the handlers call.
type AccountService interface {
	Register(ctx context.Context, username, password string) (*models.Account, error)
	Login(ctx context.Context, username, password string) (*models.Account, error)
	RequestReset(ctx context.Context, username string) (string, bool, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type AccountHandler struct {
	svc AccountService
}

func NewAccountHandler(svc AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

func (h *AccountHandler) Register(c *gin.Context) {
	var req dto.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	_, err := h.svc.Register(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, dto.MessageResponse{Message: "Registration successful!"})
	case errors.Is(err, account.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
	case errors.Is(err, auth.ErrPasswordTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at most 72 bytes"})
	case errors.Is(err, account.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
	default:
		slog.Error("register account", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error during registration."})
	}
}

func (h *AccountHandler) Login(c *gin.Context) {
	var req dto.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	acc, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, dto.LoginResponse{Message: "Login successful!", UserID: acc.ID})
	case errors.Is(err, account.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
	case errors.Is(err, account.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
	default:
		slog.Error("login", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "A server error occurred during login."})
	}
}

func (h *AccountHandler) RequestReset(c *gin.Context) {
	var req dto.RequestResetRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username is required"})
		return
	}

	token, found, err := h.svc.RequestReset(c.Request.Context(), req.Username)
	if err != nil {
		slog.Error("request password reset", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "A server error occurred while requesting password reset."})
		return
	}
	if !found {
		c.JSON(http.StatusOK, dto.RequestResetResponse{
			Message: "If an account with that username exists, reset instructions have been simulated.",
		})
		return
	}

	// No mail delivery: the token goes back in the response.
	c.JSON(http.StatusOK, dto.RequestResetResponse{
		Message:    "Password reset token generated (simulated email).",
		ResetToken: token,
	})
}

func (h *AccountHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" || req.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token and new password are required"})
		return
	}

	err := h.svc.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, dto.MessageResponse{Message: "Password has been reset successfully."})
	case errors.Is(err, account.ErrInvalidResetToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset token"})
	case errors.Is(err, auth.ErrPasswordTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at most 72 bytes"})
	case errors.Is(err, account.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token and new password are required"})
	default:
		slog.Error("reset password", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password in database."})
	}
}
