package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/event_marketplace_api/internal/service"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// SendOTP handles POST /v1/auth/otp/send
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req service.SendOTPRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.SendOTP(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, utils.ErrOTPRateLimited) {
			utils.Error(c, 429, "TOO_MANY_REQUESTS", "Too many OTP requests, try again later")
			return
		}
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, 200, "OTP sent", resp)
}

// VerifyOTP handles POST /v1/auth/otp/verify
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req service.VerifyOTPRequest
	if !bindJSON(c, &req) {
		return
	}

	login, err := h.authService.VerifyOTP(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, utils.ErrInvalidOTP) {
			utils.Error(c, 401, "INVALID_OTP", "Invalid or expired OTP")
			return
		}
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, 200, "Login successful", login)
}
