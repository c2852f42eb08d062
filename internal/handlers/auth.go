package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/buildx-app/backend/internal/services"
	"github.com/buildx-app/backend/pkg/response"
)

// AuthHandler exposes the authentication and password-reset flows.
type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, pair)
}

type googleSignInRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// POST /api/auth/google
func (h *AuthHandler) GoogleSignIn(c *gin.Context) {
	var req googleSignInRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, err := h.auth.GoogleSignIn(c.Request.Context(), req.IDToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, pair)
}

// GET /api/auth/google/url
func (h *AuthHandler) GoogleAuthURL(c *gin.Context) {
	url, err := h.auth.GoogleAuthURL(c.Query("state"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"url": url})
}

type oauthCallbackRequest struct {
	Code string `json:"code" validate:"required"`
}

// POST /api/auth/google/callback
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	var req oauthCallbackRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, err := h.auth.GoogleCallback(c.Request.Context(), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, pair)
}

// GET /api/auth/microsoft/url
func (h *AuthHandler) MicrosoftAuthURL(c *gin.Context) {
	url, err := h.auth.MicrosoftAuthURL(c.Query("state"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"url": url})
}

// POST /api/auth/microsoft/callback
func (h *AuthHandler) MicrosoftCallback(c *gin.Context) {
	var req oauthCallbackRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, err := h.auth.MicrosoftCallback(c.Request.Context(), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, pair)
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/auth/forgot-password
//
// The response is identical whether or not the account exists.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	h.auth.ForgotPassword(c.Request.Context(), req.Email)
	response.Success(c, http.StatusOK, gin.H{
		"message": "If the email exists, a reset code has been sent",
	})
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

// POST /api/auth/verify-otp
func (h *AuthHandler) VerifyResetOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	token, err := h.auth.VerifyResetOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reset_token": token})
}

type resetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	ResetToken      string `json:"reset_token" validate:"required"`
}

// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.auth.ResetPassword(c.Request.Context(), req.Email, req.Password, req.ConfirmPassword, req.ResetToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Password updated"})
}
