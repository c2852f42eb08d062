package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/buildx-app/backend/internal/services"
	"github.com/buildx-app/backend/pkg/response"
)

// OnboardingHandler exposes the invited-member activation flow.
type OnboardingHandler struct {
	onboarding *services.OnboardingService
}

func NewOnboardingHandler(onboarding *services.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding}
}

type sendOTPRequest struct {
	InvitationToken string `json:"invitation_token" validate:"required"`
}

// POST /api/onboarding/send-otp
func (h *OnboardingHandler) SendOTP(c *gin.Context) {
	var req sendOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	email, err := h.onboarding.SendOTP(c.Request.Context(), req.InvitationToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"email": email})
}

// POST /api/onboarding/verify-otp
func (h *OnboardingHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	token, err := h.onboarding.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"onboarding_token": token})
}

type setPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// POST /api/onboarding/set-password
func (h *OnboardingHandler) SetPassword(c *gin.Context) {
	var req setPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.onboarding.SetPassword(c.Request.Context(), req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Password set"})
}

type personalDetailsRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
	AvatarURL *string `json:"avatar_url"`
}

// POST /api/onboarding/personal-details
func (h *OnboardingHandler) SavePersonalDetails(c *gin.Context) {
	var req personalDetailsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.onboarding.SavePersonalDetails(c.Request.Context(), req.Email, req.FirstName, req.LastName, req.AvatarURL)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Details saved"})
}

type confirmDetailsRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/onboarding/confirm
func (h *OnboardingHandler) ConfirmDetails(c *gin.Context) {
	var req confirmDetailsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.onboarding.ConfirmDetails(c.Request.Context(), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"email":  user.Email,
		"status": user.Status,
	})
}
