package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/buildx-app/backend/internal/services"
	"github.com/buildx-app/backend/pkg/response"
)

// MemberHandler exposes the admin member-management surface.
type MemberHandler struct {
	members *services.MemberService
}

func NewMemberHandler(members *services.MemberService) *MemberHandler {
	return &MemberHandler{members: members}
}

type inviteRequest struct {
	Email       string   `json:"email" validate:"required,email"`
	PhoneNumber *string  `json:"phone_number"`
	Role        string   `json:"role" validate:"required"`
	Activities  []string `json:"activities"`
	Fullname    string   `json:"fullname"`
}

// POST /api/admin/members/invite
func (h *MemberHandler) Invite(c *gin.Context) {
	var req inviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.members.Invite(c.Request.Context(), services.InviteInput{
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Role:        req.Role,
		Activities:  req.Activities,
		Fullname:    req.Fullname,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"id":    user.ID,
		"email": user.Email,
	})
}

// GET /api/admin/members/roles
func (h *MemberHandler) ListRoles(c *gin.Context) {
	response.Success(c, http.StatusOK, h.members.ListRoles())
}

// GET /api/admin/members/roles/:role/activities
func (h *MemberHandler) ListActivities(c *gin.Context) {
	list, err := h.members.ListActivities(c.Param("role"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, list)
}

// GET /api/admin/members
func (h *MemberHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := parseIntQuery(c, "limit", 20)
	if limit < 1 {
		limit = 20
	}

	members, total, err := h.members.ListMembers(c.Request.Context(), services.ListOptions{
		Page:   page,
		Limit:  limit,
		Search: c.Query("search"),
		Role:   c.Query("role"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	totalPages := int(total) / limit
	if int(total)%limit != 0 {
		totalPages++
	}
	response.SuccessWithMeta(c, http.StatusOK, members, &response.Meta{
		Page:       page,
		PerPage:    limit,
		Total:      total,
		TotalPages: totalPages,
	})
}

// GET /api/admin/members/:id
func (h *MemberHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	detail, err := h.members.GetMember(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

// DELETE /api/admin/members/:id/invitation
func (h *MemberHandler) WithdrawInvitation(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	email, err := h.members.WithdrawInvitation(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"email": email})
}

// POST /api/admin/members/:id/resend-invitation
func (h *MemberHandler) ResendInvitation(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.members.ResendInvitation(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Invitation re-sent"})
}

// PATCH /api/admin/members/:id/status
func (h *MemberHandler) ToggleActive(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	active, err := h.members.ToggleActive(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"is_active": active})
}

type updateAccessRequest struct {
	Role       *string  `json:"role"`
	Activities []string `json:"activities"`
}

// PATCH /api/admin/members/:id/access
func (h *MemberHandler) UpdateAccess(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req updateAccessRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.members.UpdateAccess(c.Request.Context(), id, services.AccessUpdate{
		Role:       req.Role,
		Activities: req.Activities,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"id":         user.ID,
		"role":       user.Role,
		"activities": []string(user.Activities),
	})
}

// POST /api/admin/members/:id/reset-password
func (h *MemberHandler) ResetPassword(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.members.ResetMemberPassword(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Reset code sent"})
}
