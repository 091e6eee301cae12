package handlers

import (
	"errors"
	"net/http"
	"strings"

	"food-ordering-api/apperr"
	"food-ordering-api/middleware"
	"food-ordering-api/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type InviteRequest struct {
	Email string          `json:"email" binding:"required,email"`
	Role  models.TeamRole `json:"role" binding:"required,oneof=manager staff"`
}

// InviteTeamMember adds a pending membership for an existing account.
func (h *Handler) InviteTeamMember(c *gin.Context) {
	restaurantID, _ := middleware.GetRestaurantID(c)
	var req InviteRequest
	if !bind(c, &req) {
		return
	}

	var user models.User
	if err := h.db(c).Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
		fail(c, notFoundOr(err, "User"))
		return
	}
	if user.ID == middleware.GetUserID(c) {
		fail(c, apperr.Validation("You cannot invite yourself"))
		return
	}
	if user.Role == models.RoleDriver || user.Role == models.RoleSuperAdmin {
		fail(c, apperr.Validation("Drivers and administrators cannot join a restaurant team"))
		return
	}

	var m models.TeamMember
	err := h.db(c).Where("restaurant_id = ? AND user_id = ?", restaurantID, user.ID).First(&m).Error
	switch {
	case err == nil && m.Status != models.TeamInactive:
		fail(c, apperr.Duplicate("User is already on the team"))
		return
	case err == nil:
		m.Role, m.Status = req.Role, models.TeamPending
		err = h.db(c).Save(&m).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		m = models.TeamMember{RestaurantID: restaurantID, UserID: user.ID, Role: req.Role, Status: models.TeamPending}
		err = h.db(c).Create(&m).Error
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Invitation sent", "member": m})
}

func (h *Handler) ListTeam(c *gin.Context) {
	restaurantID, _ := middleware.GetRestaurantID(c)
	var members []models.TeamMember
	if err := h.db(c).Preload("User").Where("restaurant_id = ?", restaurantID).Order("id").Find(&members).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(members), "members": members})
}

// RemoveTeamMember deactivates a membership.
func (h *Handler) RemoveTeamMember(c *gin.Context) {
	restaurantID, _ := middleware.GetRestaurantID(c)
	id, ok := paramID(c, "memberId")
	if !ok {
		return
	}
	res := h.db(c).Model(&models.TeamMember{}).Where("id = ? AND restaurant_id = ?", id, restaurantID).
		Update("status", models.TeamInactive)
	if res.Error != nil {
		fail(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		fail(c, apperr.NotFound("Team member"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Team member removed"})
}

// ListMyInvitations shows pending invitations addressed to the caller.
func (h *Handler) ListMyInvitations(c *gin.Context) {
	var invites []models.TeamMember
	if err := h.db(c).Where("user_id = ? AND status = ?", middleware.GetUserID(c), models.TeamPending).
		Order("id").Find(&invites).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(invites), "invitations": invites})
}

// AcceptInvitation activates the caller's pending membership.
func (h *Handler) AcceptInvitation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res := h.db(c).Model(&models.TeamMember{}).
		Where("id = ? AND user_id = ? AND status = ?", id, middleware.GetUserID(c), models.TeamPending).
		Update("status", models.TeamActive)
	if res.Error != nil {
		fail(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		fail(c, apperr.NotFound("Invitation"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invitation accepted"})
}
