package handlers

import (
	"errors"
	"net/http"

	"food-ordering-api/apperr"
	"food-ordering-api/middleware"
	"food-ordering-api/models"
	"food-ordering-api/notify"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ListNotifications returns the caller's notifications, newest first.
// unread=true hides read ones.
func (h *Handler) ListNotifications(c *gin.Context) {
	userID := middleware.GetUserID(c)
	query := h.db(c).Where("user_id = ?", userID)
	if c.Query("unread") == "true" {
		query = query.Where("read = ?", false)
	}
	var notes []models.Notification
	if err := pagination(c).apply(query).Order("created_at desc, id desc").Find(&notes).Error; err != nil {
		fail(c, err)
		return
	}
	var unread int64
	if err := h.db(c).Model(&models.Notification{}).Where("user_id = ? AND read = ?", userID, false).Count(&unread).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": unread, "notifications": notes})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res := h.db(c).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, middleware.GetUserID(c)).
		Update("read", true)
	if res.Error != nil {
		fail(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		fail(c, apperr.NotFound("Notification"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	res := h.db(c).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", middleware.GetUserID(c), false).
		Update("read", true)
	if res.Error != nil {
		fail(c, res.Error)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": res.RowsAffected})
}

// StreamNotifications upgrades to a websocket that receives new
// notifications as they are created.
func (h *Handler) StreamNotifications(c *gin.Context) {
	if h.Hub == nil {
		fail(c, apperr.New(apperr.CodeInternal, http.StatusServiceUnavailable, "Realtime notifications are disabled"))
		return
	}
	userID := middleware.GetUserID(c)
	err := h.Hub.Serve(c.Writer, c.Request, userID)
	if errors.Is(err, notify.ErrTooManyConnections) {
		fail(c, apperr.RateLimited("Too many open realtime connections"))
		return
	}
	if err != nil {
		// The upgrader has already written the handshake error.
		log.Debug().Err(err).Uint("user_id", userID).Msg("websocket upgrade failed")
	}
}
