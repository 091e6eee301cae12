// Package notify stores in-app notifications and pushes them to connected
// clients.
package notify

import (
	"fmt"

	"food-ordering-api/i18n"
	"food-ordering-api/models"

	"gorm.io/gorm"
)

// Pusher delivers a stored notification in real time.
type Pusher interface {
	Push(userID uint, payload interface{}) int
}

// Service writes notification rows inside the caller's transaction and
// pushes them once the caller has committed.
type Service struct {
	pusher Pusher
}

func NewService(p Pusher) *Service {
	return &Service{pusher: p}
}

// FromTemplate renders template in lang and inserts the row using tx.
func (s *Service) FromTemplate(tx *gorm.DB, userID uint, orderID *uint, template, lang string, vars map[string]string) (*models.Notification, error) {
	msg, err := i18n.Render(template, lang, vars)
	if err != nil {
		return nil, err
	}
	n := &models.Notification{
		UserID:  userID,
		Type:    template,
		Title:   msg.Title,
		Message: msg.Body,
		OrderID: orderID,
	}
	if err := tx.Create(n).Error; err != nil {
		return nil, fmt.Errorf("creating notification for user %d: %w", userID, err)
	}
	return n, nil
}

// Push sends already committed notifications. Nil entries are skipped.
func (s *Service) Push(ns ...*models.Notification) {
	if s == nil || s.pusher == nil {
		return
	}
	for _, n := range ns {
		if n == nil {
			continue
		}
		s.pusher.Push(n.UserID, envelope(n))
	}
}

func envelope(n *models.Notification) map[string]interface{} {
	return map[string]interface{}{"event": "notification", "notification": n}
}
