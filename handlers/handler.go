package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"food-ordering-api/apperr"
	"food-ordering-api/events"
	"food-ordering-api/middleware"
	"food-ordering-api/notify"
	"food-ordering-api/payment"
	"food-ordering-api/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Handler carries the dependencies shared by every endpoint.
type Handler struct {
	DB        *gorm.DB
	Payments  payment.Gateway
	Events    events.Publisher
	Notifier  *notify.Service
	Hub       *notify.Hub
	Files     storage.Store
	Location  *time.Location
	JWTSecret []byte
	TokenTTL  time.Duration
	// Now is replaced in tests.
	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().In(h.location())
	}
	return time.Now().In(h.location())
}

func (h *Handler) location() *time.Location {
	if h.Location != nil {
		return h.Location
	}
	return time.UTC
}

func (h *Handler) db(c *gin.Context) *gorm.DB {
	return h.DB.WithContext(c.Request.Context())
}

func fail(c *gin.Context, err error) {
	middleware.Fail(c, err)
}

// bind decodes the JSON body into req and records a validation error on
// failure.
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, err)
		return false
	}
	return true
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		fail(c, apperr.Validation("Invalid "+name))
		return 0, false
	}
	return uint(id), true
}

// notFoundOr maps gorm's not-found error to a 404 for resource.
func notFoundOr(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(resource)
	}
	return err
}

func (h *Handler) publish(ctx context.Context, e events.Event) {
	if h.Events == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = h.now().UTC()
	}
	if err := h.Events.Publish(ctx, e); err != nil {
		middleware.RecordSideEffectFailure("event")
		log.Warn().Err(err).Str("type", e.Type).Uint("order_id", e.OrderID).Msg("publishing order event")
	}
}

type page struct {
	Limit  int
	Offset int
}

// pagination reads ?limit (default 20, max 100) and ?offset.
func pagination(c *gin.Context) page {
	p := page{Limit: 20}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		p.Limit = v
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		p.Offset = v
	}
	return p
}

func (p page) apply(q *gorm.DB) *gorm.DB {
	return q.Limit(p.Limit).Offset(p.Offset)
}
