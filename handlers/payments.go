package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"food-ordering-api/apperr"
	"food-ordering-api/middleware"
	"food-ordering-api/models"
	"food-ordering-api/money"
	"food-ordering-api/payment"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// maxWebhookBytes bounds webhook payloads read into memory.
const maxWebhookBytes = 64 << 10

type CreateIntentRequest struct {
	Amount       money.Amount `json:"amount" binding:"required"`
	RestaurantID uint         `json:"restaurantId" binding:"required"`
}

// CreatePaymentIntent opens a card payment for the checkout total. The order
// does not exist yet; CreateOrder attaches it afterwards.
func (h *Handler) CreatePaymentIntent(c *gin.Context) {
	var req CreateIntentRequest
	if !bind(c, &req) {
		return
	}
	if req.Amount <= 0 {
		fail(c, apperr.Validation("Amount must be positive"))
		return
	}
	var r models.Restaurant
	if err := h.db(c).Select("id", "status").First(&r, req.RestaurantID).Error; err != nil {
		fail(c, notFoundOr(err, "Restaurant"))
		return
	}
	if r.Status != models.RestaurantActive {
		fail(c, apperr.BusinessRule(apperr.CodeDeliveryUnavailable, "Restaurant is not accepting orders"))
		return
	}

	meta := map[string]string{"restaurant_id": strconv.FormatUint(uint64(r.ID), 10)}
	if uid := middleware.GetUserID(c); uid != 0 {
		meta["customer_id"] = strconv.FormatUint(uint64(uid), 10)
	}
	intent, err := h.Payments.CreateIntent(c.Request.Context(), req.Amount, meta)
	if err != nil {
		cls := payment.Classify(err)
		log.Warn().Err(err).Str("kind", string(cls.Kind)).Msg("creating payment intent")
		fail(c, apperr.New(apperr.CodePaymentFailed, http.StatusBadGateway, cls.UserAction).
			WithDetails(cls).Wrap(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"paymentIntent": intent})
}

// PaymentWebhook applies verified gateway events. Unknown event types are
// acknowledged and ignored so the gateway stops retrying them.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		fail(c, apperr.New(apperr.CodeWebhookInvalid, http.StatusBadRequest, "Could not read payload").Wrap(err))
		return
	}
	event, err := h.Payments.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		fail(c, apperr.New(apperr.CodeWebhookInvalid, http.StatusBadRequest, "Webhook signature verification failed").Wrap(err))
		return
	}

	var pu paymentUpdate
	switch event.Type {
	case payment.EventIntentSucceeded:
		pu = paymentUpdate{IntentID: event.IntentID, Status: models.PaymentCompleted}
	case payment.EventIntentFailed:
		cls := payment.ClassifyCode(event.FailureCode, event.DeclineCode)
		pu = paymentUpdate{IntentID: event.IntentID, Status: models.PaymentFailed, Reason: string(cls.Kind)}
	default:
		c.JSON(http.StatusOK, gin.H{"received": true, "handled": false})
		return
	}

	order, err := h.orderForIntent(c, event)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// The intent may precede its order; the order picks the status up
		// through PATCH /api/orders.
		log.Info().Str("intent", event.IntentID).Str("type", event.Type).Msg("webhook for unknown order")
		c.JSON(http.StatusOK, gin.H{"received": true, "handled": false})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.applyPayment(c.Request.Context(), order, pu); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "handled": true, "orderId": order.ID})
}

// orderForIntent finds the order by intent reference, then by the order_id
// metadata attached after creation.
func (h *Handler) orderForIntent(c *gin.Context, event *payment.WebhookEvent) (*models.Order, error) {
	var order models.Order
	if event.IntentID != "" {
		err := h.db(c).Where("payment_reference = ?", event.IntentID).First(&order).Error
		if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
			return &order, err
		}
	}
	id, err := strconv.ParseUint(event.Metadata["order_id"], 10, 64)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	if err := h.db(c).First(&order, id).Error; err != nil {
		return nil, fmt.Errorf("order %d from intent metadata: %w", id, err)
	}
	return &order, nil
}
