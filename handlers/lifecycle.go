package handlers

import (
	"context"
	"errors"
	"fmt"

	"food-ordering-api/apperr"
	"food-ordering-api/events"
	"food-ordering-api/format"
	"food-ordering-api/i18n"
	"food-ordering-api/middleware"
	"food-ordering-api/models"
	"food-ordering-api/payment"
	"food-ordering-api/statemachine"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var statusTemplates = map[models.OrderStatus]string{
	models.StatusConfirmed:      i18n.TemplateOrderConfirmed,
	models.StatusPreparing:      i18n.TemplateOrderPreparing,
	models.StatusReadyForPickup: i18n.TemplateOrderReady,
	models.StatusAssigned:       i18n.TemplateOrderAssigned,
	models.StatusInTransit:      i18n.TemplateOrderInTransit,
	models.StatusDelivered:      i18n.TemplateOrderDelivered,
	models.StatusCancelled:      i18n.TemplateOrderCancelled,
}

// statusChange describes one order status move.
type statusChange struct {
	To        models.OrderStatus
	Actor     statemachine.Actor
	ChangedBy *uint
	Note      string
	// Set holds extra columns written together with the status.
	Set map[string]interface{}
	// Guard is an extra condition for the update, e.g. "driver_id IS NULL".
	Guard string
	// Conflict is the 409 message when the guarded update matches no row.
	Conflict string
	// Within runs inside the same transaction after the order row is updated.
	Within func(tx *gorm.DB) error
}

func transitionError(err error, order *models.Order, to models.OrderStatus, actor statemachine.Actor) error {
	var te *statemachine.TransitionError
	if !errors.As(err, &te) {
		return err
	}
	return apperr.BusinessRule(apperr.CodeInvalidTransition, te.Error()).WithDetails(map[string]interface{}{
		"currentStatus":   order.Status,
		"requestedStatus": to,
		"validNextStates": statemachine.ValidTransitionsFrom(order.Status, actor),
	})
}

// writeStatusChange updates the order, appends history and queues the
// customer's notification, all on tx. order is updated in place.
func (h *Handler) writeStatusChange(tx *gorm.DB, order *models.Order, sc statusChange) (*models.Notification, error) {
	if err := statemachine.CanTransition(order.Status, sc.To, sc.Actor); err != nil {
		return nil, transitionError(err, order, sc.To, sc.Actor)
	}

	updates := map[string]interface{}{"status": sc.To}
	for k, v := range sc.Set {
		updates[k] = v
	}
	q := tx.Model(&models.Order{}).Where("id = ? AND status = ?", order.ID, order.Status)
	if sc.Guard != "" {
		q = q.Where(sc.Guard)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("updating order %d status: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		msg := sc.Conflict
		if msg == "" {
			msg = "Order was changed by someone else, reload and try again"
		}
		return nil, apperr.Duplicate(msg)
	}

	from := order.Status
	history := models.OrderStatusHistory{
		OrderID:    order.ID,
		FromStatus: from,
		ToStatus:   sc.To,
		ChangedBy:  sc.ChangedBy,
		Note:       sc.Note,
	}
	if err := tx.Create(&history).Error; err != nil {
		return nil, fmt.Errorf("recording status history: %w", err)
	}
	if sc.Within != nil {
		if err := sc.Within(tx); err != nil {
			return nil, err
		}
	}
	if sc.To == models.StatusCancelled {
		if err := releaseOrderPerks(tx, order); err != nil {
			return nil, err
		}
	}
	if err := tx.First(order, order.ID).Error; err != nil {
		return nil, err
	}
	return h.notifyCustomer(tx, order, statusTemplates[sc.To])
}

// notifyCustomer stores the customer's notification for template. Guests
// have no account and get none.
func (h *Handler) notifyCustomer(tx *gorm.DB, order *models.Order, template string) (*models.Notification, error) {
	if order.CustomerID == nil || template == "" || h.Notifier == nil {
		return nil, nil
	}
	var customer models.User
	if err := tx.Select("id", "language").First(&customer, *order.CustomerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return h.Notifier.FromTemplate(tx, customer.ID, &order.ID, template, customer.Language, orderVars(order))
}

func orderVars(order *models.Order) map[string]string {
	return map[string]string{
		"orderNumber": order.OrderNumber,
		"total":       format.Currency(order.TotalAmount),
	}
}

// changeStatus applies sc in its own transaction and runs the post-commit
// steps.
func (h *Handler) changeStatus(ctx context.Context, order *models.Order, sc statusChange) error {
	from := order.Status
	var note *models.Notification
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		note, err = h.writeStatusChange(tx, order, sc)
		return err
	})
	if err != nil {
		return err
	}
	h.afterStatusChange(ctx, order, from, note)
	return nil
}

func (h *Handler) afterStatusChange(ctx context.Context, order *models.Order, from models.OrderStatus, note *models.Notification) {
	h.Notifier.Push(note)
	h.publish(ctx, events.Event{
		Type:        events.OrderStatusChanged,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Data:        map[string]interface{}{"from": from, "to": order.Status},
	})
	if order.Status == models.StatusCancelled {
		h.refundIfPaid(ctx, order)
	}
}

// refundIfPaid refunds a cancelled order's completed payment. Failures are
// logged and leave the payment status unchanged.
func (h *Handler) refundIfPaid(ctx context.Context, order *models.Order) {
	if order.PaymentStatus != models.PaymentCompleted || order.PaymentReference == "" || h.Payments == nil {
		return
	}
	err := payment.Retry(ctx, 2, func(ctx context.Context) error {
		return h.Payments.Refund(ctx, order.PaymentReference)
	})
	if err != nil {
		middleware.RecordSideEffectFailure("refund")
		log.Warn().Err(err).Uint("order_id", order.ID).
			Str("kind", string(payment.Classify(err).Kind)).
			Msg("refunding cancelled order")
		return
	}
	if err := h.DB.WithContext(ctx).Model(&models.Order{}).Where("id = ?", order.ID).
		Update("payment_status", models.PaymentRefunded).Error; err != nil {
		log.Error().Err(err).Uint("order_id", order.ID).Msg("recording refund")
		return
	}
	order.PaymentStatus = models.PaymentRefunded
}

// paymentUpdate merges payment fields into an order. A completed payment
// confirms a new order on behalf of the system.
type paymentUpdate struct {
	IntentID string
	Status   models.PaymentStatus
	Reason   string
}

func (h *Handler) applyPayment(ctx context.Context, order *models.Order, pu paymentUpdate) error {
	from := order.Status
	var note *models.Notification
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if pu.IntentID != "" {
			updates["payment_reference"] = pu.IntentID
		}
		if pu.Status != "" {
			updates["payment_status"] = pu.Status
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("updating payment of order %d: %w", order.ID, err)
			}
			if err := tx.First(order, order.ID).Error; err != nil {
				return err
			}
		}
		if order.PaymentStatus != models.PaymentCompleted || order.Status != models.StatusNew {
			return nil
		}
		var err error
		note, err = h.writeStatusChange(tx, order, statusChange{
			To:    models.StatusConfirmed,
			Actor: statemachine.ActorSystem,
			Note:  "Payment completed",
		})
		return err
	})
	if err != nil {
		return err
	}

	h.publish(ctx, events.Event{
		Type:        events.OrderPaymentUpdated,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Data:        map[string]interface{}{"paymentStatus": order.PaymentStatus, "reason": pu.Reason},
	})
	if order.Status != from {
		h.afterStatusChange(ctx, order, from, note)
	}
	return nil
}
