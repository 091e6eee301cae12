package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"food-ordering-api/apperr"
	"food-ordering-api/events"
	"food-ordering-api/i18n"
	"food-ordering-api/middleware"
	"food-ordering-api/models"
	"food-ordering-api/money"
	"food-ordering-api/payment"
	"food-ordering-api/pricing"
	"food-ordering-api/voucher"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const orderNumberAttempts = 5

type OrderItemRequest struct {
	MenuItemID          uint   `json:"menuItemId" binding:"required"`
	Quantity            int    `json:"quantity" binding:"required,min=1,max=99"`
	SpecialInstructions string `json:"specialInstructions" binding:"max=500"`
}

type CustomerInfo struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone"`
}

type DeliveryInfo struct {
	Street       string   `json:"street" binding:"required"`
	PostalCode   string   `json:"postalCode" binding:"required"`
	City         string   `json:"city" binding:"required"`
	Latitude     *float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude    *float64 `json:"longitude" binding:"omitempty,longitude"`
	Instructions string   `json:"instructions" binding:"max=500"`
}

type CreateOrderRequest struct {
	RestaurantID          uint               `json:"restaurantId" binding:"required"`
	Items                 []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	Customer              *CustomerInfo      `json:"customer"`
	Delivery              DeliveryInfo       `json:"delivery" binding:"required"`
	ScheduledDeliveryTime *time.Time         `json:"scheduledDeliveryTime"`
	VoucherCode           string             `json:"voucherCode"`
	PaymentIntentID       string             `json:"paymentIntentId"`
}

// OrderSummary is the creation and payment update response body.
type OrderSummary struct {
	ID             uint                 `json:"id"`
	OrderNumber    string               `json:"orderNumber"`
	Status         models.OrderStatus   `json:"status"`
	Subtotal       money.Amount         `json:"subtotal"`
	DeliveryFee    money.Amount         `json:"deliveryFee"`
	DiscountAmount money.Amount         `json:"discountAmount"`
	TaxAmount      money.Amount         `json:"taxAmount"`
	TotalAmount    money.Amount         `json:"totalAmount"`
	PaymentStatus  models.PaymentStatus `json:"paymentStatus"`
	CreatedAt      time.Time            `json:"createdAt"`
}

func summarize(o *models.Order) OrderSummary {
	return OrderSummary{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		Status:         o.Status,
		Subtotal:       o.Subtotal,
		DeliveryFee:    o.DeliveryFee,
		DiscountAmount: o.DiscountAmount,
		TaxAmount:      o.TaxAmount,
		TotalAmount:    o.TotalAmount,
		PaymentStatus:  o.PaymentStatus,
		CreatedAt:      o.CreatedAt,
	}
}

// CreateOrder places an order for a signed-in customer or a guest.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if !bind(c, &req) {
		return
	}
	user, authenticated := middleware.CurrentUser(c)
	if !authenticated && req.Customer == nil {
		fail(c, apperr.Validation("Guest orders need customer name and email").
			WithDetails([]middleware.FieldError{{Field: "customer", Rule: "required"}}))
		return
	}
	ctx := c.Request.Context()
	now := h.now()

	restaurant, err := h.loadOrderableRestaurant(ctx, req.RestaurantID)
	if err != nil {
		fail(c, err)
		return
	}

	checkAt := now
	if req.ScheduledDeliveryTime != nil {
		if req.ScheduledDeliveryTime.Before(now) {
			fail(c, apperr.Validation("Scheduled delivery time must be in the future"))
			return
		}
		checkAt = req.ScheduledDeliveryTime.In(h.location())
	}
	if err := checkOpen(restaurant, checkAt); err != nil {
		fail(c, err)
		return
	}

	items, subtotal, err := h.priceItems(ctx, restaurant.ID, req.Items)
	if err != nil {
		fail(c, err)
		return
	}
	if subtotal < restaurant.MinOrderAmount {
		fail(c, apperr.BusinessRule(apperr.CodeMinOrderNotMet,
			fmt.Sprintf("Minimum order amount is %s", restaurant.MinOrderAmount)).
			WithDetails(map[string]interface{}{"minOrderAmount": restaurant.MinOrderAmount, "subtotal": subtotal}))
		return
	}

	fee, distance, err := deliveryQuote(restaurant, req.Delivery)
	if err != nil {
		fail(c, err)
		return
	}

	var customerID *uint
	if authenticated {
		customerID = &user.ID
	}
	var (
		discount money.Amount
		v        *models.Voucher
	)
	if strings.TrimSpace(req.VoucherCode) != "" {
		var res voucher.Result
		res, v, err = voucher.Apply(ctx, h.DB, req.VoucherCode, subtotal, customerID, now)
		if err != nil {
			fail(c, err)
			return
		}
		if !res.Valid {
			fail(c, voucherRejected(res.Reason, res.Message))
			return
		}
		discount = res.Discount
	}

	totals := pricing.Compute(subtotal, fee, discount)
	order := &models.Order{
		RestaurantID:          restaurant.ID,
		CustomerID:            customerID,
		Status:                models.StatusNew,
		DeliveryStreet:        req.Delivery.Street,
		DeliveryPostalCode:    req.Delivery.PostalCode,
		DeliveryCity:          req.Delivery.City,
		DeliveryLatitude:      req.Delivery.Latitude,
		DeliveryLongitude:     req.Delivery.Longitude,
		DeliveryInstructions:  req.Delivery.Instructions,
		DeliveryDistanceKm:    distance,
		ScheduledDeliveryTime: req.ScheduledDeliveryTime,
		Subtotal:              totals.Subtotal,
		DeliveryFee:           totals.DeliveryFee,
		DiscountAmount:        totals.Discount,
		TaxAmount:             totals.Tax,
		TotalAmount:           totals.Total,
		PaymentStatus:         models.PaymentPending,
		PaymentReference:      req.PaymentIntentID,
	}
	if v != nil {
		order.VoucherCode = v.Code
	}
	if !authenticated {
		order.GuestName = strings.TrimSpace(req.Customer.FirstName + " " + req.Customer.LastName)
		order.GuestEmail = req.Customer.Email
		order.GuestPhone = req.Customer.Phone
	}

	var ownerNote *models.Notification
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ownerNote, err = h.persistOrder(tx, order, items, v, restaurant)
		return err
	})
	if err != nil {
		fail(c, err)
		return
	}
	middleware.RecordOrderCreated()

	h.afterOrderCreated(ctx, order, ownerNote)
	c.JSON(http.StatusCreated, gin.H{"order": summarize(order)})
}

func (h *Handler) loadOrderableRestaurant(ctx context.Context, id uint) (*models.Restaurant, error) {
	var r models.Restaurant
	if err := h.DB.WithContext(ctx).Preload("Owner").First(&r, id).Error; err != nil {
		return nil, notFoundOr(err, "Restaurant")
	}
	if r.Status != models.RestaurantActive {
		return nil, apperr.BusinessRule(apperr.CodeDeliveryUnavailable, "Restaurant is not accepting orders")
	}
	return &r, nil
}

func checkOpen(r *models.Restaurant, at time.Time) error {
	hours := r.OpeningHours.Data()
	if hours.IsOpenAt(at) {
		return nil
	}
	msg := "Restaurant is closed today"
	if today, ok := hours.For(at); ok && !today.Closed {
		msg = "Restaurant is closed. Today's opening hours: " + today.String()
	}
	return apperr.BusinessRule(apperr.CodeRestaurantClosed, msg).
		WithDetails(map[string]interface{}{"openingHours": hours})
}

// priceItems snapshots the requested menu items. Unknown or foreign items are
// a validation error; inactive or sold-out ones a business rule violation.
func (h *Handler) priceItems(ctx context.Context, restaurantID uint, reqItems []OrderItemRequest) ([]models.OrderItem, money.Amount, error) {
	ids := make([]uint, 0, len(reqItems))
	for _, it := range reqItems {
		ids = append(ids, it.MenuItemID)
	}
	var menu []models.MenuItem
	if err := h.DB.WithContext(ctx).Where("id IN ?", ids).Find(&menu).Error; err != nil {
		return nil, 0, err
	}
	byID := make(map[uint]models.MenuItem, len(menu))
	for _, m := range menu {
		byID[m.ID] = m
	}

	var subtotal money.Amount
	items := make([]models.OrderItem, 0, len(reqItems))
	for _, it := range reqItems {
		m, ok := byID[it.MenuItemID]
		if !ok || m.RestaurantID != restaurantID {
			return nil, 0, apperr.Validation(fmt.Sprintf("Menu item %d does not belong to this restaurant", it.MenuItemID)).
				WithDetails(map[string]interface{}{"menuItemId": it.MenuItemID})
		}
		if m.Status != models.MenuItemActive || m.OutOfStock() {
			return nil, 0, apperr.BusinessRule(apperr.CodeItemUnavailable, fmt.Sprintf("%s is currently unavailable", m.Name)).
				WithDetails(map[string]interface{}{"menuItemId": m.ID})
		}
		line := m.Price.Mul(int64(it.Quantity))
		subtotal += line
		menuItemID := m.ID
		items = append(items, models.OrderItem{
			MenuItemID:          &menuItemID,
			Name:                m.Name,
			Price:               m.Price,
			Quantity:            it.Quantity,
			Subtotal:            line,
			SpecialInstructions: it.SpecialInstructions,
		})
	}
	return items, subtotal, nil
}

// deliveryQuote prices delivery by distance when both ends have coordinates
// and falls back to the flat default fee otherwise.
func deliveryQuote(r *models.Restaurant, d DeliveryInfo) (money.Amount, *float64, error) {
	if !r.HasCoordinates() || d.Latitude == nil || d.Longitude == nil {
		return pricing.DefaultDeliveryFee, nil, nil
	}
	km := pricing.DistanceKm(
		pricing.Point{Lat: *r.Latitude, Lng: *r.Longitude},
		pricing.Point{Lat: *d.Latitude, Lng: *d.Longitude},
	)
	fee, ok := pricing.DeliveryFee(km)
	if !ok {
		return 0, nil, apperr.BusinessRule(apperr.CodeDeliveryUnavailable,
			fmt.Sprintf("Delivery address is %.1f km away, the limit is %.0f km", km, pricing.MaxDeliveryDistanceKm)).
			WithDetails(map[string]interface{}{"distanceKm": km, "maxDistanceKm": pricing.MaxDeliveryDistanceKm})
	}
	return fee, &km, nil
}

func voucherRejected(reason voucher.Reason, message string) *apperr.Error {
	return apperr.BusinessRule(apperr.CodeVoucherInvalid, message).
		WithDetails(map[string]interface{}{"reason": reason})
}

// persistOrder writes the order and everything that must commit with it.
func (h *Handler) persistOrder(tx *gorm.DB, order *models.Order, items []models.OrderItem, v *models.Voucher, r *models.Restaurant) (*models.Notification, error) {
	number, err := uniqueOrderNumber(tx, h.now())
	if err != nil {
		return nil, err
	}
	order.OrderNumber = number

	if err := tx.Omit("Items", "StatusHistory").Create(order).Error; err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if err := tx.Create(&items).Error; err != nil {
		return nil, fmt.Errorf("creating order items: %w", err)
	}
	order.Items = items

	history := models.OrderStatusHistory{
		OrderID:   order.ID,
		ToStatus:  models.StatusNew,
		ChangedBy: order.CustomerID,
		Note:      "Order placed",
	}
	if err := tx.Create(&history).Error; err != nil {
		return nil, fmt.Errorf("recording status history: %w", err)
	}

	if v != nil {
		if err := voucher.Redeem(tx, v); err != nil {
			if errors.Is(err, voucher.ErrUsageLimitReached) {
				return nil, voucherRejected(voucher.ReasonUsageLimit, "Voucher usage limit has been reached")
			}
			return nil, fmt.Errorf("redeeming voucher: %w", err)
		}
	}

	if order.CustomerID != nil {
		if err := accrueLoyalty(tx, *order.CustomerID, order); err != nil {
			return nil, err
		}
	}

	if h.Notifier == nil || r.Owner == nil {
		return nil, nil
	}
	return h.Notifier.FromTemplate(tx, r.OwnerID, &order.ID, i18n.TemplateOrderCreated, r.Owner.Language, orderVars(order))
}

// uniqueOrderNumber draws ORD-<yymmddHHMMSS>-<6 hex> until it finds an unused
// one.
func uniqueOrderNumber(tx *gorm.DB, now time.Time) (string, error) {
	for i := 0; i < orderNumberAttempts; i++ {
		suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
		number := "ORD-" + now.Format("060102150405") + "-" + suffix
		var n int64
		if err := tx.Model(&models.Order{}).Where("order_number = ?", number).Count(&n).Error; err != nil {
			return "", fmt.Errorf("checking order number: %w", err)
		}
		if n == 0 {
			return number, nil
		}
	}
	return "", fmt.Errorf("no free order number after %d attempts", orderNumberAttempts)
}

func accrueLoyalty(tx *gorm.DB, customerID uint, order *models.Order) error {
	points := pricing.LoyaltyPointsFor(order.TotalAmount)
	if points <= 0 {
		return nil
	}
	var lp models.LoyaltyPoints
	if err := tx.Where(models.LoyaltyPoints{CustomerID: customerID}).FirstOrCreate(&lp).Error; err != nil {
		return fmt.Errorf("loading loyalty balance: %w", err)
	}
	err := tx.Model(&lp).Updates(map[string]interface{}{
		"points_balance":  gorm.Expr("points_balance + ?", points),
		"lifetime_points": gorm.Expr("lifetime_points + ?", points),
	}).Error
	if err != nil {
		return fmt.Errorf("crediting loyalty points: %w", err)
	}
	orderID := order.ID
	return tx.Create(&models.LoyaltyTransaction{
		CustomerID:  customerID,
		OrderID:     &orderID,
		Type:        models.LoyaltyEarned,
		Points:      points,
		Description: "Order " + order.OrderNumber,
	}).Error
}

// releaseOrderPerks undoes what placing the order granted: the voucher use
// and the earned loyalty points. It runs in the cancelling transaction.
func releaseOrderPerks(tx *gorm.DB, order *models.Order) error {
	if err := voucher.Release(tx, order.VoucherCode); err != nil {
		return fmt.Errorf("releasing voucher %s: %w", order.VoucherCode, err)
	}
	if order.CustomerID == nil {
		return nil
	}
	var earned int64
	err := tx.Model(&models.LoyaltyTransaction{}).
		Where("order_id = ? AND type = ?", order.ID, models.LoyaltyEarned).
		Select("COALESCE(SUM(points), 0)").Scan(&earned).Error
	if err != nil {
		return fmt.Errorf("summing loyalty points of order %d: %w", order.ID, err)
	}
	if earned <= 0 {
		return nil
	}
	err = tx.Model(&models.LoyaltyPoints{}).Where("customer_id = ?", *order.CustomerID).Updates(map[string]interface{}{
		"points_balance":  gorm.Expr("points_balance - ?", earned),
		"lifetime_points": gorm.Expr("lifetime_points - ?", earned),
	}).Error
	if err != nil {
		return fmt.Errorf("reversing loyalty points: %w", err)
	}
	orderID := order.ID
	return tx.Create(&models.LoyaltyTransaction{
		CustomerID:  *order.CustomerID,
		OrderID:     &orderID,
		Type:        models.LoyaltyReversed,
		Points:      -earned,
		Description: "Order " + order.OrderNumber + " cancelled",
	}).Error
}

// afterOrderCreated runs the steps that must not undo a committed order.
func (h *Handler) afterOrderCreated(ctx context.Context, order *models.Order, ownerNote *models.Notification) {
	if order.PaymentReference != "" && h.Payments != nil {
		err := payment.Retry(ctx, 2, func(ctx context.Context) error {
			return h.Payments.AttachOrder(ctx, order.PaymentReference, map[string]string{
				"order_id":     fmt.Sprint(order.ID),
				"order_number": order.OrderNumber,
			})
		})
		if err != nil {
			middleware.RecordSideEffectFailure("payment_metadata")
			log.Warn().Err(err).Uint("order_id", order.ID).Msg("attaching order to payment intent")
		}
	}
	h.publish(ctx, events.Event{
		Type:        events.OrderCreated,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Data:        summarize(order),
	})
	h.Notifier.Push(ownerNote)
}

type UpdatePaymentRequest struct {
	OrderID         uint                 `json:"orderId" binding:"required"`
	PaymentIntentID string               `json:"paymentIntentId"`
	PaymentStatus   models.PaymentStatus `json:"paymentStatus"`
}

// UpdateOrderPayment merges a payment reference and status into an order.
func (h *Handler) UpdateOrderPayment(c *gin.Context) {
	var req UpdatePaymentRequest
	if !bind(c, &req) {
		return
	}
	if req.PaymentStatus != "" && !req.PaymentStatus.Valid() {
		fail(c, apperr.Validation("Invalid payment status").
			WithDetails([]middleware.FieldError{{Field: "paymentStatus", Rule: "oneof", Param: "pending completed failed refunded"}}))
		return
	}
	var order models.Order
	if err := h.db(c).First(&order, req.OrderID).Error; err != nil {
		fail(c, notFoundOr(err, "Order"))
		return
	}
	if req.PaymentIntentID != "" && order.PaymentReference != "" && req.PaymentIntentID != order.PaymentReference {
		fail(c, apperr.Duplicate("Order already has a different payment reference"))
		return
	}
	if req.PaymentStatus == models.PaymentCompleted {
		if err := h.verifyCaptured(c.Request.Context(), &order, req.PaymentIntentID); err != nil {
			fail(c, err)
			return
		}
	}
	err := h.applyPayment(c.Request.Context(), &order, paymentUpdate{
		IntentID: req.PaymentIntentID,
		Status:   req.PaymentStatus,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": summarize(&order)})
}

// verifyCaptured checks with the gateway that the intent succeeded for the
// order total.
func (h *Handler) verifyCaptured(ctx context.Context, order *models.Order, intentID string) error {
	if intentID == "" {
		intentID = order.PaymentReference
	}
	if intentID == "" {
		return apperr.Validation("paymentIntentId is required to complete a payment").
			WithDetails([]middleware.FieldError{{Field: "paymentIntentId", Rule: "required"}})
	}
	if h.Payments == nil {
		return apperr.New(apperr.CodePaymentFailed, http.StatusServiceUnavailable, "Payments are not configured")
	}
	var intent *payment.Intent
	err := payment.Retry(ctx, 2, func(ctx context.Context) error {
		var err error
		intent, err = h.Payments.GetIntent(ctx, intentID)
		return err
	})
	if err != nil {
		cls := payment.Classify(err)
		log.Warn().Err(err).Uint("order_id", order.ID).Str("kind", string(cls.Kind)).Msg("verifying payment intent")
		return apperr.New(apperr.CodePaymentFailed, http.StatusBadGateway, cls.UserAction).WithDetails(cls).Wrap(err)
	}
	if intent.Status != payment.IntentSucceeded || intent.Amount != order.TotalAmount {
		return apperr.BusinessRule(apperr.CodePaymentFailed, "Payment has not been captured for this order").
			WithDetails(map[string]interface{}{
				"intentStatus": intent.Status,
				"intentAmount": intent.Amount,
				"orderTotal":   order.TotalAmount,
			})
	}
	return nil
}

// GetOrder returns an order with items and history to anyone
// RequireOrderAccess admitted.
func (h *Handler) GetOrder(c *gin.Context) {
	order := middleware.GetOrder(c)
	if err := h.db(c).Preload("Items").Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at, id")
	}).Preload("Restaurant").Preload("Driver.User").First(order, order.ID).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}
