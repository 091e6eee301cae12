package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"food-ordering-api/apperr"
	"food-ordering-api/config"
	"food-ordering-api/events"
	"food-ordering-api/middleware"
	"food-ordering-api/models"
	"food-ordering-api/money"
	"food-ordering-api/notify"
	"food-ordering-api/payment"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	testSecret = []byte("handlers-test-secret")
	zurich     = time.FixedZone("CET", 3600)
	// Tuesday noon.
	fixedNow = time.Date(2024, 3, 5, 12, 0, 0, 0, zurich)
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGateway struct {
	mu         sync.Mutex
	created    []map[string]string
	attached   map[string]map[string]string
	intents    map[string]*payment.Intent
	refunds    []string
	intentErr  error
	refundErr  error
	event      *payment.WebhookEvent
	webhookErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{attached: make(map[string]map[string]string), intents: make(map[string]*payment.Intent)}
}

// captured records a succeeded intent the gateway will report for id.
func (g *fakeGateway) captured(id string, amount money.Amount) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id] = &payment.Intent{ID: id, Status: payment.IntentSucceeded, Amount: amount, Currency: "CHF"}
}

func (g *fakeGateway) GetIntent(_ context.Context, intentID string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[intentID]
	if !ok {
		return nil, errors.New("no such payment intent: " + intentID)
	}
	return intent, nil
}

func (g *fakeGateway) CreateIntent(_ context.Context, amount money.Amount, metadata map[string]string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.intentErr != nil {
		return nil, g.intentErr
	}
	g.created = append(g.created, metadata)
	return &payment.Intent{ID: "pi_test", ClientSecret: "pi_test_secret", Status: "requires_payment_method", Amount: amount, Currency: "chf"}, nil
}

func (g *fakeGateway) AttachOrder(_ context.Context, intentID string, metadata map[string]string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attached[intentID] = metadata
	return nil
}

func (g *fakeGateway) Refund(_ context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, intentID)
	return nil
}

func (g *fakeGateway) ParseWebhook(_ []byte, signature string) (*payment.WebhookEvent, error) {
	if g.webhookErr != nil {
		return nil, g.webhookErr
	}
	if signature == "" {
		return nil, payment.ErrInvalidSignature
	}
	return g.event, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	h          *Handler
	db         *gorm.DB
	r          *gin.Engine
	gw         *fakeGateway
	pub        *fakePublisher
	owner      *models.User
	customer   *models.User
	admin      *models.User
	restaurant *models.Restaurant
	pizza      *models.MenuItem
	salad      *models.MenuItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.OpenMemoryDB("handlers_" + name)
	require.NoError(t, err)

	f := &fixture{db: db, gw: newFakeGateway(), pub: &fakePublisher{}}
	f.h = &Handler{
		DB:        db,
		Payments:  f.gw,
		Events:    f.pub,
		Notifier:  notify.NewService(nil),
		Location:  zurich,
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
		Now:       func() time.Time { return fixedNow },
	}
	f.r = newRouter(f.h)

	f.owner = f.user(t, "owner@example.ch", models.RoleRestaurantOwner)
	f.customer = f.user(t, "anna@example.ch", models.RoleCustomer)
	f.admin = f.user(t, "admin@example.ch", models.RoleSuperAdmin)

	lat, lng := 47.3779, 8.5403
	f.restaurant = &models.Restaurant{
		OwnerID:        f.owner.ID,
		Name:           "Pizzeria Limmat",
		Latitude:       &lat,
		Longitude:      &lng,
		MinOrderAmount: money.Francs(20, 0),
		Status:         models.RestaurantActive,
		OpeningHours: datatypes.NewJSONType(models.OpeningHours{
			"tuesday": {Open: "11:00", Close: "22:00"},
		}),
	}
	require.NoError(t, db.Create(f.restaurant).Error)
	f.pizza = f.menuItem(t, f.restaurant.ID, "Pizza Margherita", money.Francs(18, 50))
	f.salad = f.menuItem(t, f.restaurant.ID, "Insalata", money.Francs(9, 0))
	return f
}

func (f *fixture) user(t *testing.T, email string, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Role: role, Status: models.UserActive, Language: "de", FirstName: "Test"}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) menuItem(t *testing.T, restaurantID uint, name string, price money.Amount) *models.MenuItem {
	t.Helper()
	m := &models.MenuItem{RestaurantID: restaurantID, Name: name, Price: price, Status: models.MenuItemActive}
	require.NoError(t, f.db.Create(m).Error)
	return m
}

func (f *fixture) driver(t *testing.T, email string, verified bool) (*models.User, *models.Driver) {
	t.Helper()
	u := f.user(t, email, models.RoleDriver)
	d := &models.Driver{UserID: u.ID, Status: models.DriverAvailable, DocumentsVerified: verified}
	require.NoError(t, f.db.Create(d).Error)
	return u, d
}

// order inserts an order directly in the given state.
func (f *fixture) order(t *testing.T, status models.OrderStatus, mutate func(o *models.Order)) *models.Order {
	t.Helper()
	customerID := f.customer.ID
	o := &models.Order{
		OrderNumber:   fmt.Sprintf("ORD-TEST-%04d", orderSeq.Add(1)),
		CustomerID:    &customerID,
		RestaurantID:  f.restaurant.ID,
		Status:        status,
		Subtotal:      money.Francs(27, 50),
		DeliveryFee:   money.Francs(5, 0),
		TaxAmount:     money.Amount(263),
		TotalAmount:   money.Amount(3513),
		PaymentStatus: models.PaymentPending,
	}
	if mutate != nil {
		mutate(o)
	}
	require.NoError(t, f.db.Create(o).Error)
	return o
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, as *models.User) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, as))
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func (f *fixture) reload(t *testing.T, o *models.Order) *models.Order {
	t.Helper()
	var fresh models.Order
	require.NoError(t, f.db.First(&fresh, o.ID).Error)
	return &fresh
}

func tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := middleware.GenerateToken(testSecret, u, time.Hour)
	require.NoError(t, err)
	return tok
}

func newRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler(), middleware.Authenticate(h.DB, h.JWTSecret))

	r.GET("/health", h.Health)
	r.POST("/api/auth/register", h.Register)
	r.POST("/api/auth/login", h.Login)
	r.GET("/api/profile", middleware.RequireAuth(), h.GetProfile)
	r.PUT("/api/profile", middleware.RequireAuth(), h.UpdateProfile)
	r.GET("/api/state-machine", h.GetStateMachineInfo)

	r.POST("/api/orders", h.CreateOrder)
	r.PATCH("/api/orders", h.UpdateOrderPayment)
	r.GET("/api/orders/:id", middleware.RequireAuth(), middleware.RequireOrderAccess(h.DB), h.GetOrder)
	r.POST("/api/payments/intents", h.CreatePaymentIntent)
	r.POST("/api/payments/webhook", h.PaymentWebhook)
	r.POST("/api/uploads/:bucket", middleware.RequireAuth(), h.Upload)
	r.GET("/api/uploads/:bucket/:name", middleware.RequireAuth(), h.GetUpload)

	r.PUT("/api/customer/orders/:id/cancel", middleware.RequireRole(models.RoleCustomer), middleware.RequireOrderAccess(h.DB), h.CancelMyOrder)
	r.PUT("/api/restaurant/orders/:id/status", middleware.RequireRestaurantAccess(), h.UpdateRestaurantOrderStatus)

	driver := r.Group("/api/driver/orders", middleware.RequireDriver())
	driver.PUT("/:id/accept", h.AcceptOrder)
	driver.PUT("/:id/pickup", h.PickupOrder)
	driver.PUT("/:id/deliver", h.DeliverOrder)

	admin := r.Group("/api/admin", middleware.RequireRole(models.RoleSuperAdmin))
	admin.PUT("/orders/:id/status", h.AdminForceOrderStatus)
	admin.GET("/analytics", h.AdminAnalytics)
	admin.GET("/analytics/export", h.AdminExportAnalytics)
	return r
}

type errorBody struct {
	Error struct {
		Code    apperr.Code     `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (b errorBody) details(t *testing.T) map[string]interface{} {
	t.Helper()
	var d map[string]interface{}
	require.NoError(t, json.Unmarshal(b.Error.Details, &d), string(b.Error.Details))
	return d
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

var orderSeq atomic.Int64

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

var errBoom = errors.New("boom")
