package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"food-ordering-api/apperr"
	"food-ordering-api/config"
	"food-ordering-api/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
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

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.OpenMemoryDB(name)
	require.NoError(t, err)
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string, role models.UserRole, status models.UserStatus) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Role: role, Status: status, Language: "en"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := GenerateToken(testSecret, u, time.Hour)
	require.NoError(t, err)
	return tok
}

func newEngine(db *gorm.DB, mws ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler(), Authenticate(db, testSecret))
	handlers := append(mws, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": GetUserID(c)})
	})
	r.GET("/orders/:id", handlers...)
	r.GET("/x", handlers...)
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticateTokenStates(t *testing.T) {
	db := testDB(t)
	active := seedUser(t, db, "a@example.ch", models.RoleCustomer, models.UserActive)
	suspended := seedUser(t, db, "s@example.ch", models.RoleCustomer, models.UserSuspended)
	r := newEngine(db)

	w := do(r, "/x", "")
	assert.Equal(t, http.StatusOK, w.Code, "anonymous passes through")

	w = do(r, "/x", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperr.CodeUnauthorized, decodeError(t, w).Error.Code)

	w = do(r, "/x", tokenFor(t, suspended))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperr.CodeForbidden, decodeError(t, w).Error.Code)

	w = do(r, "/x", tokenFor(t, active))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":1}`, w.Body.String())

	expired, err := GenerateToken(testSecret, active, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/x", expired).Code)

	forged, err := GenerateToken([]byte("other"), active, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/x", forged).Code)
}

func TestRequireRole(t *testing.T) {
	db := testDB(t)
	customer := seedUser(t, db, "c@example.ch", models.RoleCustomer, models.UserActive)
	admin := seedUser(t, db, "admin@example.ch", models.RoleSuperAdmin, models.UserActive)
	r := newEngine(db, RequireRole(models.RoleSuperAdmin))

	assert.Equal(t, http.StatusUnauthorized, do(r, "/x", "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/x", tokenFor(t, customer)).Code)
	assert.Equal(t, http.StatusOK, do(r, "/x", tokenFor(t, admin)).Code)
}

func TestRequireRestaurantAccess(t *testing.T) {
	db := testDB(t)
	owner := seedUser(t, db, "o@example.ch", models.RoleRestaurantOwner, models.UserActive)
	staff := seedUser(t, db, "staff@example.ch", models.RoleCustomer, models.UserActive)
	pending := seedUser(t, db, "pending@example.ch", models.RoleCustomer, models.UserActive)
	outsider := seedUser(t, db, "out@example.ch", models.RoleRestaurantOwner, models.UserActive)

	rest := &models.Restaurant{OwnerID: owner.ID, Name: "Zeughauskeller", Status: models.RestaurantActive}
	require.NoError(t, db.Create(rest).Error)
	require.NoError(t, db.Create(&models.TeamMember{RestaurantID: rest.ID, UserID: staff.ID, Role: models.TeamStaff, Status: models.TeamActive}).Error)
	require.NoError(t, db.Create(&models.TeamMember{RestaurantID: rest.ID, UserID: pending.ID, Role: models.TeamManager, Status: models.TeamPending}).Error)

	members := newEngine(db, RequireRestaurantAccess())
	assert.Equal(t, http.StatusOK, do(members, "/x", tokenFor(t, owner)).Code)
	assert.Equal(t, http.StatusOK, do(members, "/x", tokenFor(t, staff)).Code)
	assert.Equal(t, http.StatusForbidden, do(members, "/x", tokenFor(t, pending)).Code)
	assert.Equal(t, http.StatusForbidden, do(members, "/x", tokenFor(t, outsider)).Code)
	assert.Equal(t, http.StatusUnauthorized, do(members, "/x", "").Code)

	managers := newEngine(db, RequireRestaurantAccess(models.TeamManager))
	assert.Equal(t, http.StatusOK, do(managers, "/x", tokenFor(t, owner)).Code)
	assert.Equal(t, http.StatusForbidden, do(managers, "/x", tokenFor(t, staff)).Code)
}

func TestRequireOrderAccess(t *testing.T) {
	db := testDB(t)
	owner := seedUser(t, db, "o@example.ch", models.RoleRestaurantOwner, models.UserActive)
	customer := seedUser(t, db, "c@example.ch", models.RoleCustomer, models.UserActive)
	other := seedUser(t, db, "x@example.ch", models.RoleCustomer, models.UserActive)
	driverUser := seedUser(t, db, "d@example.ch", models.RoleDriver, models.UserActive)
	admin := seedUser(t, db, "admin@example.ch", models.RoleSuperAdmin, models.UserActive)

	rest := &models.Restaurant{OwnerID: owner.ID, Name: "Tibits", Status: models.RestaurantActive}
	require.NoError(t, db.Create(rest).Error)
	driver := &models.Driver{UserID: driverUser.ID, DocumentsVerified: true}
	require.NoError(t, db.Create(driver).Error)
	order := &models.Order{OrderNumber: "ORD-1", CustomerID: &customer.ID, RestaurantID: rest.ID, DriverID: &driver.ID}
	require.NoError(t, db.Create(order).Error)

	r := newEngine(db, RequireOrderAccess(db))
	path := "/orders/1"
	assert.Equal(t, http.StatusOK, do(r, path, tokenFor(t, customer)).Code)
	assert.Equal(t, http.StatusOK, do(r, path, tokenFor(t, owner)).Code)
	assert.Equal(t, http.StatusOK, do(r, path, tokenFor(t, driverUser)).Code)
	assert.Equal(t, http.StatusOK, do(r, path, tokenFor(t, admin)).Code)
	assert.Equal(t, http.StatusForbidden, do(r, path, tokenFor(t, other)).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, path, "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, "/orders/99", tokenFor(t, admin)).Code)
}

func TestRequireDriverNeedsProfile(t *testing.T) {
	db := testDB(t)
	withProfile := seedUser(t, db, "d1@example.ch", models.RoleDriver, models.UserActive)
	without := seedUser(t, db, "d2@example.ch", models.RoleDriver, models.UserActive)
	require.NoError(t, db.Create(&models.Driver{UserID: withProfile.ID}).Error)

	r := newEngine(db, RequireDriver())
	assert.Equal(t, http.StatusOK, do(r, "/x", tokenFor(t, withProfile)).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/x", tokenFor(t, without)).Code)
}

func TestErrorHandlerValidationDetails(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.POST("/bind", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required,email"`
			Quantity int    `json:"quantity" binding:"min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.GET("/boom", func(c *gin.Context) {
		Fail(c, errors.New("database exploded"))
	})

	req := httptest.NewRequest(http.MethodPost, "/bind", strings.NewReader(`{"email":"nope","quantity":0}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, apperr.CodeValidation, body.Error.Code)
	var details []FieldError
	require.NoError(t, json.Unmarshal(body.Error.Details, &details))
	assert.ElementsMatch(t, []FieldError{
		{Field: "email", Rule: "email"},
		{Field: "quantity", Rule: "min", Param: "1"},
	}, details)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body = decodeError(t, w)
	assert.Equal(t, apperr.CodeInternal, body.Error.Code)
	assert.NotContains(t, w.Body.String(), "exploded")
}

func TestRecoveryRendersEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("nil map") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperr.CodeInternal, decodeError(t, w).Error.Code)
}
