package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"food-ordering-api/apperr"
	"food-ordering-api/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Context keys set by Authenticate.
const (
	ctxUser         = "user"
	ctxUserID       = "userID"
	ctxRole         = "role"
	ctxRestaurantID = "restaurantID"
	ctxTeamRole     = "teamRole"
	ctxDriverID     = "driverID"
	ctxOrder        = "order"
)

type Claims struct {
	UserID uint            `json:"user_id"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for user valid for ttl.
func GenerateToken(secret []byte, user *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseToken(secret []byte, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, errors.New("token carries no user")
	}
	return claims, nil
}

// bearerToken reads the Authorization header. Websocket upgrades may pass the
// token as access_token because browsers cannot set headers on them.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if websocket.IsWebSocketUpgrade(c.Request) {
		return c.Query("access_token")
	}
	return ""
}

// Authenticate resolves the caller when a token is present. Requests without
// one pass through anonymously; a bad token is rejected.
func Authenticate(db *gorm.DB, secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			c.Next()
			return
		}
		claims, err := ParseToken(secret, tokenStr)
		if err != nil {
			abort(c, apperr.Unauthorized("Invalid or expired token"))
			return
		}

		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abort(c, apperr.Unauthorized("User no longer exists"))
				return
			}
			abort(c, apperr.Internal(err))
			return
		}
		if user.Status != models.UserActive {
			abort(c, apperr.Forbidden("Account is "+string(user.Status)))
			return
		}

		c.Set(ctxUser, &user)
		c.Set(ctxUserID, user.ID)
		c.Set(ctxRole, user.Role)
		attachTenancy(c, db, &user)
		c.Next()
	}
}

// attachTenancy adds the restaurant the user works for and their driver
// profile. Lookup failures leave the fields unset.
func attachTenancy(c *gin.Context, db *gorm.DB, user *models.User) {
	tx := db.WithContext(c.Request.Context())

	switch user.Role {
	case models.RoleDriver:
		var d models.Driver
		if err := tx.Select("id").Where("user_id = ?", user.ID).Take(&d).Error; err == nil {
			c.Set(ctxDriverID, d.ID)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Err(err).Uint("user_id", user.ID).Msg("resolving driver profile")
		}
		return
	case models.RoleRestaurantOwner:
		var r models.Restaurant
		err := tx.Select("id").Where("owner_id = ?", user.ID).Order("id").Take(&r).Error
		if err == nil {
			c.Set(ctxRestaurantID, r.ID)
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Err(err).Uint("user_id", user.ID).Msg("resolving owned restaurant")
			return
		}
	}

	var m models.TeamMember
	err := tx.Where("user_id = ? AND status = ?", user.ID, models.TeamActive).Order("id").Take(&m).Error
	if err == nil {
		c.Set(ctxRestaurantID, m.RestaurantID)
		c.Set(ctxTeamRole, m.Role)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn().Err(err).Uint("user_id", user.ID).Msg("resolving team membership")
	}
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			abort(c, apperr.Unauthorized("Authentication required"))
			return
		}
		c.Next()
	}
}

// RequireRole enforces that the caller has one of the allowed roles.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, apperr.Unauthorized("Authentication required"))
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		abort(c, apperr.Forbidden("Access denied. Required role(s): "+rolesString(roles)))
	}
}

// RequireRestaurantAccess admits the owner of a restaurant and, when
// teamRoles is non-empty, active team members with one of those roles.
// With no teamRoles every active member is admitted.
func RequireRestaurantAccess(teamRoles ...models.TeamRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			abort(c, apperr.Unauthorized("Authentication required"))
			return
		}
		if _, ok := GetRestaurantID(c); !ok {
			abort(c, apperr.Forbidden("No restaurant is linked to this account"))
			return
		}
		teamRole, member := c.Get(ctxTeamRole)
		if !member || len(teamRoles) == 0 {
			c.Next()
			return
		}
		for _, r := range teamRoles {
			if teamRole.(models.TeamRole) == r {
				c.Next()
				return
			}
		}
		abort(c, apperr.Forbidden("Your team role does not allow this action"))
	}
}

func RequireDriver() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, apperr.Unauthorized("Authentication required"))
			return
		}
		if user.Role != models.RoleDriver {
			abort(c, apperr.Forbidden("Access denied. Required role(s): driver"))
			return
		}
		if _, ok := GetDriverID(c); !ok {
			abort(c, apperr.Forbidden("Create a driver profile first"))
			return
		}
		c.Next()
	}
}

// RequireOrderAccess loads the order named by the :id param and admits its
// customer, its restaurant's staff, its assigned driver and super admins.
func RequireOrderAccess(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, apperr.Unauthorized("Authentication required"))
			return
		}
		var order models.Order
		err := db.WithContext(c.Request.Context()).First(&order, "id = ?", c.Param("id")).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abort(c, apperr.NotFound("Order"))
			return
		}
		if err != nil {
			abort(c, apperr.Internal(err))
			return
		}
		if !canAccessOrder(c, user, &order) {
			abort(c, apperr.Forbidden("You do not have access to this order"))
			return
		}
		c.Set(ctxOrder, &order)
		c.Next()
	}
}

func canAccessOrder(c *gin.Context, user *models.User, order *models.Order) bool {
	if user.Role == models.RoleSuperAdmin {
		return true
	}
	if order.CustomerID != nil && *order.CustomerID == user.ID {
		return true
	}
	if rid, ok := GetRestaurantID(c); ok && rid == order.RestaurantID {
		return true
	}
	if did, ok := GetDriverID(c); ok && order.DriverID != nil && *order.DriverID == did {
		return true
	}
	return false
}

func rolesString(roles []models.UserRole) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

// GetUserID returns 0 for anonymous callers.
func GetUserID(c *gin.Context) uint {
	return c.GetUint(ctxUserID)
}

func GetRole(c *gin.Context) models.UserRole {
	v, _ := c.Get(ctxRole)
	r, _ := v.(models.UserRole)
	return r
}

func GetRestaurantID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxRestaurantID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func GetDriverID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxDriverID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// GetOrder returns the order loaded by RequireOrderAccess.
func GetOrder(c *gin.Context) *models.Order {
	v, _ := c.Get(ctxOrder)
	o, _ := v.(*models.Order)
	return o
}
