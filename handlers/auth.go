package handlers

import (
	"errors"
	"net/http"
	"strings"

	"food-ordering-api/apperr"
	"food-ordering-api/format"
	"food-ordering-api/i18n"
	"food-ordering-api/middleware"
	"food-ordering-api/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	FirstName string          `json:"firstName" binding:"required,max=80"`
	LastName  string          `json:"lastName" binding:"required,max=80"`
	Email     string          `json:"email" binding:"required,email"`
	Password  string          `json:"password" binding:"required,min=8,max=72"`
	Role      models.UserRole `json:"role" binding:"omitempty,oneof=customer restaurant_owner driver"`
	Phone     string          `json:"phone"`
	Language  string          `json:"language" binding:"omitempty,oneof=en de fr it"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) issueToken(c *gin.Context, user *models.User, status int, message string) {
	token, err := middleware.GenerateToken(h.JWTSecret, user, h.TokenTTL)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(status, gin.H{
		"message":   message,
		"token":     token,
		"expiresIn": int(h.TokenTTL.Seconds()),
		"user":      user,
	})
}

// Register creates an account. Administrators are never self-registered.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bind(c, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var n int64
	if err := h.db(c).Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		fail(c, err)
		return
	}
	if n > 0 {
		fail(c, apperr.Duplicate("Email already registered"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(c, err)
		return
	}
	role := req.Role
	if role == "" {
		role = models.RoleCustomer
	}
	user := models.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        format.Phone(req.Phone),
		Language:     i18n.DetectLanguage(req.Language, c.GetHeader("Accept-Language")),
		Status:       models.UserActive,
	}
	if err := h.db(c).Create(&user).Error; err != nil {
		fail(c, err)
		return
	}
	h.issueToken(c, &user, http.StatusCreated, "Account created successfully")
}

// Login exchanges credentials for a token. Unknown email and wrong password
// get the same answer.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}
	var user models.User
	err := h.db(c).Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, err)
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		fail(c, apperr.Unauthorized("Invalid email or password"))
		return
	}
	if user.Status != models.UserActive {
		fail(c, apperr.Forbidden("Account is "+string(user.Status)))
		return
	}
	h.issueToken(c, &user, http.StatusOK, "Login successful")
}

// GetProfile returns the caller with their restaurant and driver links.
func (h *Handler) GetProfile(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	resp := gin.H{"user": user}
	if id, ok := middleware.GetRestaurantID(c); ok {
		resp["restaurantId"] = id
	}
	if id, ok := middleware.GetDriverID(c); ok {
		resp["driverId"] = id
	}
	c.JSON(http.StatusOK, resp)
}

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName" binding:"omitempty,min=1,max=80"`
	LastName  *string `json:"lastName" binding:"omitempty,min=1,max=80"`
	Phone     *string `json:"phone"`
	Language  *string `json:"language" binding:"omitempty,oneof=en de fr it"`
}

// UpdateProfile edits name, phone and language. Email and role are fixed.
func (h *Handler) UpdateProfile(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	var req UpdateProfileRequest
	if !bind(c, &req) {
		return
	}
	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		updates["phone"] = format.Phone(*req.Phone)
	}
	if req.Language != nil {
		updates["language"] = *req.Language
	}
	if len(updates) > 0 {
		if err := h.db(c).Model(user).Updates(updates).Error; err != nil {
			fail(c, err)
			return
		}
	}
	if err := h.db(c).First(user, user.ID).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "user": user})
}
