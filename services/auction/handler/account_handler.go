package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopmarcas/smallauctions/internal/models"
	"github.com/shopmarcas/smallauctions/services/auction/helpers"
	"github.com/shopmarcas/smallauctions/utils"
)

type AccountHandler struct {
	service      AccountServiceInterface
	clock        func() time.Time
	tokenTTL     time.Duration
	secureCookie bool
}

func NewAccountHandler(service AccountServiceInterface, clock func() time.Time, tokenTTL time.Duration, secureCookie bool) *AccountHandler {
	if clock == nil {
		clock = time.Now
	}
	return &AccountHandler{
		service:      service,
		clock:        clock,
		tokenTTL:     tokenTTL,
		secureCookie: secureCookie,
	}
}

func (h *AccountHandler) startSession(c *gin.Context, status int, user models.User, token, message string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(helpers.SessionCookie, token, int(h.tokenTTL.Seconds()), "/", "", h.secureCookie, true)

	utils.JSONResponse(c, status, helpers.AuthResponse{
		UserID:    user.UserID,
		Username:  user.Username,
		Token:     token,
		ExpiresAt: h.clock().Add(h.tokenTTL).UTC().Format(time.RFC3339),
	}, message)
}

// RegisterHandler handles POST /register
func (h *AccountHandler) RegisterHandler(c *gin.Context) {
	var req helpers.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RegisterHandler", err)
		return
	}

	user, token, err := h.service.Register(c.Request.Context(), models.Registration{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Country:     req.Country,
	})
	if err != nil {
		helpers.RespondError(c, "RegisterHandler", err, map[string]any{"username": req.Username})
		return
	}

	helpers.LogSuccess("RegisterHandler", "user registered", map[string]any{"user_id": user.UserID})
	h.startSession(c, http.StatusCreated, user, token, "user registered successfully")
}

// LoginHandler handles POST /login
func (h *AccountHandler) LoginHandler(c *gin.Context) {
	var req helpers.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "LoginHandler", err)
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		helpers.RespondError(c, "LoginHandler", err, map[string]any{"username": req.Username})
		return
	}
	h.startSession(c, http.StatusOK, user, token, "logged in successfully")
}

// LogoutHandler handles POST /logout
func (h *AccountHandler) LogoutHandler(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(helpers.SessionCookie, "", -1, "/", "", h.secureCookie, true)
	utils.JSONResponse(c, http.StatusOK, nil, "logged out successfully")
}

// GetProfileHandler handles GET /me/profile
func (h *AccountHandler) GetProfileHandler(c *gin.Context) {
	userID := helpers.UserID(c)

	profile, err := h.service.GetProfile(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetProfileHandler", err, map[string]any{"user_id": userID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.NewProfileResponse(profile), "profile retrieved successfully")
}

// UpdateProfileHandler handles PUT /me/profile
func (h *AccountHandler) UpdateProfileHandler(c *gin.Context) {
	userID := helpers.UserID(c)

	var req helpers.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateProfileHandler", err)
		return
	}

	profile, err := h.service.UpdateProfile(c.Request.Context(), userID, req.DisplayName, req.Country)
	if err != nil {
		helpers.RespondError(c, "UpdateProfileHandler", err, map[string]any{"user_id": userID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.NewProfileResponse(profile), "profile updated successfully")
}
