package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/questlabs/walletgate/core"
	"github.com/questlabs/walletgate/service"
)

// deviceHeader and deviceCookie are the client-supplied device
// identifier channels; the fingerprint falls back to UA+IP.
const (
	deviceHeader = "X-Device-ID"
	deviceCookie = "wg_device"
)

// AuthHandlers contains HTTP handlers for auth endpoints.
type AuthHandlers struct {
	authService *service.AuthService
	log         *zap.Logger
}

// NewAuthHandlers creates new auth handlers.
func NewAuthHandlers(authService *service.AuthService, log *zap.Logger) *AuthHandlers {
	return &AuthHandlers{authService: authService, log: log.Named("http")}
}

// Connect handles POST /auth/wallet/connect.
func (h *AuthHandlers) Connect(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	challenge, err := h.authService.Connect(c.Request.Context(), req.Address)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":   challenge.Address,
		"challenge": challenge.Message,
		"issued_at": challenge.IssuedAt,
	})
}

// Authenticate handles POST /auth/wallet/authenticate.
func (h *AuthHandlers) Authenticate(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Email     string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.Authenticate(c.Request.Context(), service.AuthenticateRequest{
		Address:   req.Address,
		Message:   req.Message,
		Signature: req.Signature,
		Email:     req.Email,
		Meta:      requestMeta(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.Tokens.AccessToken,
		"refresh_token": result.Tokens.RefreshToken,
		"user":          result.User,
		"is_new_user":   result.IsNewUser,
	})
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	tokens, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
	})
}

// Logout handles POST /auth/logout.
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the authenticated identity set by the middleware.
func (h *AuthHandlers) Me(c *gin.Context) {
	identity, exists := c.Get(contextIdentity)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Identity not found in context"})
		return
	}
	id := identity.(*core.Identity)
	c.JSON(http.StatusOK, gin.H{
		"user_id":  id.UserID,
		"email":    id.Email,
		"is_admin": id.IsAdmin,
	})
}

// writeError maps failure kinds to externally visible outcomes.
// Credential errors stay terse and non-revealing; infrastructure
// errors collapse to a generic retryable message.
func (h *AuthHandlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrMalformedAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed wallet address"})
	case errors.Is(err, core.ErrInvalidSignatureFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature format"})
	case errors.Is(err, core.ErrSignatureMismatch),
		errors.Is(err, core.ErrChallengeExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication failed"})
	case errors.Is(err, core.ErrDeviceConflict):
		c.JSON(http.StatusForbidden, gin.H{"error": "This device is already linked to another wallet"})
	case errors.Is(err, core.ErrRefreshTokenInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
	default:
		h.log.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Temporary failure, please retry"})
	}
}

func requestMeta(c *gin.Context) core.RequestMeta {
	cookieID, _ := c.Cookie(deviceCookie)
	return core.RequestMeta{
		DeviceID:  c.GetHeader(deviceHeader),
		CookieID:  cookieID,
		UserAgent: c.Request.UserAgent(),
		IP:        c.ClientIP(),
	}
}
