package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhur-katering/katering-api/pkg/config"
	appErrors "github.com/azhur-katering/katering-api/pkg/errors"
	"github.com/azhur-katering/katering-api/pkg/response"

	"github.com/azhur-katering/katering-api/internal/middleware"
	"github.com/azhur-katering/katering-api/internal/models"
	"github.com/azhur-katering/katering-api/internal/service"
)

// AuthHandler wires HTTP endpoints to the auth and email services. Tokens
// travel in __Host- cookies and are stripped from JSON bodies once set.
type AuthHandler struct {
	auth    *service.AuthService
	email   *service.EmailService
	cookies config.CookieConfig
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(auth *service.AuthService, email *service.EmailService, cookies config.CookieConfig) *AuthHandler {
	return &AuthHandler{auth: auth, email: email, cookies: cookies}
}

// Register godoc
// @Summary Register a new account
// @Description Create an account and send an email verification code
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "registration successful, verification code sent", res)
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by email and password, issuing token cookies
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setTokenCookies(c, res)
	response.OK(c, "login successful", res)
}

// Refresh godoc
// @Summary Refresh the token pair
// @Description Rotate the refresh token cookie and issue a new access token
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	token := h.refreshTokenFrom(c)

	res, err := h.auth.Refresh(c.Request.Context(), token, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setTokenCookies(c, res)
	response.OK(c, "token refreshed", res)
}

// Logout godoc
// @Summary Logout current session
// @Description Revoke the refresh token and clear cookies. Always succeeds.
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token := h.refreshTokenFrom(c)
	h.auth.Logout(c.Request.Context(), token, c.ClientIP(), c.GetHeader("User-Agent"))

	h.clearTokenCookies(c)
	response.OK(c, "logged out", nil)
}

// ChangePassword godoc
// @Summary Change password
// @Description Change the current password, revoke all sessions, and issue a fresh token pair
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ChangePasswordRequest true "Password payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid password payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.auth.ChangePassword(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setTokenCookies(c, res)
	response.OK(c, "password changed", res)
}

// SendVerification godoc
// @Summary Send a verification code
// @Description Issue a fresh email verification code, superseding older ones
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.SendVerificationRequest true "Email payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/send-verification [post]
func (h *AuthHandler) SendVerification(c *gin.Context) {
	var req models.SendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid email payload"))
		return
	}

	if err := h.email.SendVerificationCode(c.Request.Context(), req.Email, c.ClientIP()); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "verification code sent", nil)
}

// VerifyEmail godoc
// @Summary Verify email address
// @Description Redeem a 6 digit verification code
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.VerifyEmailRequest true "Verification payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req models.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verification payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	if err := h.email.VerifyEmail(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "email verified", nil)
}

// Me godoc
// @Summary Current user profile
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	info, err := h.auth.CurrentUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "", info)
}

func (h *AuthHandler) refreshTokenFrom(c *gin.Context) string {
	if cookie, err := c.Cookie(middleware.RefreshTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	var payload struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.ShouldBindJSON(&payload); err == nil {
		return payload.RefreshToken
	}
	return ""
}

// setTokenCookies writes both __Host- cookies and clears the raw token
// values from the response body. Unverified logins carry no tokens.
func (h *AuthHandler) setTokenCookies(c *gin.Context, res *models.AuthResponse) {
	if res == nil || res.AccessToken == nil || res.RefreshToken == nil {
		return
	}

	setCookie(c, middleware.AccessTokenCookie, *res.AccessToken, int(h.cookies.AccessTTL.Seconds()), h.cookies.Secure)
	setCookie(c, middleware.RefreshTokenCookie, *res.RefreshToken, int(h.cookies.RefreshTTL.Seconds()), h.cookies.Secure)
	res.ClearTokens()
}

func (h *AuthHandler) clearTokenCookies(c *gin.Context) {
	setCookie(c, middleware.AccessTokenCookie, "", -1, h.cookies.Secure)
	setCookie(c, middleware.RefreshTokenCookie, "", -1, h.cookies.Secure)
}

// setCookie writes a host-scoped cookie. The __Host- prefix forbids a
// Domain attribute and requires Secure and Path=/.
func setCookie(c *gin.Context, name, value string, maxAge int, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
