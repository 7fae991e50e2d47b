package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/federation/enterprise/internal/application"
	"github.com/federation/enterprise/internal/domain/entity"
	repo "github.com/federation/enterprise/internal/domain/repository"
	"github.com/federation/enterprise/internal/interface/middleware"
	"github.com/federation/enterprise/pkg/helpers"
	"github.com/federation/enterprise/pkg/mailer"
	"github.com/federation/enterprise/pkg/response"
	"github.com/federation/enterprise/pkg/validation"
)

type UserHandler struct {
	Svc     *userapp.Service
	Logger  *logrus.Logger
	Cookies *helpers.Manager
	Pub     *helpers.RabbitPublisher
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger, cookieDomain string, cookieSecure bool, pub *helpers.RabbitPublisher) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure), Pub: pub}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
}

type loginRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func userJSON(u *entity.User) gin.H {
	out := gin.H{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
	}
	if !u.CreatedAt.IsZero() {
		out["created_at"] = u.CreatedAt
	}
	return out
}

func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, pair, err := h.Svc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNameTaken):
			response.Error[any](c, http.StatusConflict, "name already taken", nil)
		case errors.Is(err, entity.ErrCapability):
			response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
		default:
			h.Logger.WithError(err).Error("registration failed")
			response.Error[any](c, http.StatusInternalServerError, "registration failed", nil)
		}
		return
	}

	h.publishEmail(c, mailer.EmailJob{
		To:       u.Email,
		Template: mailer.TemplateWelcome,
		Data:     map[string]any{"Name": u.Name},
	})

	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusCreated, gin.H{
		"user":          userJSON(u),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "registered", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, pair, err := h.Svc.Login(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		// Credential mismatch and unknown name look identical to the client.
		if errors.Is(err, userapp.ErrAuthentication) {
			response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
			return
		}
		h.Logger.WithError(err).Error("login failed")
		response.Error[any](c, http.StatusInternalServerError, "login failed", nil)
		return
	}

	h.publishEmail(c, mailer.EmailJob{
		To:       u.Email,
		Template: mailer.TemplateLoginNotification,
		Data:     map[string]any{"Name": u.Name, "IP": c.ClientIP()},
	})

	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"user":          userJSON(u),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "login successful", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *UserHandler) Refresh(c *gin.Context) {
	refresh, _ := c.Cookie("refresh_token")
	if refresh == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			refresh = req.RefreshToken
		}
	}
	if refresh == "" {
		response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}

	_, pair, err := h.Svc.Refresh(c.Request.Context(), refresh)
	if err != nil {
		switch {
		case errors.Is(err, helpers.ErrWrongTokenKind):
			response.Error[any](c, http.StatusUnauthorized, "refresh token required", nil)
		case errors.Is(err, helpers.ErrTokenInvalid), errors.Is(err, userapp.ErrAuthentication):
			response.Error[any](c, http.StatusUnauthorized, "invalid refresh token", nil)
		default:
			h.Logger.WithError(err).Error("token refresh failed")
			response.Error[any](c, http.StatusInternalServerError, "token refresh failed", nil)
		}
		return
	}

	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success[any](c, http.StatusOK, gin.H{"refreshed": true}, "token refreshed", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

func (h *UserHandler) Logout(c *gin.Context) {
	u := entity.NewUser(entity.Properties{ID: c.GetString(middleware.CtxUserIDKey)})
	if err := h.Svc.Logout(c.Request.Context(), u); err != nil && !errors.Is(err, repo.ErrNotFound) {
		h.Logger.WithError(err).Warn("logout cleanup failed")
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, gin.H{"logged_out": true}, "logged out", nil)
}

// Me returns the identity reconstructed from the verified access token; no
// database round trip.
func (h *UserHandler) Me(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"id":    c.GetString(middleware.CtxUserIDKey),
		"name":  c.GetString(middleware.CtxUserNameKey),
		"email": c.GetString(middleware.CtxUserEmailKey),
	}, "current user", nil)
}

func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "missing query", nil)
		return
	}
	hits, err := h.Svc.SearchAccounts(c.Request.Context(), q, 10)
	if err != nil {
		h.Logger.WithError(err).Error("account search failed")
		response.Error[any](c, http.StatusInternalServerError, "search failed", nil)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", map[string]any{"count": len(hits)})
}

// publishEmail queues an email job, best effort; a down broker never fails
// the request.
func (h *UserHandler) publishEmail(c *gin.Context, job mailer.EmailJob) {
	if h.Pub == nil {
		return
	}
	if err := h.Pub.PublishJSON(c.Request.Context(), job); err != nil {
		h.Logger.WithError(err).WithField("template", job.Template).Warn("email publish failed")
	}
}
