package users

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/auth"
)

type Handler struct {
	svc    *Service
	issuer *auth.TokenIssuer
}

// RegisterPublicRoutes: 未認証で叩ける register / login
func RegisterPublicRoutes(r gin.IRoutes, svc *Service, issuer *auth.TokenIssuer) {
	h := &Handler{svc: svc, issuer: issuer}
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
}

// RegisterProtectedRoutes: 本人のプロフィール操作
func RegisterProtectedRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/me", h.Me)
	r.PUT("/me", h.UpdateMe)
}

// RegisterAdminRoutes: 会員管理（admin専用グループに載せる）
func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/users", h.List)
	r.DELETE("/users/:email", h.Delete)
}

// POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json or missing required fields"})
		return
	}

	u, err := h.svc.Create(c.Request.Context(), req.Firstname, req.Lastname, req.Email, req.Password)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	// 元アプリ同様、登録成功時はそのままログイン状態にする
	token, err := h.issuer.Issue(u.UserID, string(u.Role))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, SessionResponse{Token: token, User: u.Profile()})
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	u, err := h.svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	token, err := h.issuer.Issue(u.UserID, string(u.Role))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Token: token, User: u.Profile()})
}

// GET /me
func (h *Handler) Me(c *gin.Context) {
	callerID, ok := auth.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	u, err := h.svc.Get(c.Request.Context(), callerID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, u.Profile())
}

// PUT /me
func (h *Handler) UpdateMe(c *gin.Context) {
	callerID, ok := auth.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	u, err := h.svc.UpdateProfile(c.Request.Context(), callerID, req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, u.Profile())
}

// GET /users
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	out := make([]UserResponse, 0, len(list))
	for i := range list {
		out = append(out, list[i].Profile())
	}
	c.JSON(http.StatusOK, out)
}

// DELETE /users/:email
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("email")); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
