package books

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"LIBRIS-backend/internal/platform/apperr"
)

type Handler struct{ svc *Service }

// RegisterRoutes: 閲覧系。認証済みユーザー向け。
func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/books", h.List)
	r.GET("/books/:title", h.Get)
}

// RegisterAdminRoutes: 蔵書管理。admin専用グループに載せる。
func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/books", h.Create)
	r.PUT("/books/:title", h.Update)
	r.PATCH("/books/:title/quantity", h.Adjust)
	r.DELETE("/books/:title", h.Delete)
}

// POST /books
func (h *Handler) Create(c *gin.Context) {
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json or missing required fields"})
		return
	}

	b, created, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK // 既存タイトルへの補充
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, buildBookResponse(b))
}

// GET /books
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	out := make([]BookResponse, 0, len(list))
	for i := range list {
		out = append(out, buildBookResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

// GET /books/:title
func (h *Handler) Get(c *gin.Context) {
	b, err := h.svc.GetByTitle(c.Request.Context(), c.Param("title"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, buildBookResponse(b))
}

// PUT /books/:title
func (h *Handler) Update(c *gin.Context) {
	var req UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	b, err := h.svc.Update(c.Request.Context(), c.Param("title"), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, buildBookResponse(b))
}

// PATCH /books/:title/quantity
// 棚卸し・紛失処理用。貸出・返却は台帳側が在庫を動かすのでここは通らない。
func (h *Handler) Adjust(c *gin.Context) {
	var req AdjustQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json or missing delta"})
		return
	}

	b, err := h.svc.GetByTitle(c.Request.Context(), c.Param("title"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.AdjustQuantity(c.Request.Context(), b.BookID, req.Delta); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	b, err = h.svc.GetByTitle(c.Request.Context(), c.Param("title"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, buildBookResponse(b))
}

// DELETE /books/:title
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("title")); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
