package ledger

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterRoutes: 認証必須グループに載せる。
// ハンドラはパラメータ取り出しとHTTP変換だけで、判断は全部サービス側。
func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/borrows", h.Borrow)
	r.POST("/returns", h.Return)
	r.GET("/borrows", h.List)
}

// POST /borrows
func (h *Handler) Borrow(c *gin.Context) {
	callerID, ok := auth.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json or missing title"})
		return
	}

	res, err := h.svc.Borrow(c.Request.Context(), callerID, req.Title)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, res)
}

// POST /returns
func (h *Handler) Return(c *gin.Context) {
	callerID, ok := auth.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json or missing title"})
		return
	}

	res, err := h.svc.ReturnBook(c.Request.Context(), callerID, req.Title)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /borrows?only_outstanding=1
func (h *Handler) List(c *gin.Context) {
	callerID, ok := auth.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var (
		res []BorrowResponse
		err error
	)
	if v := c.Query("only_outstanding"); v == "true" || v == "1" {
		res, err = h.svc.Outstanding(c.Request.Context(), callerID)
	} else {
		res, err = h.svc.History(c.Request.Context(), callerID)
	}
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
