package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appfiscal "github.com/mxsuite/backend/internal/application/fiscal"
	"github.com/mxsuite/backend/internal/interfaces/http/dto"
)

// DocumentHandler exposes read access to the production document store
type DocumentHandler struct {
	BaseHandler
	documents *appfiscal.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documents *appfiscal.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// List godoc
// @Summary      List fiscal documents
// @Description  Filters by kind, source, RFC and issued-at period
// @Tags         documents
// @Produce      json
// @Router       /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	var query appfiscal.ListDocumentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.documents.List(c.Request.Context(), query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get godoc
// @Summary      Get one fiscal document
// @Tags         documents
// @Produce      json
// @Router       /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "invalid document ID")
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "invalid document ID")
		return
	}

	document, err := h.documents.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, document)
}

// GetByFiscalUUID godoc
// @Summary      Get one fiscal document by its stamped UUID
// @Tags         documents
// @Produce      json
// @Router       /documents/uuid/{fiscal_uuid} [get]
func (h *DocumentHandler) GetByFiscalUUID(c *gin.Context) {
	fiscalUUID := c.Param("fiscal_uuid")

	document, err := h.documents.GetByFiscalUUID(c.Request.Context(), fiscalUUID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, document)
}

// RegisterRoutes registers all document routes
func (h *DocumentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	documents := rg.Group("/documents")
	{
		documents.GET("", h.List)
		documents.GET("/:id", h.Get)
		documents.GET("/uuid/:fiscal_uuid", h.GetByFiscalUUID)
	}
}
