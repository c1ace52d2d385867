package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appsat "github.com/mxsuite/backend/internal/application/sat"
	"github.com/mxsuite/backend/internal/domain/sat"
	"github.com/mxsuite/backend/internal/interfaces/http/dto"
)

// DownloadHandler exposes the bulk download catalog: creating requests
// for a period, triggering sync actions, and promoting staged documents
// into the document store.
type DownloadHandler struct {
	BaseHandler
	downloads *appsat.DownloadService
	imports   *appsat.ImportService
}

// NewDownloadHandler creates a new DownloadHandler
func NewDownloadHandler(downloads *appsat.DownloadService, imports *appsat.ImportService) *DownloadHandler {
	return &DownloadHandler{
		downloads: downloads,
		imports:   imports,
	}
}

// CreateRange godoc
// @Summary      Create download requests for a period
// @Description  Splits the period into month-sized requests and persists them
// @Tags         downloads
// @Accept       json
// @Produce      json
// @Router       /downloads [post]
func (h *DownloadHandler) CreateRange(c *gin.Context) {
	var cmd appsat.CreateRangeCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	requests, err := h.downloads.CreateRange(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, requests)
}

// List godoc
// @Summary      List download requests
// @Tags         downloads
// @Produce      json
// @Router       /downloads [get]
func (h *DownloadHandler) List(c *gin.Context) {
	var query appsat.ListDownloadRequestsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.downloads.List(c.Request.Context(), query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get godoc
// @Summary      Get one download request
// @Tags         downloads
// @Produce      json
// @Router       /downloads/{id} [get]
func (h *DownloadHandler) Get(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	request, err := h.downloads.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, request)
}

// Trigger godoc
// @Summary      Run a sync action on a download request
// @Description  Queues a request, verify or recheck action for async execution
// @Tags         downloads
// @Accept       json
// @Produce      json
// @Router       /downloads/{id}/trigger [post]
func (h *DownloadHandler) Trigger(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	var cmd appsat.TriggerCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	request, err := h.downloads.Trigger(c.Request.Context(), id, sat.TriggerAction(cmd.Action))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, request)
}

// Reset godoc
// @Summary      Re-arm a stalled download request
// @Description  Clears retry state so the request starts over from scratch
// @Tags         downloads
// @Produce      json
// @Router       /downloads/{id}/reset [post]
func (h *DownloadHandler) Reset(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	request, err := h.downloads.ResetForRetry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, request)
}

// Cancel godoc
// @Summary      Cancel a download request
// @Description  Cancels immediately when idle; requests in flight are
// @Description  cancelled when the running job finishes
// @Tags         downloads
// @Produce      json
// @Router       /downloads/{id}/cancel [post]
func (h *DownloadHandler) Cancel(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	request, err := h.downloads.Cancel(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, request)
}

// Delete godoc
// @Summary      Delete a download request and its staging area
// @Tags         downloads
// @Router       /downloads/{id} [delete]
func (h *DownloadHandler) Delete(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	if err := h.downloads.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ListStaged godoc
// @Summary      List the staged documents of a download request
// @Tags         downloads
// @Produce      json
// @Router       /downloads/{id}/documents [get]
func (h *DownloadHandler) ListStaged(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	var query struct {
		Page     int `form:"page"`
		PageSize int `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.imports.ListStaged(c.Request.Context(), id, query.Page, query.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ImportRequest selects staged documents to import. An empty list means
// every pending document of the request.
type ImportRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

// Import godoc
// @Summary      Promote staged documents into the document store
// @Tags         downloads
// @Accept       json
// @Produce      json
// @Router       /downloads/{id}/import [post]
func (h *DownloadHandler) Import(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	// An absent body imports everything pending
	var body ImportRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		h.BadRequest(c, err.Error())
		return
	}

	cmd := appsat.ImportCommand{RequestID: id}
	for _, raw := range body.DocumentIDs {
		docID, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "invalid document ID: "+raw)
			return
		}
		cmd.DocumentIDs = append(cmd.DocumentIDs, docID)
	}

	result, err := h.imports.Import(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// requestID parses the :id path parameter
func (h *DownloadHandler) requestID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "invalid request ID")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "invalid request ID")
		return uuid.Nil, false
	}
	return id, true
}

// RegisterRoutes registers all download routes
func (h *DownloadHandler) RegisterRoutes(rg *gin.RouterGroup) {
	downloads := rg.Group("/downloads")
	{
		downloads.POST("", h.CreateRange)
		downloads.GET("", h.List)
		downloads.GET("/:id", h.Get)
		downloads.DELETE("/:id", h.Delete)
		downloads.POST("/:id/trigger", h.Trigger)
		downloads.POST("/:id/reset", h.Reset)
		downloads.POST("/:id/cancel", h.Cancel)
		downloads.GET("/:id/documents", h.ListStaged)
		downloads.POST("/:id/import", h.Import)
	}
}
