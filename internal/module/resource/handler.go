package resource

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/middleware"
	"github.com/simp-lee/backoffice/internal/pkg"
)

// ResourceHandler handles REST API requests for configured entities.
type ResourceHandler struct {
	svc         *Service
	maxPageSize int
}

// NewResourceHandler creates a new ResourceHandler. maxPageSize caps the
// page_size query parameter.
func NewResourceHandler(svc *Service, maxPageSize int) *ResourceHandler {
	return &ResourceHandler{svc: svc, maxPageSize: maxPageSize}
}

// Index handles GET /api/v1/resources.
func (h *ResourceHandler) Index(c *gin.Context) {
	entities := h.svc.Entities(c.Request.Context(), callerFrom(c))
	out := make([]EntitySummary, 0, len(entities))
	for _, e := range entities {
		out = append(out, summarize(e))
	}
	pkg.Success(c, out)
}

// List handles GET /api/v1/resources/:entity.
func (h *ResourceHandler) List(c *gin.Context) {
	e, err := h.svc.Entity(c.Param("entity"))
	if err != nil {
		pkg.Error(c, err)
		return
	}

	state := pkg.ParseListState(c, e.PageSize, h.maxPageSize)
	res, err := h.svc.List(c.Request.Context(), callerFrom(c), e.Name, state)
	if err != nil {
		writeError(c, err)
		return
	}

	pkg.List(c, ListResponse{ListResult: res, Entity: summarize(e)})
}

// Export handles GET /api/v1/resources/:entity/export.
func (h *ResourceHandler) Export(c *gin.Context) {
	e, err := h.svc.Entity(c.Param("entity"))
	if err != nil {
		pkg.Error(c, err)
		return
	}

	state := pkg.ParseListState(c, e.PageSize, h.maxPageSize)
	var buf bytes.Buffer
	if err := h.svc.Export(c.Request.Context(), callerFrom(c), e.Name, state, &buf); err != nil {
		writeError(c, err)
		return
	}

	filename := e.Name + "-" + time.Now().Format("20060102-150405") + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Get handles GET /api/v1/resources/:entity/:id.
func (h *ResourceHandler) Get(c *gin.Context) {
	detail, err := h.svc.Get(c.Request.Context(), callerFrom(c), c.Param("entity"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	pkg.Success(c, detail)
}

// Create handles POST /api/v1/resources/:entity.
func (h *ResourceHandler) Create(c *gin.Context) {
	var data map[string]any
	if err := c.ShouldBindJSON(&data); err != nil {
		pkg.ValidationError(c, err)
		return
	}

	res, err := h.svc.Create(c.Request.Context(), callerFrom(c), c.Param("entity"), data)
	if err != nil {
		writeError(c, err)
		return
	}

	pkg.Created(c, res)
}

// Update handles PUT /api/v1/resources/:entity/:id.
func (h *ResourceHandler) Update(c *gin.Context) {
	var data map[string]any
	if err := c.ShouldBindJSON(&data); err != nil {
		pkg.ValidationError(c, err)
		return
	}

	res, err := h.svc.Update(c.Request.Context(), callerFrom(c), c.Param("entity"), c.Param("id"), data)
	if err != nil {
		writeError(c, err)
		return
	}

	pkg.Success(c, res)
}

// Delete handles DELETE /api/v1/resources/:entity/:id.
func (h *ResourceHandler) Delete(c *gin.Context) {
	res, err := h.svc.Delete(c.Request.Context(), callerFrom(c), c.Param("entity"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	pkg.Success(c, res)
}

// Toggle handles PATCH /api/v1/resources/:entity/:id/toggle.
func (h *ResourceHandler) Toggle(c *gin.Context) {
	res, err := h.svc.Toggle(c.Request.Context(), callerFrom(c), c.Param("entity"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	pkg.Success(c, res)
}

// Bulk handles POST /api/v1/resources/:entity/bulk.
func (h *ResourceHandler) Bulk(c *gin.Context) {
	var req BulkRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	res, err := h.svc.Bulk(c.Request.Context(), callerFrom(c), c.Param("entity"), BulkAction(req.Action), req.IDs)
	if err != nil {
		writeError(c, err)
		return
	}

	pkg.Success(c, res)
}

// writeError sends err as a JSON error. A superseded load answers 409 and
// missing required fields are listed per field.
func writeError(c *gin.Context, err error) {
	var fe FieldErrors
	switch {
	case errors.Is(err, ErrSuperseded):
		c.JSON(http.StatusConflict, pkg.Response{
			Code:    http.StatusConflict,
			Message: "superseded by a newer request",
		})
	case errors.As(err, &fe):
		pkg.FieldErrors(c, fe)
	default:
		if domain.IsUpstreamFailure(err) || domain.IsInternal(err) {
			_ = c.Error(err)
		}
		pkg.Error(c, err)
	}
}

func callerFrom(c *gin.Context) Caller {
	return Caller{
		Session: middleware.GetSessionID(c),
		Role:    middleware.GetRole(c),
	}
}
