package resource

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/listing"
	"github.com/simp-lee/backoffice/internal/middleware"
	"github.com/simp-lee/backoffice/internal/pkg"
)

// tableTarget is the element id the table partial replaces.
const tableTarget = "resource-table"

// ResourcePageHandler handles page rendering and htmx endpoints for
// configured entities.
type ResourcePageHandler struct {
	svc         *Service
	maxPageSize int
	debounce    time.Duration
}

// NewResourcePageHandler creates a new ResourcePageHandler. debounce is the
// search input delay used by list pages.
func NewResourcePageHandler(svc *Service, maxPageSize int, debounce time.Duration) *ResourcePageHandler {
	return &ResourcePageHandler{svc: svc, maxPageSize: maxPageSize, debounce: debounce}
}

// HomePage renders the entity index.
// GET /
func (h *ResourcePageHandler) HomePage(c *gin.Context) {
	h.render(c, http.StatusOK, "home.html", gin.H{})
}

// ListPage renders an entity list. htmx requests aimed at the table get the
// table partial only.
// GET /resources/:entity
func (h *ResourcePageHandler) ListPage(c *gin.Context) {
	e, err := h.svc.Entity(c.Param("entity"))
	if err != nil {
		h.pageError(c, err)
		return
	}

	state := pkg.ParseListState(c, e.PageSize, h.maxPageSize)
	res, err := h.svc.List(c.Request.Context(), callerFrom(c), e.Name, state)
	if err != nil {
		if errors.Is(err, ErrSuperseded) && pkg.IsHTMX(c) {
			c.Header("HX-Reswap", "none")
			c.Status(http.StatusNoContent)
			return
		}
		h.pageError(c, err)
		return
	}

	tmpl := "resource/list.html"
	if pkg.IsHTMX(c) && c.GetHeader("HX-Target") == tableTarget {
		tmpl = "resource/table.html"
		if res.Notification != nil {
			pkg.ShowToast(c, res.Notification.Message, res.Notification.Type)
		}
	}
	h.render(c, http.StatusOK, tmpl, gin.H{
		"View": newListView(res, h.debounce),
	})
}

// DetailPage renders one record.
// GET /resources/:entity/:id
func (h *ResourcePageHandler) DetailPage(c *gin.Context) {
	detail, err := h.svc.Get(c.Request.Context(), callerFrom(c), c.Param("entity"), c.Param("id"))
	if err != nil {
		h.pageError(c, err)
		return
	}

	h.render(c, http.StatusOK, "resource/detail.html", gin.H{
		"Detail":  detail,
		"BaseURL": "/resources/" + detail.Entity.Name,
	})
}

// NewPage renders the create form.
// GET /resources/:entity/new
func (h *ResourcePageHandler) NewPage(c *gin.Context) {
	e, perm, err := h.svc.Permission(c.Request.Context(), callerFrom(c), c.Param("entity"))
	if err != nil {
		h.pageError(c, err)
		return
	}
	if !perm.Create {
		h.pageError(c, domain.ErrForbidden)
		return
	}

	h.renderForm(c, FormView{Entity: e, Values: map[string]string{}, Status: true})
}

// EditPage renders the edit form filled with the current record.
// GET /resources/:entity/:id/edit
func (h *ResourcePageHandler) EditPage(c *gin.Context) {
	ctx := c.Request.Context()
	caller := callerFrom(c)
	_, perm, err := h.svc.Permission(ctx, caller, c.Param("entity"))
	if err != nil {
		h.pageError(c, err)
		return
	}
	if !perm.Update {
		h.pageError(c, domain.ErrForbidden)
		return
	}

	detail, err := h.svc.Get(ctx, caller, c.Param("entity"), c.Param("id"))
	if err != nil {
		h.pageError(c, err)
		return
	}
	if detail.Disabled {
		h.pageError(c, domain.NewAppError(domain.CodeValidation, "this "+detail.Entity.Label+" cannot be modified", nil))
		return
	}

	h.renderForm(c, editForm(detail))
}

// CreateHTMX handles record creation via htmx form submission.
// POST /resources/:entity
func (h *ResourcePageHandler) CreateHTMX(c *gin.Context) {
	e, err := h.svc.Entity(c.Param("entity"))
	if err != nil {
		h.pageError(c, err)
		return
	}

	data, values := formData(c, e)
	_, err = h.svc.Create(c.Request.Context(), callerFrom(c), e.Name, data)
	if err != nil {
		view := FormView{Entity: e, Values: values, Status: statusValue(data, e)}
		h.renderFormError(c, view, err, "Failed to create "+e.Label+", please try again later")
		return
	}

	pkg.ShowToast(c, e.Label+" created", pkg.ToastSuccess)
	c.Header("HX-Redirect", "/resources/"+e.Name)
	c.Status(http.StatusOK)
}

// UpdateHTMX handles record updates via htmx form submission.
// PUT /resources/:entity/:id
func (h *ResourcePageHandler) UpdateHTMX(c *gin.Context) {
	e, err := h.svc.Entity(c.Param("entity"))
	if err != nil {
		h.pageError(c, err)
		return
	}

	id := c.Param("id")
	data, values := formData(c, e)
	_, err = h.svc.Update(c.Request.Context(), callerFrom(c), e.Name, id, data)
	if err != nil {
		view := FormView{Entity: e, IsEdit: true, ID: id, Values: values, Status: statusValue(data, e)}
		h.renderFormError(c, view, err, "Failed to update "+e.Label+", please try again later")
		return
	}

	pkg.ShowToast(c, e.Label+" updated", pkg.ToastSuccess)
	c.Header("HX-Redirect", "/resources/"+e.Name)
	c.Status(http.StatusOK)
}

// DeleteHTMX handles record deletion via htmx and answers with the refreshed
// table.
// DELETE /resources/:entity/:id
func (h *ResourcePageHandler) DeleteHTMX(c *gin.Context) {
	res, err := h.svc.Delete(c.Request.Context(), callerFrom(c), c.Param("entity"), c.Param("id"))
	h.mutationResponse(c, res, err, "Delete failed, please try again later")
}

// ToggleHTMX flips a record's status via htmx and answers with the refreshed
// table.
// PATCH /resources/:entity/:id/toggle
func (h *ResourcePageHandler) ToggleHTMX(c *gin.Context) {
	res, err := h.svc.Toggle(c.Request.Context(), callerFrom(c), c.Param("entity"), c.Param("id"))
	h.mutationResponse(c, res, err, "Status change failed, please try again later")
}

// BulkHTMX runs a bulk action over the selected rows via htmx and answers
// with the refreshed table.
// POST /resources/:entity/bulk
func (h *ResourcePageHandler) BulkHTMX(c *gin.Context) {
	var req BulkRequest
	if err := c.ShouldBind(&req); err != nil {
		pkg.ErrorToast(c, "Select at least one record and an action")
		c.Status(http.StatusOK)
		return
	}
	res, err := h.svc.Bulk(c.Request.Context(), callerFrom(c), c.Param("entity"), BulkAction(req.Action), req.IDs)
	h.mutationResponse(c, res, err, "Bulk action failed, please try again later")
}

func (h *ResourcePageHandler) mutationResponse(c *gin.Context, res *MutationResult, err error, fallback string) {
	if err != nil {
		if domain.IsUpstreamFailure(err) || domain.IsInternal(err) {
			_ = c.Error(err)
		}
		pkg.ErrorToast(c, pkg.SafeErrorMessage(err, fallback))
		c.Status(http.StatusOK)
		return
	}

	pkg.ShowToast(c, res.Notification.Message, res.Notification.Type)
	if res.List == nil {
		c.Header("HX-Refresh", "true")
		c.Status(http.StatusOK)
		return
	}
	h.render(c, http.StatusOK, "resource/table.html", gin.H{
		"View": newListView(res.List, h.debounce),
	})
}

func (h *ResourcePageHandler) renderForm(c *gin.Context, view FormView) {
	view.CSRFToken = middleware.GetCSRFToken(c)
	h.render(c, http.StatusOK, "resource/form.html", gin.H{"Form": view})
}

func (h *ResourcePageHandler) renderFormError(c *gin.Context, view FormView, err error, fallback string) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		view.Errors = fe
		view.Error = "Please fill in the required fields"
	} else {
		if domain.IsUpstreamFailure(err) || domain.IsInternal(err) {
			_ = c.Error(err)
		}
		view.Error = pkg.SafeErrorMessage(err, fallback)
	}
	h.renderForm(c, view)
}

// render adds the navigation and CSRF token every page needs.
func (h *ResourcePageHandler) render(c *gin.Context, status int, tmpl string, data gin.H) {
	data["Nav"] = h.svc.Entities(c.Request.Context(), callerFrom(c))
	data["Role"] = middleware.GetRole(c)
	data["CSRFToken"] = middleware.GetCSRFToken(c)
	c.HTML(status, tmpl, data)
}

// errorPages maps HTTP status codes to their error templates.
var errorPages = map[int]string{
	http.StatusBadRequest:          "errors/400.html",
	http.StatusForbidden:           "errors/403.html",
	http.StatusNotFound:            "errors/404.html",
	http.StatusBadGateway:          "errors/502.html",
	http.StatusUnprocessableEntity: "errors/502.html",
}

// pageError shows err as a toast for htmx requests and as an error page
// otherwise.
func (h *ResourcePageHandler) pageError(c *gin.Context, err error) {
	if domain.IsUpstreamFailure(err) || domain.IsInternal(err) {
		_ = c.Error(err)
	}
	if pkg.IsHTMX(c) {
		pkg.ErrorToast(c, pkg.SafeErrorMessage(err, "Something went wrong, please try again later"))
		c.Status(http.StatusOK)
		return
	}

	status := domain.HTTPStatusCode(err)
	tmpl, ok := errorPages[status]
	if !ok {
		tmpl = "errors/500.html"
	}
	c.HTML(status, tmpl, gin.H{
		"Message":  pkg.SafeErrorMessage(err, ""),
		"RetryURL": pkg.RetryURL(c),
	})
}

// formData reads the entity's form fields from a submitted form. It returns
// the payload and the raw values for re-rendering.
func formData(c *gin.Context, e *Entity) (map[string]any, map[string]string) {
	data := make(map[string]any)
	values := make(map[string]string)
	for _, f := range e.FormFields() {
		v, ok := c.GetPostForm(f)
		if !ok {
			continue
		}
		data[f] = v
		values[f] = v
	}
	if e.HasToggle() {
		on, _ := listing.ParseBool(c.PostForm(e.StatusField))
		data[e.StatusField] = on
	}
	return data, values
}

func statusValue(data map[string]any, e *Entity) bool {
	on, _ := data[e.StatusField].(bool)
	return on
}

func editForm(d *Detail) FormView {
	e := d.Entity
	view := FormView{Entity: e, IsEdit: true, ID: d.record.ID(), Values: map[string]string{}}
	for _, f := range e.FormFields() {
		view.Values[f] = d.record.Text(f)
	}
	if e.HasToggle() {
		view.Status, _ = d.record.Bool(e.StatusField)
	}
	return view
}
