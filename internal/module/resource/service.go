package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/simp-lee/backoffice/internal/backend"
	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/listing"
	"github.com/simp-lee/backoffice/internal/pkg"
)

// Backend is the part of the upstream client the service needs.
type Backend interface {
	List(ctx context.Context, path string, query url.Values, collectionKey string) ([]listing.Row, error)
	Get(ctx context.Context, path, objectKey string) (listing.Row, error)
	Send(ctx context.Context, req backend.Request) (listing.Row, error)
}

// Caller identifies who a request is made for.
type Caller struct {
	Session string
	Role    string
}

// Notification is a message for the user, shown as a toast.
type Notification struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Pagination is the page metadata of a list result.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
	TotalCount int   `json:"total_count"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
	From       int   `json:"from"`
	To         int   `json:"to"`
	Pages      []int `json:"pages"`
}

// ListResult is one rendered list page.
type ListResult struct {
	Entity       *Entity           `json:"-"`
	Table        listing.Table     `json:"table"`
	Pagination   Pagination        `json:"pagination"`
	State        listing.PageState `json:"state"`
	Status       Status            `json:"status"`
	Notification *Notification     `json:"notification"`
	Permission   domain.Permission `json:"permission"`
}

// MutationResult is the outcome of a create, update, delete or toggle.
type MutationResult struct {
	Item         listing.Row   `json:"item,omitempty"`
	List         *ListResult   `json:"list,omitempty"`
	Notification *Notification `json:"notification"`
}

// Detail is one record prepared for display.
type Detail struct {
	Entity     *Entity           `json:"-"`
	Item       listing.Row       `json:"item"`
	Fields     []listing.Cell    `json:"fields"`
	Disabled   bool              `json:"disabled"`
	Permission domain.Permission `json:"permission"`

	// record is the unredacted item, used to prefill the edit form.
	record listing.Row
}

// FieldErrors maps form fields to the rule they failed.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	return "missing required fields: " + pkg.FieldList(f)
}

// ServiceDeps holds the collaborators of a Service.
type ServiceDeps struct {
	Registry    *Registry
	Backend     Backend
	Permissions domain.PermissionService
	Preferences domain.PreferenceService
	Views       *ViewStore
	Logger      *slog.Logger
}

// Service runs the list pipeline and the mutations of every entity.
type Service struct {
	registry *Registry
	backend  Backend
	perms    domain.PermissionService
	prefs    domain.PreferenceService
	views    *ViewStore
	logger   *slog.Logger
}

// NewService creates a Service. Registry, Backend and Permissions are required.
func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Registry == nil || deps.Backend == nil || deps.Permissions == nil {
		return nil, errors.New("resource.NewService: registry, backend and permissions are required")
	}
	if deps.Views == nil {
		deps.Views = NewViewStore(0)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		registry: deps.Registry,
		backend:  deps.Backend,
		perms:    deps.Permissions,
		prefs:    deps.Preferences,
		views:    deps.Views,
		logger:   deps.Logger,
	}, nil
}

// Entities returns the entities the caller may list.
func (s *Service) Entities(ctx context.Context, caller Caller) []*Entity {
	blob, err := s.perms.Blob(ctx, caller.Role)
	if err != nil {
		s.logger.WarnContext(ctx, "permission lookup failed", slog.String("role", caller.Role), slog.Any("error", err))
		return nil
	}
	var out []*Entity
	for _, e := range s.registry.All() {
		if blob.For(e.PermissionModule).Show {
			out = append(out, e)
		}
	}
	return out
}

// Entity returns the configured entity called name.
func (s *Service) Entity(name string) (*Entity, error) {
	return s.registry.Get(name)
}

// Permission resolves the entity and the caller's flags on it without
// requiring any of them.
func (s *Service) Permission(ctx context.Context, caller Caller, name string) (*Entity, domain.Permission, error) {
	return s.authorize(ctx, caller, name, listing.CapNone)
}

// NewState returns the initial page state of an entity list.
func (s *Service) NewState(e *Entity) listing.PageState {
	return listing.NewPageState(e.PageSize)
}

// List loads the caller's view of the entity with state and renders the
// requested page. When the fetch fails but earlier rows exist, those rows are
// rendered with an error notification instead of failing.
func (s *Service) List(ctx context.Context, caller Caller, name string, state listing.PageState) (*ListResult, error) {
	e, perm, err := s.authorize(ctx, caller, name, listing.CapShow)
	if err != nil {
		return nil, err
	}
	if err := listing.ValidateFilters(state.Filters); err != nil {
		return nil, filterError(err)
	}
	return s.load(ctx, caller, e, perm, state)
}

// Export writes every row matching state as CSV with the caller's visible
// columns. The collection is fetched fresh and no view is touched.
func (s *Service) Export(ctx context.Context, caller Caller, name string, state listing.PageState, w io.Writer) error {
	e, perm, err := s.authorize(ctx, caller, name, listing.CapShow)
	if err != nil {
		return err
	}
	if err := listing.ValidateFilters(state.Filters); err != nil {
		return filterError(err)
	}
	rows, err := s.fetch(e)(ctx)
	if err != nil {
		return err
	}
	result := listing.Run(rows, state, e.ListSpec())
	cols := listing.ApplyLayout(listing.GateColumns(e.Columns, perm), s.layout(ctx, caller, e))
	if err := listing.WriteCSV(w, cols, result.Matched); err != nil {
		return domain.NewAppError(domain.CodeInternal, "failed to write export", err)
	}
	return nil
}

// Get fetches one record for display.
func (s *Service) Get(ctx context.Context, caller Caller, name, id string) (*Detail, error) {
	e, perm, err := s.authorize(ctx, caller, name, listing.CapShow)
	if err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	item, err := s.backend.Get(ctx, e.ItemURL(id), e.ObjectKey)
	if err != nil {
		return nil, err
	}
	fields, hidden := detailFields(e, perm, item)
	return &Detail{
		Entity:     e,
		Item:       redact(item, hidden),
		Fields:     fields,
		Disabled:   e.Disabled(item),
		Permission: perm,
		record:     item,
	}, nil
}

// Create validates required fields and posts a new record, then refreshes
// the caller's list.
func (s *Service) Create(ctx context.Context, caller Caller, name string, data map[string]any) (*MutationResult, error) {
	e, perm, err := s.authorize(ctx, caller, name, listing.CapCreate)
	if err != nil {
		return nil, err
	}
	data = cleanData(data)
	if err := requireFields(data, e.Required); err != nil {
		return nil, err
	}

	return s.mutate(ctx, caller, e, perm, e.Label+" created", func(ctx context.Context) (listing.Row, error) {
		return s.backend.Send(ctx, backend.Request{
			Method:    http.MethodPost,
			Path:      e.Endpoint,
			Body:      e.payload(data),
			ObjectKey: e.ObjectKey,
		})
	})
}

// Update validates the submitted required fields and replaces a record,
// then refreshes the caller's list. Required fields that are not submitted
// are left unchanged upstream.
func (s *Service) Update(ctx context.Context, caller Caller, name, id string, data map[string]any) (*MutationResult, error) {
	e, perm, err := s.authorize(ctx, caller, name, listing.CapUpdate)
	if err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	data = cleanData(data)
	submitted := make([]string, 0, len(e.Required))
	for _, f := range e.Required {
		if _, ok := data[f]; ok {
			submitted = append(submitted, f)
		}
	}
	if err := requireFields(data, submitted); err != nil {
		return nil, err
	}
	if err := s.checkEditable(caller, e, id); err != nil {
		return nil, err
	}

	return s.mutate(ctx, caller, e, perm, e.Label+" updated", func(ctx context.Context) (listing.Row, error) {
		return s.backend.Send(ctx, backend.Request{
			Method:    http.MethodPut,
			Path:      e.ItemURL(id),
			Body:      e.payload(data),
			ObjectKey: e.ObjectKey,
		})
	})
}

// Delete removes a record, then refreshes the caller's list.
func (s *Service) Delete(ctx context.Context, caller Caller, name, id string) (*MutationResult, error) {
	e, perm, err := s.authorize(ctx, caller, name, listing.CapDelete)
	if err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := s.checkEditable(caller, e, id); err != nil {
		return nil, err
	}

	return s.mutate(ctx, caller, e, perm, e.Label+" deleted", func(ctx context.Context) (listing.Row, error) {
		return s.backend.Send(ctx, backend.Request{
			Method:    http.MethodDelete,
			Path:      e.ItemURL(id),
			ObjectKey: e.ObjectKey,
		})
	})
}

// Toggle flips the status field of a record. The caller's view shows the new
// value immediately; if the backend rejects the change the old value is put
// back, otherwise the list is refetched.
func (s *Service) Toggle(ctx context.Context, caller Caller, name, id string) (*MutationResult, error) {
	e, perm, err := s.authorize(ctx, caller, name, listing.CapUpdate)
	if err != nil {
		return nil, err
	}
	if !e.HasToggle() {
		return nil, domain.NewAppError(domain.CodeValidation, e.Label+" has no status to toggle", nil)
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	item, next, err := s.setStatus(ctx, caller, e, id, nil)
	if err != nil {
		return nil, err
	}

	msg := e.Label + " deactivated"
	if next {
		msg = e.Label + " activated"
	}
	return s.settle(ctx, caller, e, perm, item, &Notification{Type: pkg.ToastSuccess, Message: msg}), nil
}

// setStatus writes a record's status field upstream. A nil want flips the
// current value. A record in the caller's view shows the new value at once
// and gets the old one back if the backend rejects the change.
func (s *Service) setStatus(ctx context.Context, caller Caller, e *Entity, id string, want *bool) (listing.Row, bool, error) {
	view := s.views.Get(caller.Session, e.Name, e.PageSize)
	row, inView := view.Row(id)
	if !inView {
		var err error
		row, err = s.backend.Get(ctx, e.ItemURL(id), e.ObjectKey)
		if err != nil {
			return nil, false, err
		}
	}
	if e.Disabled(row) {
		return nil, false, domain.NewAppError(domain.CodeValidation, "this "+e.Label+" cannot be modified", nil)
	}

	original := row[e.StatusField]
	current, _ := row.Bool(e.StatusField)
	next := !current
	if want != nil {
		next = *want
	}
	if inView {
		view.SetField(id, e.StatusField, next)
	}

	method, path := e.toggleRequest(id)
	item, err := s.backend.Send(ctx, backend.Request{
		Method:    method,
		Path:      path,
		Body:      e.payload(map[string]any{e.StatusField: next}),
		ObjectKey: e.ObjectKey,
	})
	if err != nil {
		if inView {
			view.SwapField(id, e.StatusField, next, original)
		}
		s.logger.WarnContext(ctx, "status change reverted",
			slog.String("entity", e.Name),
			slog.String("id", id),
			slog.Any("error", err),
		)
		return nil, false, err
	}
	return item, next, nil
}

// mutate runs op and, when it succeeds, refetches the caller's list so it
// reflects the backend. Nothing is changed locally before the backend
// confirms.
func (s *Service) mutate(ctx context.Context, caller Caller, e *Entity, perm domain.Permission, success string, op func(context.Context) (listing.Row, error)) (*MutationResult, error) {
	item, err := op(ctx)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, caller, e, perm, item, &Notification{Type: pkg.ToastSuccess, Message: success}), nil
}

// settle logs a confirmed mutation and refetches the caller's list into the
// result.
func (s *Service) settle(ctx context.Context, caller Caller, e *Entity, perm domain.Permission, item listing.Row, note *Notification) *MutationResult {
	s.logger.InfoContext(ctx, "resource mutated",
		slog.String("entity", e.Name),
		slog.String("result", note.Message),
	)
	res := &MutationResult{Item: item, Notification: note}
	s.refreshInto(ctx, caller, e, perm, res)
	return res
}

// refreshInto reloads the caller's view with its current state and stores
// the list in res. A failed reload keeps the mutation successful and adds a
// warning.
func (s *Service) refreshInto(ctx context.Context, caller Caller, e *Entity, perm domain.Permission, res *MutationResult) {
	view := s.views.Get(caller.Session, e.Name, e.PageSize)
	list, err := s.load(ctx, caller, e, perm, view.State())
	switch {
	case errors.Is(err, ErrSuperseded):
		// A newer load will render the list.
	case err != nil:
		res.Notification = &Notification{
			Type:    pkg.ToastInfo,
			Message: res.Notification.Message + ", but the list could not be refreshed",
		}
	default:
		res.List = list
		if list.Notification != nil {
			res.Notification = &Notification{
				Type:    pkg.ToastInfo,
				Message: res.Notification.Message + ", but the list could not be refreshed",
			}
		}
	}
}

func (s *Service) load(ctx context.Context, caller Caller, e *Entity, perm domain.Permission, state listing.PageState) (*ListResult, error) {
	view := s.views.Get(caller.Session, e.Name, e.PageSize)
	snap, err := view.Load(ctx, state, s.fetch(e))
	if err != nil {
		if errors.Is(err, ErrSuperseded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		s.logger.WarnContext(ctx, "list fetch failed",
			slog.String("entity", e.Name),
			slog.Any("error", err),
		)
		if snap.LoadedAt.IsZero() {
			return nil, err
		}
		res := s.render(ctx, caller, e, perm, snap.Rows, state)
		res.Status = StatusError
		res.Notification = &Notification{
			Type:    pkg.ToastError,
			Message: pkg.SafeErrorMessage(err, "Failed to load "+e.Label+" list"),
		}
		return res, nil
	}
	return s.render(ctx, caller, e, perm, snap.Rows, state), nil
}

func (s *Service) render(ctx context.Context, caller Caller, e *Entity, perm domain.Permission, rows []listing.Row, state listing.PageState) *ListResult {
	result := listing.Run(rows, state, e.ListSpec())
	table := listing.BuildTable(result.Page, e.TableSpec(s.layout(ctx, caller, e)), perm)
	return &ListResult{
		Entity: e,
		Table:  table,
		Pagination: Pagination{
			Page:       result.Page.Page,
			PageSize:   result.Page.PageSize,
			TotalPages: result.Page.TotalPages,
			TotalCount: result.Page.TotalCount,
			HasPrev:    result.Page.HasPrev,
			HasNext:    result.Page.HasNext,
			From:       result.Page.FirstIndex(),
			To:         result.Page.LastIndex(),
			Pages:      result.Page.Window,
		},
		State:      result.State,
		Status:     StatusReady,
		Permission: perm,
	}
}

func (s *Service) fetch(e *Entity) FetchFunc {
	return func(ctx context.Context) ([]listing.Row, error) {
		return s.backend.List(ctx, e.Endpoint, nil, e.CollectionKey)
	}
}

func (s *Service) layout(ctx context.Context, caller Caller, e *Entity) listing.Layout {
	if s.prefs == nil {
		return listing.Layout{}
	}
	return s.prefs.Layout(ctx, caller.Role, e.StorageKey())
}

// authorize resolves the entity and checks the caller holds capability on
// its permission module.
func (s *Service) authorize(ctx context.Context, caller Caller, name string, capability listing.Capability) (*Entity, domain.Permission, error) {
	e, err := s.registry.Get(name)
	if err != nil {
		return nil, domain.Permission{}, err
	}
	blob, err := s.perms.Blob(ctx, caller.Role)
	if err != nil {
		return nil, domain.Permission{}, err
	}
	perm := blob.For(e.PermissionModule)
	if !perm.Allows(capability) {
		return nil, perm, domain.NewAppError(domain.CodeForbidden,
			fmt.Sprintf("You do not have permission to %s %s", capability, e.Label), nil)
	}
	return e, perm, nil
}

// checkEditable rejects changes to a row the caller's list shows as
// disabled.
func (s *Service) checkEditable(caller Caller, e *Entity, id string) error {
	row, ok := s.views.Get(caller.Session, e.Name, e.PageSize).Row(id)
	if ok && e.Disabled(row) {
		return domain.NewAppError(domain.CodeValidation, "this "+e.Label+" cannot be modified", nil)
	}
	return nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, "/?#") {
		return domain.NewAppError(domain.CodeValidation, "invalid id", nil)
	}
	return nil
}

func filterError(err error) error {
	var ve *listing.ValidationError
	if errors.As(err, &ve) {
		return domain.NewAppError(domain.CodeValidation, ve.Error(), ve)
	}
	return domain.NewAppError(domain.CodeValidation, "invalid filters", err)
}

func requireFields(data map[string]any, fields []string) error {
	if errs := pkg.RequireFields(data, fields); len(errs) > 0 {
		fe := FieldErrors(errs)
		return domain.NewAppError(domain.CodeValidation, fe.Error(), fe)
	}
	return nil
}

// cleanData trims string values.
func cleanData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		out[k] = v
	}
	return out
}

// detailFields lists the granted columns first, then every other scalar
// field of item in key order. Keys of columns the caller may not see are
// returned as hidden and left out of the rest.
func detailFields(e *Entity, perm domain.Permission, item listing.Row) ([]listing.Cell, map[string]bool) {
	fields := make([]listing.Cell, 0, len(item))
	seen := make(map[string]bool, len(e.Columns))
	hidden := make(map[string]bool)
	for _, c := range e.Columns {
		seen[c.Key] = true
		hidden[c.Key] = true
	}
	for _, c := range listing.GateColumns(e.Columns, perm) {
		delete(hidden, c.Key)
		fields = append(fields, e.cell(item, c))
	}
	rest := make([]string, 0, len(item))
	for k, v := range item {
		if seen[k] {
			continue
		}
		if _, nested := v.([]any); nested {
			continue
		}
		rest = append(rest, k)
	}
	sort.Strings(rest)
	for _, k := range rest {
		fields = append(fields, e.cell(item, listing.ColumnConfig{Key: k, Label: labelize(k)}))
	}
	return fields, hidden
}

// redact returns item without the hidden keys.
func redact(item listing.Row, hidden map[string]bool) listing.Row {
	if len(hidden) == 0 {
		return item
	}
	out := make(listing.Row, len(item))
	for k, v := range item {
		if !hidden[k] {
			out[k] = v
		}
	}
	return out
}

// labelize turns "created_at" into "Created at".
func labelize(key string) string {
	s := strings.ReplaceAll(key, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
