package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/simp-lee/pagination"

	"github.com/simp-lee/backoffice/internal/backend"
	"github.com/simp-lee/backoffice/internal/config"
	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/listing"
)

// fakeUpstream serves a "sites" collection the way the REST backend does.
type fakeUpstream struct {
	mu        sync.Mutex
	rows      []map[string]any
	nextID    int
	failList  bool
	failSend  bool
	listCalls int
	sends     []sentRequest
}

type sentRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		nextID: 4,
		rows: []map[string]any{
			{"id": 1, "name": "Alpha", "code": "A1", "status": true, "created_at": "2024-01-05"},
			{"id": 2, "name": "Bravo", "code": "B2", "status": false, "created_at": "2024-02-10"},
			{"id": 3, "name": "Charlie", "code": "LOCK", "status": true, "created_at": "2024-03-15"},
		},
	}
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodGet && r.URL.Path == "/sites.json" {
		f.listCalls++
		if f.failList {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"message":"database unavailable"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sites": f.rows})
		return
	}

	if r.Method != http.MethodGet {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.sends = append(f.sends, sentRequest{Method: r.Method, Path: r.URL.Path, Body: body})
		if f.failSend {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"message":"rejected by backend"}`)
			return
		}
		if r.Method == http.MethodPost {
			site, _ := body["site"].(map[string]any)
			site["id"] = f.nextID
			f.nextID++
			f.rows = append(f.rows, site)
			_ = json.NewEncoder(w).Encode(map[string]any{"site": site})
			return
		}
	}

	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/sites/"), ".json")
	id = strings.TrimSuffix(id, "/toggle")
	for i, row := range f.rows {
		if jsonID(row["id"]) != id {
			continue
		}
		switch r.Method {
		case http.MethodDelete:
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		case http.MethodPut, http.MethodPatch:
			site, _ := f.sends[len(f.sends)-1].Body["site"].(map[string]any)
			for k, v := range site {
				row[k] = v
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"site": row})
		return
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, `{"message":"site not found"}`)
}

func (f *fakeUpstream) lastSend() sentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sends) == 0 {
		return sentRequest{}
	}
	return f.sends[len(f.sends)-1]
}

func (f *fakeUpstream) calls() (lists, sends int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, len(f.sends)
}

func (f *fakeUpstream) set(fn func(f *fakeUpstream)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func jsonID(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// stubPermissions serves fixed blobs per role.
type stubPermissions struct {
	blobs map[string]domain.PermissionBlob
}

func (s stubPermissions) List(context.Context, domain.PageRequest) (*pagination.Pagination[domain.RolePermission], error) {
	return &pagination.Pagination[domain.RolePermission]{}, nil
}

func (s stubPermissions) Blob(_ context.Context, role string) (domain.PermissionBlob, error) {
	return s.blobs[role], nil
}

func (s stubPermissions) Replace(_ context.Context, _ string, blob domain.PermissionBlob) (domain.PermissionBlob, error) {
	return blob, nil
}

func (s stubPermissions) Seed(context.Context, map[string]domain.PermissionBlob) error {
	return nil
}

func testPermissions() stubPermissions {
	return stubPermissions{blobs: map[string]domain.PermissionBlob{
		"admin":  {"site": {Create: true, Update: true, Delete: true, Show: true}},
		"viewer": {"site": {Show: true}},
	}}
}

func sitesConfig() config.EntityConfig {
	return config.EntityConfig{
		Name:             "sites",
		Label:            "Site",
		Endpoint:         "/sites.json",
		ItemPath:         "/sites/{id}.json",
		CollectionKey:    "sites",
		ObjectKey:        "site",
		PayloadKey:       "site",
		PermissionModule: "site",
		Columns: []listing.ColumnConfig{
			{Key: "id", Label: "ID", Sortable: true},
			{Key: "name", Label: "Name", Sortable: true},
			{Key: "code", Label: "Code"},
			{Key: "status", Label: "Status"},
		},
		SearchFields: []string{"name", "code"},
		StatusField:  "status",
		Required:     []string{"name", "code"},
		PageSize:     2,
		DisabledWhen: `row.code == "LOCK"`,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, cfgs ...config.EntityConfig) (*Service, *fakeUpstream) {
	t.Helper()
	if len(cfgs) == 0 {
		cfgs = []config.EntityConfig{sitesConfig()}
	}
	up := newFakeUpstream()
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	reg, err := NewRegistry(cfgs)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	svc, err := NewService(ServiceDeps{
		Registry:    reg,
		Backend:     backend.NewClient(backend.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, discardLogger()),
		Permissions: testPermissions(),
		Views:       NewViewStore(time.Minute),
		Logger:      discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, up
}

var admin = Caller{Session: "s1", Role: "admin"}

func TestNewService_RequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceDeps{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestService_ListSortsAndPaginates(t *testing.T) {
	svc, _ := newTestService(t)

	state := listing.NewPageState(2)
	state.SortKey, state.SortDirection = "name", listing.Desc
	res, err := svc.List(context.Background(), admin, "sites", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Status != StatusReady {
		t.Errorf("expected status ready, got %s", res.Status)
	}
	if res.Pagination.TotalCount != 3 || res.Pagination.TotalPages != 2 {
		t.Errorf("expected 3 rows on 2 pages, got %+v", res.Pagination)
	}
	if !res.Pagination.HasNext || res.Pagination.HasPrev {
		t.Errorf("unexpected prev/next flags %+v", res.Pagination)
	}
	if len(res.Table.Rows) != 2 || res.Table.Rows[0].ID != "3" || res.Table.Rows[1].ID != "2" {
		t.Fatalf("expected rows 3,2, got %+v", res.Table.Rows)
	}
	if !res.Table.CanCreate {
		t.Error("expected admin to be able to create")
	}
}

func TestService_ListClampsPage(t *testing.T) {
	svc, _ := newTestService(t)

	state := listing.NewPageState(2)
	state.Page = 9
	res, err := svc.List(context.Background(), admin, "sites", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State.Page != 2 || len(res.Table.Rows) != 1 {
		t.Errorf("expected clamped page 2 with 1 row, got page %d with %d rows", res.State.Page, len(res.Table.Rows))
	}
}

func TestService_ListSearchAndFilter(t *testing.T) {
	svc, _ := newTestService(t)

	state := listing.NewPageState(10).WithSearch("a").WithFilters(map[string]string{"status": "true"})
	res, err := svc.List(context.Background(), admin, "sites", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Pagination.TotalCount != 2 {
		t.Fatalf("expected 2 active matches, got %d", res.Pagination.TotalCount)
	}
}

func TestService_ListForbiddenWithoutShow(t *testing.T) {
	svc, up := newTestService(t)

	_, err := svc.List(context.Background(), Caller{Session: "s2", Role: "nobody"}, "sites", listing.NewPageState(2))
	if !domain.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if lists, _ := up.calls(); lists != 0 {
		t.Errorf("expected no upstream call, got %d", lists)
	}
}

func TestService_ListUnknownEntity(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.List(context.Background(), admin, "nope", listing.NewPageState(2))
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_ListRejectsInvertedDateRangeWithoutFetching(t *testing.T) {
	svc, up := newTestService(t)

	state := listing.NewPageState(2).WithFilters(map[string]string{
		"created_at__from": "2024-03-01",
		"created_at__to":   "2024-01-01",
	})
	_, err := svc.List(context.Background(), admin, "sites", state)
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if lists, _ := up.calls(); lists != 0 {
		t.Errorf("expected no upstream call, got %d", lists)
	}
}

func TestService_ListFirstFailureReturnsError(t *testing.T) {
	svc, up := newTestService(t)
	up.set(func(f *fakeUpstream) { f.failList = true })

	_, err := svc.List(context.Background(), admin, "sites", listing.NewPageState(2))
	if !domain.IsUpstreamFailure(err) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}

func TestService_ListKeepsRowsWhenReloadFails(t *testing.T) {
	svc, up := newTestService(t)
	ctx := context.Background()

	if _, err := svc.List(ctx, admin, "sites", listing.NewPageState(2)); err != nil {
		t.Fatalf("first load: %v", err)
	}
	up.set(func(f *fakeUpstream) { f.failList = true })

	res, err := svc.List(ctx, admin, "sites", listing.NewPageState(2))
	if err != nil {
		t.Fatalf("expected stale rows instead of error, got %v", err)
	}
	if res.Status != StatusError {
		t.Errorf("expected status error, got %s", res.Status)
	}
	if res.Notification == nil || res.Notification.Type != "error" {
		t.Fatalf("expected error notification, got %+v", res.Notification)
	}
	if !strings.Contains(res.Notification.Message, "database unavailable") {
		t.Errorf("expected upstream message, got %q", res.Notification.Message)
	}
	if len(res.Table.Rows) != 2 {
		t.Errorf("expected previous rows, got %d", len(res.Table.Rows))
	}
}

func TestService_ViewsArePerSession(t *testing.T) {
	svc, up := newTestService(t)
	ctx := context.Background()

	if _, err := svc.List(ctx, admin, "sites", listing.NewPageState(2)); err != nil {
		t.Fatalf("load: %v", err)
	}
	up.set(func(f *fakeUpstream) { f.failList = true })

	_, err := svc.List(ctx, Caller{Session: "other", Role: "admin"}, "sites", listing.NewPageState(2))
	if err == nil {
		t.Fatal("expected a fresh session to see the failure")
	}
}

func TestService_ListDisabledRowsKeepReadOnlyActions(t *testing.T) {
	svc, _ := newTestService(t)

	state := listing.NewPageState(10)
	res, err := svc.List(context.Background(), admin, "sites", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, row := range res.Table.Rows {
		if row.ID != "3" {
			continue
		}
		if !row.Disabled {
			t.Fatal("expected LOCK row to be disabled")
		}
		if len(row.Actions) != 1 || row.Actions[0].Name != "show" {
			t.Errorf("expected only the show action, got %+v", row.Actions)
		}
		return
	}
	t.Fatal("row 3 missing")
}

func TestService_ViewerSeesNoMutatingActions(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.List(context.Background(), Caller{Session: "v", Role: "viewer"}, "sites", listing.NewPageState(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Table.CanCreate {
		t.Error("viewer must not be able to create")
	}
	for _, row := range res.Table.Rows {
		for _, a := range row.Actions {
			if a.Name != "show" {
				t.Errorf("unexpected action %q for viewer", a.Name)
			}
		}
	}
}

func TestService_Export(t *testing.T) {
	svc, _ := newTestService(t)

	var buf bytes.Buffer
	state := listing.NewPageState(1).WithFilters(map[string]string{"name__like": "a"})
	if err := svc.Export(context.Background(), admin, "sites", state, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "ID,Name,Code,Status" {
		t.Errorf("unexpected header %q", lines[0])
	}
	// Every match is exported, not just the current page.
	if len(lines) != 4 {
		t.Errorf("expected 3 records, got %d lines: %q", len(lines), buf.String())
	}
}

func TestService_ExportForbidden(t *testing.T) {
	svc, _ := newTestService(t)

	var buf bytes.Buffer
	err := svc.Export(context.Background(), Caller{Role: "nobody"}, "sites", listing.NewPageState(2), &buf)
	if !domain.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestService_Get(t *testing.T) {
	svc, _ := newTestService(t)

	detail, err := svc.Get(context.Background(), admin, "sites", "3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Item.Text("name") != "Charlie" {
		t.Errorf("expected Charlie, got %q", detail.Item.Text("name"))
	}
	if !detail.Disabled {
		t.Error("expected LOCK row to be disabled")
	}
	if len(detail.Fields) != 5 || detail.Fields[4].Key != "created_at" {
		t.Errorf("expected configured columns then created_at, got %+v", detail.Fields)
	}
}

func TestService_GetHidesGatedColumns(t *testing.T) {
	cfg := sitesConfig()
	cfg.Columns[2].Requires = listing.CapDelete
	svc, _ := newTestService(t, cfg)

	detail, err := svc.Get(context.Background(), Caller{Session: "v", Role: "viewer"}, "sites", "3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, f := range detail.Fields {
		if f.Key == "code" {
			t.Errorf("viewer detail exposes gated column: %+v", f)
		}
	}
	if _, ok := detail.Item["code"]; ok {
		t.Errorf("viewer item exposes gated key: %v", detail.Item)
	}
	if !detail.Disabled {
		t.Error("disabled rule must still see the gated field")
	}
	if got := editForm(detail).Values["code"]; got != "LOCK" {
		t.Errorf("edit form code = %q, want LOCK", got)
	}

	full, err := svc.Get(context.Background(), admin, "sites", "3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if full.Item.Text("code") != "LOCK" {
		t.Errorf("admin item code = %q, want LOCK", full.Item.Text("code"))
	}
}

func TestService_GetNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), admin, "sites", "99")
	if !domain.IsUpstreamFailure(err) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}

func TestService_GetRejectsBadID(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), admin, "sites", "1/../2")
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_CreateRequiresFields(t *testing.T) {
	svc, up := newTestService(t)

	_, err := svc.Create(context.Background(), admin, "sites", map[string]any{"name": "   "})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	if fe["name"] != "required" || fe["code"] != "required" {
		t.Errorf("expected name and code required, got %v", fe)
	}
	if _, sends := up.calls(); sends != 0 {
		t.Errorf("expected no upstream mutation, got %d", sends)
	}
}

func TestService_CreateSendsPayloadAndRefreshes(t *testing.T) {
	svc, up := newTestService(t)
	ctx := context.Background()

	if _, err := svc.List(ctx, admin, "sites", listing.NewPageState(2)); err != nil {
		t.Fatalf("load: %v", err)
	}
	res, err := svc.Create(ctx, admin, "sites", map[string]any{"name": " Delta ", "code": "D4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := up.lastSend()
	if sent.Method != http.MethodPost || sent.Path != "/sites.json" {
		t.Errorf("expected POST /sites.json, got %s %s", sent.Method, sent.Path)
	}
	site, _ := sent.Body["site"].(map[string]any)
	if site["name"] != "Delta" {
		t.Errorf("expected trimmed name in payload, got %v", sent.Body)
	}
	if res.Item.Text("name") != "Delta" {
		t.Errorf("expected created item, got %v", res.Item)
	}
	if res.List == nil || res.List.Pagination.TotalCount != 4 {
		t.Fatalf("expected refreshed list with 4 rows, got %+v", res.List)
	}
	if res.Notification.Type != "success" {
		t.Errorf("expected success notification, got %+v", res.Notification)
	}
	if lists, _ := up.calls(); lists != 2 {
		t.Errorf("expected a refetch after create, got %d list calls", lists)
	}
}

func TestService_CreateForbiddenForViewer(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), Caller{Role: "viewer"}, "sites", map[string]any{"name": "x", "code": "y"})
	if !domain.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestService_CreateUpstreamRejection(t *testing.T) {
	svc, up := newTestService(t)
	up.set(func(f *fakeUpstream) { f.failSend = true })

	_, err := svc.Create(context.Background(), admin, "sites", map[string]any{"name": "x", "code": "y"})
	if !domain.IsUpstreamFailure(err) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}

func TestService_CreateRefreshFailureStillSucceeds(t *testing.T) {
	svc, up := newTestService(t)
	up.set(func(f *fakeUpstream) { f.failList = true })

	res, err := svc.Create(context.Background(), admin, "sites", map[string]any{"name": "x", "code": "y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.List != nil {
		t.Errorf("expected no list, got %+v", res.List)
	}
	if !strings.Contains(res.Notification.Message, "could not be refreshed") {
		t.Errorf("expected refresh warning, got %q", res.Notification.Message)
	}
}

func TestService_UpdateValidatesSubmittedRequiredFields(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Update(context.Background(), admin, "sites", "1", map[string]any{"name": ""})
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if len(fe) != 1 || fe["name"] != "required" {
		t.Errorf("expected only name to fail, got %v", fe)
	}
}

func TestService_UpdatePutsItem(t *testing.T) {
	svc, up := newTestService(t)

	res, err := svc.Update(context.Background(), admin, "sites", "2", map[string]any{"name": "Bravo II"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sent := up.lastSend()
	if sent.Method != http.MethodPut || sent.Path != "/sites/2.json" {
		t.Errorf("expected PUT /sites/2.json, got %s %s", sent.Method, sent.Path)
	}
	if res.Item.Text("name") != "Bravo II" {
		t.Errorf("expected updated name, got %v", res.Item)
	}
}

func TestService_UpdateRejectsDisabledRow(t *testing.T) {
	svc, up := newTestService(t)
	ctx := context.Background()

	if _, err := svc.List(ctx, admin, "sites", listing.NewPageState(10)); err != nil {
		t.Fatalf("load: %v", err)
	}
	_, err := svc.Update(ctx, admin, "sites", "3", map[string]any{"name": "x"})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, sends := up.calls(); sends != 0 {
		t.Errorf("expected no upstream mutation, got %d", sends)
	}
}

func TestService_Delete(t *testing.T) {
	svc, up := newTestService(t)
	ctx := context.Background()

	if _, err := svc.List(ctx, admin, "sites", listing.NewPageState(10)); err != nil {
		t.Fatalf("load: %v", err)
	}
	res, err := svc.Delete(ctx, admin, "sites", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent := up.lastSend(); sent.Method != http.MethodDelete || sent.Path != "/sites/1.json" {
		t.Errorf("expected DELETE /sites/1.json, got %s %s", sent.Method, sent.Path)
	}
	if res.List == nil || res.List.Pagination.TotalCount != 2 {
		t.Fatalf("expected refreshed list with 2 rows, got %+v", res.List)
	}
}

func TestService_DeleteForbiddenForViewer(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Delete(context.Background(), Caller{Role: "viewer"}, "sites", "1")
	if !domain.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestService_ToggleFlipsStatusAndRefetches(t *testing.T) {
	svc, up := newTestService(t)
	ctx := context.Background()

	if _, err := svc.List(ctx, admin, "sites", listing.NewPageState(10)); err != nil {
		t.Fatalf("load: %v", err)
	}
	res, err := svc.Toggle(ctx, admin, "sites", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := up.lastSend()
	if sent.Method != http.MethodPatch || sent.Path != "/sites/1.json" {
		t.Errorf("expected PATCH /sites/1.json, got %s %s", sent.Method, sent.Path)
	}
	site, _ := sent.Body["site"].(map[string]any)
	if site["status"] != false {
		t.Errorf("expected status false in payload, got %v", sent.Body)
	}
	if res.Notification.Message != "Site deactivated" {
		t.Errorf("unexpected notification %q", res.Notification.Message)
	}
	if lists, _ := up.calls(); lists != 2 {
		t.Errorf("expected a refetch after toggle, got %d list calls", lists)
	}

	row, _ := svc.views.Get("s1", "sites", 2).Row("1")
	if on, _ := row.Bool("status"); on {
		t.Error("expected status off after refetch")
	}
}

func TestService_ToggleRevertsOnFailure(t *testing.T) {
	svc, up := newTestService(t)
	ctx := context.Background()

	if _, err := svc.List(ctx, admin, "sites", listing.NewPageState(10)); err != nil {
		t.Fatalf("load: %v", err)
	}
	up.set(func(f *fakeUpstream) { f.failSend = true })

	_, err := svc.Toggle(ctx, admin, "sites", "2")
	if !domain.IsUpstreamFailure(err) {
		t.Fatalf("expected upstream failure, got %v", err)
	}

	row, ok := svc.views.Get("s1", "sites", 2).Row("2")
	if !ok {
		t.Fatal("row 2 missing from view")
	}
	if on, _ := row.Bool("status"); on {
		t.Error("expected status to be reverted to false")
	}
	if lists, _ := up.calls(); lists != 1 {
		t.Errorf("expected no refetch after a failed toggle, got %d list calls", lists)
	}
}

func TestService_ToggleUsesTogglePath(t *testing.T) {
	cfg := sitesConfig()
	cfg.TogglePath = "/sites/{id}/toggle.json"
	svc, up := newTestService(t, cfg)

	if _, err := svc.Toggle(context.Background(), admin, "sites", "2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent := up.lastSend(); sent.Method != http.MethodPatch || sent.Path != "/sites/2/toggle.json" {
		t.Errorf("expected PATCH /sites/2/toggle.json, got %s %s", sent.Method, sent.Path)
	}
}

func TestService_ToggleHonoursPutException(t *testing.T) {
	cfg := sitesConfig()
	cfg.ToggleMethod = http.MethodPut
	svc, up := newTestService(t, cfg)

	if _, err := svc.Toggle(context.Background(), admin, "sites", "2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent := up.lastSend(); sent.Method != http.MethodPut || sent.Path != "/sites/2.json" {
		t.Errorf("expected PUT /sites/2.json, got %s %s", sent.Method, sent.Path)
	}
}

func TestService_ToggleRejectsDisabledRow(t *testing.T) {
	svc, up := newTestService(t)

	_, err := svc.Toggle(context.Background(), admin, "sites", "3")
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, sends := up.calls(); sends != 0 {
		t.Errorf("expected no upstream mutation, got %d", sends)
	}
}

func TestService_ToggleWithoutStatusField(t *testing.T) {
	cfg := sitesConfig()
	cfg.StatusField = ""
	svc, _ := newTestService(t, cfg)

	_, err := svc.Toggle(context.Background(), admin, "sites", "1")
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_Entities(t *testing.T) {
	svc, _ := newTestService(t)

	if got := svc.Entities(context.Background(), Caller{Role: "viewer"}); len(got) != 1 {
		t.Errorf("expected viewer to see 1 entity, got %d", len(got))
	}
	if got := svc.Entities(context.Background(), Caller{Role: "nobody"}); len(got) != 0 {
		t.Errorf("expected nobody to see no entity, got %d", len(got))
	}
}

func TestLabelize(t *testing.T) {
	if got := labelize("created_at"); got != "Created at" {
		t.Errorf("labelize() = %q; want %q", got, "Created at")
	}
	if got := labelize(""); got != "" {
		t.Errorf("labelize(\"\") = %q; want empty", got)
	}
}
