package preference

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/middleware"
)

func setupAPIRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middleware.Credentials(middleware.CredentialsConfig{DefaultRole: "admin"}))
	NewModule(NewPreferenceHandler(newTestService(t))).RegisterRoutes(r.Group("/api/v1"), r.Group(""))
	return r
}

func decodePreference(t *testing.T, w *httptest.ResponseRecorder) domain.ColumnPreference {
	t.Helper()
	var resp struct {
		Data domain.ColumnPreference `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return resp.Data
}

func TestPreferenceHandler_SaveGetReset(t *testing.T) {
	r := setupAPIRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/preferences/sites", strings.NewReader(`{"hidden":["code"],"order":["name"]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodePreference(t, w); got.Owner != "admin" || len(got.Hidden) != 1 {
		t.Errorf("unexpected saved preference %+v", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/preferences/sites", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET: expected status 200, got %d", w.Code)
	}
	if got := decodePreference(t, w); len(got.Order) != 1 || got.Order[0] != "name" {
		t.Errorf("unexpected stored preference %+v", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/preferences/sites", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("DELETE: expected status 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/preferences/sites", nil))
	if got := decodePreference(t, w); len(got.Hidden) != 0 {
		t.Errorf("expected default preference after reset, got %+v", got)
	}
}

func TestPreferenceHandler_UnknownColumn(t *testing.T) {
	r := setupAPIRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/preferences/sites", strings.NewReader(`{"hidden":["password"]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestPreferenceHandler_UnknownTable(t *testing.T) {
	r := setupAPIRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/preferences/unknown", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}
