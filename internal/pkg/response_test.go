package pkg

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/simp-lee/pagination"

	"github.com/simp-lee/backoffice/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type siteInput struct {
	SiteName string `json:"name" binding:"required,min=3"`
	Contact  string `json:"contact_email" binding:"required,email"`
	Code     string `binding:"omitempty,len=2"`
}

func newResponseTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/resources/sites", nil)
	return c, w
}

func newResponseTestContextWithBody(body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/resources/sites", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestSuccessEnvelopes(t *testing.T) {
	tests := []struct {
		name   string
		write  func(*gin.Context, any)
		data   any
		status int
	}{
		{"success", Success, map[string]string{"id": "7"}, http.StatusOK},
		{"success nil", Success, nil, http.StatusOK},
		{"created", Created, map[string]string{"id": "8"}, http.StatusCreated},
		{"list", List, pagination.Pagination[string]{Items: []string{"admin"}, TotalItems: 1, CurrentPage: 1, ItemsPerPage: 10, TotalPages: 1}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newResponseTestContext()
			tt.write(c, tt.data)

			resp := decode[Response](t, w)
			if w.Code != tt.status || resp.Code != tt.status || resp.Message != "success" {
				t.Errorf("got %d %+v, want %d success", w.Code, resp, tt.status)
			}
			if (resp.Data == nil) != (tt.data == nil) {
				t.Errorf("data = %v, want %v", resp.Data, tt.data)
			}
		})
	}
}

func TestList_CarriesPageMetadata(t *testing.T) {
	c, w := newResponseTestContext()
	List(c, pagination.Pagination[string]{Items: []string{"admin", "viewer"}, TotalItems: 12, CurrentPage: 2, ItemsPerPage: 2, TotalPages: 6})

	resp := decode[struct {
		Data pagination.Pagination[string] `json:"data"`
	}](t, w)
	if resp.Data.TotalItems != 12 || resp.Data.CurrentPage != 2 || resp.Data.TotalPages != 6 || len(resp.Data.Items) != 2 {
		t.Errorf("unexpected page %+v", resp.Data)
	}
}

func TestError_MapsStatusAndHidesInternalMessages(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", domain.NewAppError(domain.CodeNotFound, "site not found", nil), http.StatusNotFound, "site not found"},
		{"conflict", domain.NewAppError(domain.CodeAlreadyExists, "role exists", nil), http.StatusConflict, "role exists"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"backend", domain.NewAppError(domain.CodeUpstream, "backend returned HTTP 500", errors.New("boom")), http.StatusBadGateway, "backend returned HTTP 500"},
		{"wrapped", fmt.Errorf("toggle site 7: %w", domain.NewAppError(domain.CodeApplication, "site is locked", nil)), http.StatusUnprocessableEntity, "site is locked"},
		{"plain", errors.New("sql: connection reset"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newResponseTestContext()
			Error(c, tt.err)

			resp := decode[Response](t, w)
			if w.Code != tt.status || resp.Code != tt.status {
				t.Errorf("status = %d/%d, want %d", w.Code, resp.Code, tt.status)
			}
			if resp.Message != tt.message || resp.Data != nil {
				t.Errorf("got %+v, want message %q", resp, tt.message)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Run("validator errors use lowercased field names", func(t *testing.T) {
		err := validator.New().Struct(struct {
			Name string `validate:"required"`
		}{})
		c, w := newResponseTestContext()
		ValidationError(c, err)

		resp := decode[ValidationErrorResponse](t, w)
		if w.Code != http.StatusBadRequest || resp.Message != "validation error" {
			t.Fatalf("got %d %+v", w.Code, resp)
		}
		if resp.Errors["name"] != "required" {
			t.Errorf("errors = %v", resp.Errors)
		}
	})

	t.Run("other errors are a malformed body", func(t *testing.T) {
		c, w := newResponseTestContext()
		ValidationError(c, errors.New("unexpected EOF"))

		resp := decode[Response](t, w)
		if w.Code != http.StatusBadRequest || resp.Message != "invalid request body" {
			t.Errorf("got %d %+v", w.Code, resp)
		}
	})
}

func TestBindAndValidate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		ok         bool
		wantErrors map[string]string
	}{
		{
			name: "valid",
			body: `{"name":"Headquarters","contact_email":"ops@example.com"}`,
			ok:   true,
		},
		{
			name:       "missing fields use json tags",
			body:       `{}`,
			wantErrors: map[string]string{"name": "required", "contact_email": "required"},
		},
		{
			name:       "params are appended",
			body:       `{"name":"HQ","contact_email":"not-an-email","Code":"ABC"}`,
			wantErrors: map[string]string{"name": "min=3", "contact_email": "email", "code": "len=2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newResponseTestContextWithBody(tt.body)
			var in siteInput
			if got := BindAndValidate(c, &in); got != tt.ok {
				t.Fatalf("BindAndValidate() = %v, want %v; body=%s", got, tt.ok, w.Body.String())
			}
			if tt.ok {
				if in.SiteName != "Headquarters" {
					t.Errorf("bound %+v", in)
				}
				return
			}
			resp := decode[ValidationErrorResponse](t, w)
			if len(resp.Errors) != len(tt.wantErrors) {
				t.Fatalf("errors = %v, want %v", resp.Errors, tt.wantErrors)
			}
			for field, msg := range tt.wantErrors {
				if resp.Errors[field] != msg {
					t.Errorf("errors[%q] = %q, want %q", field, resp.Errors[field], msg)
				}
			}
		})
	}
}

func TestBindAndValidate_MalformedJSON(t *testing.T) {
	c, w := newResponseTestContextWithBody(`{"name":`)
	var in siteInput
	if BindAndValidate(c, &in) {
		t.Fatal("expected failure")
	}
	if resp := decode[Response](t, w); w.Code != http.StatusBadRequest || resp.Message != "invalid request body" {
		t.Errorf("got %d %+v", w.Code, resp)
	}
}

func TestJSONFieldNames(t *testing.T) {
	got := jsonFieldNames(&siteInput{})
	if got["SiteName"] != "name" || got["Contact"] != "contact_email" {
		t.Errorf("names = %v", got)
	}
	if _, ok := got["Code"]; ok {
		t.Errorf("untagged field should be absent, got %v", got)
	}
	if jsonFieldNames(nil) != nil || jsonFieldNames("x") != nil {
		t.Error("non-struct input should yield nil")
	}
}
