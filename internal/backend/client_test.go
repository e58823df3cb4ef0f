package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/simp-lee/backoffice/internal/domain"
)

func asAppError(err error, target **domain.AppError) bool {
	return errors.As(err, target)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Token: "default-token", Timeout: 5 * time.Second}, nil)
}

func TestClient_ListSendsHeadersAndQuery(t *testing.T) {
	var gotAuth, gotAccept, gotReqID, gotQuery, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotReqID = r.Header.Get("X-Request-ID")
		gotQuery = r.URL.RawQuery
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"regions":[{"id":1,"name":"North"}]}`)
	})

	ctx := WithCredentials(context.Background(), Credentials{Token: "user-token"})
	ctx = WithRequestID(ctx, "req-1")
	rows, err := c.List(ctx, "/pms/regions.json", url.Values{"q": {"x"}}, "regions")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].Text("name") != "North" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if gotAuth != "Bearer user-token" {
		t.Errorf("expected user token, got %q", gotAuth)
	}
	if gotAccept != "application/json" {
		t.Errorf("expected Accept application/json, got %q", gotAccept)
	}
	if gotReqID != "req-1" {
		t.Errorf("expected request id req-1, got %q", gotReqID)
	}
	if gotQuery != "q=x" {
		t.Errorf("expected query q=x, got %q", gotQuery)
	}
	if gotPath != "/pms/regions.json" {
		t.Errorf("expected path /pms/regions.json, got %q", gotPath)
	}
}

func TestClient_DefaultToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `[]`)
	})
	if _, err := c.List(context.Background(), "items", nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer default-token" {
		t.Errorf("expected default token, got %q", gotAuth)
	}
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode int
		wantMsg  string
	}{
		{"upstream with message", http.StatusUnprocessableEntity, `{"message":"name taken","error":"x"}`, domain.CodeUpstream, "name taken"},
		{"upstream with error", http.StatusBadRequest, `{"error":"bad input"}`, domain.CodeUpstream, "bad input"},
		{"upstream without body", http.StatusInternalServerError, ``, domain.CodeUpstream, "HTTP 500 Internal Server Error"},
		{"upstream html body", http.StatusBadGateway, `<html>oops</html>`, domain.CodeUpstream, "HTTP 502 Bad Gateway"},
		{"application error string", http.StatusOK, `{"error":"site is locked"}`, domain.CodeApplication, "site is locked"},
		{"application error flag", http.StatusOK, `{"error":true,"message":"quota exceeded"}`, domain.CodeApplication, "quota exceeded"},
		{"invalid json", http.StatusOK, `{"data":`, domain.CodeUpstream, "backend returned invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Get(context.Background(), "x", "")
			var appErr *domain.AppError
			if !asAppError(err, &appErr) {
				t.Fatalf("expected *AppError, got %v", err)
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, appErr.Code)
			}
			if appErr.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, appErr.Message)
			}
		})
	}
}

func TestClient_NoErrorFieldIsSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":3,"error":null,"name":"ok"}`)
	})
	row, err := c.Get(context.Background(), "x", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ID() != "3" {
		t.Errorf("expected id 3, got %q", row.ID())
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: base, Timeout: time.Second}, nil)
	_, err := c.List(context.Background(), "x", nil, "")
	var appErr *domain.AppError
	if !asAppError(err, &appErr) || appErr.Code != domain.CodeTransport {
		t.Fatalf("expected CodeTransport, got %v", err)
	}
	if !domain.IsUpstreamFailure(err) {
		t.Error("transport error should count as upstream failure")
	}
}

func TestClient_CanceledContextIsNotWrapped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.List(ctx, "x", nil, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClient_SendJSON(t *testing.T) {
	var gotMethod, gotCT, gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotCT = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = io.WriteString(w, `{"region":{"id":7,"name":"West"}}`)
	})
	row, err := c.Send(context.Background(), Request{
		Method:    http.MethodPost,
		Path:      "regions.json",
		Body:      map[string]any{"region": map[string]any{"name": "West"}},
		ObjectKey: "region",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPost || gotCT != "application/json" {
		t.Errorf("unexpected method/content-type %s %s", gotMethod, gotCT)
	}
	if gotBody != `{"region":{"name":"West"}}` {
		t.Errorf("unexpected body %s", gotBody)
	}
	if row.ID() != "7" {
		t.Errorf("expected id 7, got %q", row.ID())
	}
}

func TestClient_SendMultipart(t *testing.T) {
	var gotName, gotFile string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("expected multipart, got %s", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		gotName = r.FormValue("faq[question]")
		f, _, err := r.FormFile("faq[attachment]")
		if err == nil {
			b, _ := io.ReadAll(f)
			gotFile = string(b)
			f.Close()
		}
		w.WriteHeader(http.StatusNoContent)
	})
	row, err := c.Send(context.Background(), Request{
		Method: http.MethodPut,
		Path:   "faqs/1.json",
		Form: &Form{
			Fields: map[string]string{"faq[question]": "Why?"},
			Files:  []File{{Field: "faq[attachment]", Name: "a.txt", Content: []byte("hello")}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row != nil {
		t.Errorf("expected nil row for empty body, got %v", row)
	}
	if gotName != "Why?" || gotFile != "hello" {
		t.Errorf("unexpected form values %q %q", gotName, gotFile)
	}
}

func TestClient_Ping(t *testing.T) {
	var method string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusNotFound)
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() = %v, want nil for any HTTP answer", err)
	}
	if method != http.MethodHead {
		t.Errorf("method = %s, want HEAD", method)
	}

	down := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, nil)
	var appErr *domain.AppError
	if err := down.Ping(context.Background()); !asAppError(err, &appErr) || appErr.Code != domain.CodeTransport {
		t.Errorf("Ping() on closed port = %v, want transport error", err)
	}
}
