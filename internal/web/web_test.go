package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestServesWidgetPage(t *testing.T) {
	r := chi.NewRouter()
	RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	for _, id := range []string{"chatbotToggleBtn", "chatbotPanel", "chatbotMessages", "chatbotInput", "chatbotSendBtn"} {
		if !strings.Contains(body, id) {
			t.Fatalf("page is missing #%s", id)
		}
	}
}

func TestServesStaticAssets(t *testing.T) {
	r := chi.NewRouter()
	RegisterRoutes(r)

	for _, path := range []string{"/static/widget.js", "/static/widget.css"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}
