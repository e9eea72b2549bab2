package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x","bogus":1}`))
	var dst struct {
		Title string `json:"title"`
	}
	if err := DecodeJSON(httptest.NewRecorder(), req, &dst); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestDecodeJSONEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	var dst map[string]any
	if err := DecodeJSON(httptest.NewRecorder(), req, &dst); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusAccepted, map[string]any{"ok": true})
	if rec.Code != http.StatusAccepted || rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected response %d %v", rec.Code, rec.Header())
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}
