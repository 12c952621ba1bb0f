package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestServer() *Server {
	return &Server{logger: zerolog.Nop()}
}

func performJSON(t *testing.T, handler echo.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	var parsed envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, parsed
}

func TestHandleFeedRequiresUserID(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	rec, parsed := performJSON(t, s.handleFeed, http.MethodGet, "/api/v1/feed", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if parsed.Status != "fail" {
		t.Errorf("jsend status = %q, want fail", parsed.Status)
	}
}

func TestHandleFeedRejectsBadLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	for _, limit := range []string{"0", "-3", "abc"} {
		rec, _ := performJSON(t, s.handleFeed, http.MethodGet, "/api/v1/feed?user_id=u1&limit="+limit, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%q: status = %d, want 400", limit, rec.Code)
		}
	}
}

func TestHandleCreateEventValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer()

	cases := []struct {
		name string
		body string
	}{
		{"missing user", `{"event_type": "click"}`},
		{"bad event type", `{"user_id": "u1", "event_type": "dance"}`},
		{"not json", `{{{`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec, parsed := performJSON(t, s.handleCreateEvent, http.MethodPost, "/api/v1/events", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if parsed.Status != "fail" {
				t.Errorf("jsend status = %q, want fail", parsed.Status)
			}
		})
	}
}

func TestNormalizeTerms(t *testing.T) {
	t.Parallel()

	got := normalizeTerms([]string{" Tech ", "tech", "", "Sports", "SPORTS"})
	want := []string{"tech", "sports"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("normalizeTerms = %v, want %v", got, want)
	}
}

func TestHealthEnvelope(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	rec, parsed := performJSON(t, s.handleHealth, http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if parsed.Status != "success" {
		t.Errorf("jsend status = %q, want success", parsed.Status)
	}
}
