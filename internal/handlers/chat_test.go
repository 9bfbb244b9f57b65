package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"cryptopal-backend/internal/middleware"
	"cryptopal-backend/internal/models"
	"cryptopal-backend/internal/repository"
	"cryptopal-backend/internal/services"
)

type stubChatService struct {
	result      *models.ChatResult
	err         error
	lastSession string
	lastQuery   string
	cleared     bool
}

func (s *stubChatService) Converse(ctx context.Context, sessionID, query string) (*models.ChatResult, error) {
	s.lastSession = sessionID
	s.lastQuery = query
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubChatService) Conversation(ctx context.Context, sessionID string) ([]models.Turn, error) {
	res, err := s.Converse(ctx, sessionID, "")
	if err != nil {
		return nil, err
	}
	return res.Turns, nil
}

func (s *stubChatService) Clear(ctx context.Context, sessionID string) (*models.Turn, error) {
	s.lastSession = sessionID
	s.cleared = true
	if s.err != nil {
		return nil, s.err
	}
	return &models.Turn{Role: models.RoleAssistant, Content: services.ClearedMessage}, nil
}

type stubAI struct {
	configured bool
	available  bool
	models     []string
	err        error
}

func (s *stubAI) Configured() bool                   { return s.configured }
func (s *stubAI) Available(ctx context.Context) bool { return s.available }
func (s *stubAI) Models(ctx context.Context) ([]string, error) {
	return s.models, s.err
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

func withSession(r *http.Request, id string) *http.Request {
	r.Header.Set("X-Request-ID", "req-1")
	return r.WithContext(middleware.WithSessionID(r.Context(), id))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error
}

func TestChatHandler_Chat_Success(t *testing.T) {
	reply := &models.Turn{Role: models.RoleAssistant, Content: "BTC is rising", Timestamp: "2026-02-16T10:00:00.000000Z"}
	chat := &stubChatService{result: &models.ChatResult{Reply: reply}}
	h := NewChatHandler(chat, &stubAI{}, stubPinger{}, 5)

	req := withSession(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"bitcoin?"}`)), "sess-1")
	rr := httptest.NewRecorder()
	h.Chat(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp models.ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response != "BTC is rising" || resp.Timestamp != reply.Timestamp {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if chat.lastSession != "sess-1" || chat.lastQuery != "bitcoin?" {
		t.Fatalf("expected session and query to reach the service, got %q %q", chat.lastSession, chat.lastQuery)
	}
}

func TestChatHandler_Chat_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty message", `{"message":""}`},
		{"blank message", `{"message":"   "}`},
		{"missing message", `{}`},
		{"invalid json", `{"message":`},
		{"wrong type", `{"message":42}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chat := &stubChatService{}
			h := NewChatHandler(chat, &stubAI{}, stubPinger{}, 5)

			req := withSession(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tc.body)), "sess-1")
			rr := httptest.NewRecorder()
			h.Chat(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			apiErr := decodeError(t, rr)
			if apiErr.Code != "VALIDATION_ERROR" || apiErr.RequestID != "req-1" {
				t.Fatalf("unexpected error: %+v", apiErr)
			}
			if chat.lastSession != "" {
				t.Fatalf("service must not be called for invalid input")
			}
		})
	}
}

func TestChatHandler_Chat_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"storage", &repository.StorageError{Op: "append", Err: errors.New("disk full")}, http.StatusInternalServerError, "STORAGE_ERROR"},
		{"busy", services.ErrSessionBusy, http.StatusConflict, "SESSION_BUSY"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewChatHandler(&stubChatService{err: tc.err}, &stubAI{}, stubPinger{}, 5)

			req := withSession(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`)), "sess-1")
			rr := httptest.NewRecorder()
			h.Chat(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if got := decodeError(t, rr).Code; got != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, got)
			}
		})
	}
}

func TestChatHandler_Clear(t *testing.T) {
	chat := &stubChatService{}
	h := NewChatHandler(chat, &stubAI{}, stubPinger{}, 5)

	rr := httptest.NewRecorder()
	h.Clear(rr, withSession(httptest.NewRequest(http.MethodPost, "/clear", nil), "sess-9"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"status":"success"}` {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
	if !chat.cleared || chat.lastSession != "sess-9" {
		t.Fatalf("expected clear for sess-9")
	}
}

func TestChatHandler_Status(t *testing.T) {
	h := NewChatHandler(&stubChatService{}, &stubAI{configured: true, available: true}, stubPinger{}, 5)
	rr := httptest.NewRecorder()
	h.Status(rr, withSession(httptest.NewRequest(http.MethodGet, "/status", nil), "s"))

	var resp models.StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.AIConfigured || resp.Database != "connected" || resp.AssetsLoaded != 5 {
		t.Fatalf("unexpected status: %+v", resp)
	}

	h = NewChatHandler(&stubChatService{}, &stubAI{}, stubPinger{err: errors.New("closed")}, 5)
	rr = httptest.NewRecorder()
	h.Status(rr, withSession(httptest.NewRequest(http.MethodGet, "/status", nil), "s"))
	resp = models.StatusResponse{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AIConfigured || resp.Database != "unavailable" {
		t.Fatalf("unexpected degraded status: %+v", resp)
	}
}

func TestChatHandler_Models(t *testing.T) {
	h := NewChatHandler(&stubChatService{}, &stubAI{err: errors.New("unreachable")}, stubPinger{}, 5)
	rr := httptest.NewRecorder()
	h.Models(rr, withSession(httptest.NewRequest(http.MethodGet, "/models", nil), "s"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"models":[]}` {
		t.Fatalf("expected empty model list, got %s", rr.Body.String())
	}
}

func TestChatHandler_Index(t *testing.T) {
	turns := []models.Turn{
		{Role: models.RoleAssistant, Content: services.WelcomeMessage, Timestamp: "2026-02-16T10:00:00.000000Z"},
		{Role: models.RoleUser, Content: "<script>alert(1)</script>", Timestamp: "2026-02-16T10:00:01.000000Z"},
	}
	chat := &stubChatService{result: &models.ChatResult{Turns: turns}}
	h := NewChatHandler(chat, &stubAI{configured: true}, stubPinger{}, 5)

	form := url.Values{"query": {"  what is ADA  "}}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.Index(rr, withSession(req, "sess-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "How can I help you today?") {
		t.Fatalf("expected welcome turn in page")
	}
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Fatalf("expected user content to be escaped")
	}
	if !strings.Contains(body, "Gemini unavailable, fallback mode") {
		t.Fatalf("expected degraded AI badge")
	}
	if chat.lastQuery != "  what is ADA  " {
		t.Fatalf("expected form query to reach the service, got %q", chat.lastQuery)
	}

	rr = httptest.NewRecorder()
	h.Index(rr, withSession(httptest.NewRequest(http.MethodGet, "/", nil), "sess-1"))
	if rr.Code != http.StatusOK || chat.lastQuery != "" {
		t.Fatalf("GET must render without a query, got %d %q", rr.Code, chat.lastQuery)
	}
}
