package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"cryptopal-backend/internal/middleware"
	"cryptopal-backend/internal/models"
	"cryptopal-backend/internal/repository"
	"cryptopal-backend/internal/services"
)

const maxMessageBytes = 64 << 10

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.New("index.html").ParseFS(templateFS, "templates/index.html"))

type chatService interface {
	Converse(ctx context.Context, sessionID, query string) (*models.ChatResult, error)
	Conversation(ctx context.Context, sessionID string) ([]models.Turn, error)
	Clear(ctx context.Context, sessionID string) (*models.Turn, error)
}

// aiStatus reports on the AI capability without generating anything.
type aiStatus interface {
	Configured() bool
	Available(ctx context.Context) bool
	Models(ctx context.Context) ([]string, error)
}

var _ aiStatus = (*services.Generator)(nil)

type pinger interface {
	Ping(ctx context.Context) error
}

type ChatHandler struct {
	chat         chatService
	ai           aiStatus
	store        pinger
	assetsLoaded int
}

func NewChatHandler(chat chatService, ai aiStatus, store pinger, assetsLoaded int) *ChatHandler {
	return &ChatHandler{
		chat:         chat,
		ai:           ai,
		store:        store,
		assetsLoaded: assetsLoaded,
	}
}

type indexPage struct {
	Conversation []models.Turn
	HasKey       bool
	AIConfigured bool
}

// Index renders the conversation page. A POST with a non-blank "query" form
// field runs one chat cycle first.
func (h *ChatHandler) Index(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromContext(r.Context())

	var query string
	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid form body", r))
			return
		}
		query = r.PostFormValue("query")
	}

	result, err := h.chat.Converse(r.Context(), sessionID, query)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	page := indexPage{
		Conversation: result.Turns,
		HasKey:       h.ai.Configured(),
		AIConfigured: h.ai.Available(r.Context()),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, page); err != nil {
		log.Error().Err(err).Msg("failed to render index page")
	}
}

func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromContext(r.Context())

	if _, err := h.chat.Clear(r.Context(), sessionID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		handleServiceError(w, r, &services.ValidationError{Fields: map[string]string{"message": "required"}})
		return
	}

	sessionID := middleware.SessionIDFromContext(r.Context())
	result, err := h.chat.Converse(r.Context(), sessionID, req.Message)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	timestamp := repository.FormatTimestamp(time.Now())
	response := ""
	if result.Reply != nil {
		response = result.Reply.Content
		timestamp = result.Reply.Timestamp
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{
		Response:  response,
		Timestamp: timestamp,
	})
}

func (h *ChatHandler) Status(w http.ResponseWriter, r *http.Request) {
	database := "connected"
	if err := h.store.Ping(r.Context()); err != nil {
		log.Warn().Err(err).Msg("database ping failed")
		database = "unavailable"
	}

	writeJSON(w, http.StatusOK, models.StatusResponse{
		AIConfigured: h.ai.Available(r.Context()),
		Database:     database,
		AssetsLoaded: h.assetsLoaded,
	})
}

func (h *ChatHandler) Models(w http.ResponseWriter, r *http.Request) {
	names, err := h.ai.Models(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("failed to list Gemini models")
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, models.ModelsResponse{Models: names})
}
