// Package server exposes the HTTP surface: the provider webhook (intake +
// verification handshake) and a health endpoint.
package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	promptx "github.com/vollybot/vollybot/agent/prompt"
	phonex "github.com/vollybot/vollybot/pkg/phone"
	whatsappx "github.com/vollybot/vollybot/pkg/whatsapp"
	storex "github.com/vollybot/vollybot/store"
)

const maxBodyBytes = 1 << 20

type Config struct {
	Port      string `split_words:"true" default:"8080"`
	AppSecret string `envconfig:"APP_SECRET" split_words:"true"`
}

// MessagePipeline processes one inbound text and returns the reply.
type MessagePipeline interface {
	HandleMessage(ctx context.Context, phone, profileName, text string) (string, error)
}

// Sender delivers outbound texts. Satisfied by the whatsapp client.
type Sender interface {
	SendText(ctx context.Context, to string, body string) error
}

type Handler struct {
	pipeline    MessagePipeline
	sender      Sender
	verifyToken string
	appSecret   string
}

func NewHandler(pipeline MessagePipeline, sender Sender, verifyToken, appSecret string) (*Handler, error) {
	if pipeline == nil {
		return nil, errors.New("message pipeline is required")
	}
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if strings.TrimSpace(verifyToken) == "" {
		return nil, errors.New("verify token is required")
	}
	return &Handler{
		pipeline:    pipeline,
		sender:      sender,
		verifyToken: verifyToken,
		appSecret:   appSecret,
	}, nil
}

// NewRouter wires the webhook routes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", h.handleHealth)
	r.Get("/webhook", h.handleVerification)
	r.Post("/webhook", h.handleEvent)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "whatsapp agent is running",
	})
}

// handleVerification answers the provider's subscription handshake: echo
// the challenge when the verify token matches, reject otherwise.
func (h *Handler) handleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		respondJSON(w, http.StatusForbidden, map[string]string{"error": "verification failed"})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// handleEvent validates and processes one webhook delivery. Validation
// failures are rejected before any write.
func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if !h.validSignature(body, r.Header.Get("X-Hub-Signature-256")) {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	var payload whatsappx.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed payload"})
		return
	}

	for _, msg := range whatsappx.ExtractTexts(payload) {
		h.processMessage(r.Context(), msg)
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (h *Handler) processMessage(ctx context.Context, msg whatsappx.InboundText) {
	reply, err := h.pipeline.HandleMessage(ctx, msg.From, msg.ProfileName, msg.Body)
	switch {
	case err == nil:
		// fall through to delivery
	case errors.Is(err, phonex.ErrInvalidFormat):
		// No trustworthy address to answer to; drop after logging.
		log.Warn().Err(err).Str("from", msg.From).Msg("inbound sender unparseable")
		return
	case errors.Is(err, storex.ErrPersistence):
		log.Error().Err(err).Str("from", msg.From).Msg("pipeline persistence failure")
		reply = promptx.ReplyStoreTrouble
	default:
		log.Error().Err(err).Str("from", msg.From).Msg("pipeline failure")
		reply = promptx.ReplyFallback
	}

	// History is already persisted; a delivery failure must not undo it.
	if err := h.sender.SendText(ctx, msg.From, reply); err != nil {
		log.Error().Err(err).Str("to", msg.From).Msg("reply delivery abandoned")
	}
}

// validSignature checks the provider HMAC when an app secret is
// configured; without one, shape validation alone gates the request.
func (h *Handler) validSignature(body []byte, header string) bool {
	if h.appSecret == "" {
		return true
	}

	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("write response failed")
	}
}
