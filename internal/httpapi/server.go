// Package httpapi exposes the webhook and operational endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tsengs/familyagent/internal/config"
	"github.com/tsengs/familyagent/internal/dedupe"
	"github.com/tsengs/familyagent/internal/linebot"
	"github.com/tsengs/familyagent/internal/memory"
	"github.com/tsengs/familyagent/internal/observability"
)

// The reply used when event handling dies before dispatch can produce
// its own apology.
const transportApology = "抱歉，處理您的訊息時發生錯誤。"

// Dispatcher runs one turn and always returns reply text.
type Dispatcher interface {
	HandleTurn(ctx context.Context, id memory.Identity, message string) string
}

// Messenger is the outbound platform surface the server needs.
type Messenger interface {
	Reply(ctx context.Context, replyToken, text string) error
	Push(ctx context.Context, to, text string) error
	ShowLoading(ctx context.Context, chatID string) error
}

type Server struct {
	cfg        config.Config
	dispatcher Dispatcher
	messenger  Messenger
	gate       *dedupe.Gate
	policy     *linebot.PushPolicy
	metrics    *observability.Metrics

	// turnContext builds the per-event processing context. Tests replace
	// it to run events synchronously with a test deadline.
	turnContext func() (context.Context, context.CancelFunc)
}

func New(cfg config.Config, dispatcher Dispatcher, messenger Messenger, gate *dedupe.Gate, policy *linebot.PushPolicy, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		messenger:  messenger,
		gate:       gate,
		policy:     policy,
		metrics:    metrics,
		turnContext: func() (context.Context, context.CancelFunc) {
			return context.WithCancel(context.Background())
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/line/webhook", s.handleWebhook)
	r.Post("/line/push", s.handlePush)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// handleWebhook acknowledges the platform immediately and processes each
// event on its own goroutine. The platform retries slow webhooks, so the
// acknowledgement must never wait on dispatch.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_body", "failed to read request body")
		return
	}

	signature := r.Header.Get("X-Line-Signature")
	if !linebot.ValidSignature(s.cfg.LineChannelSecret, body, signature) {
		s.metrics.WebhookEvents.WithLabelValues("invalid_signature").Inc()
		respondError(w, http.StatusBadRequest, "invalid_signature", "signature verification failed")
		return
	}

	var req linebot.WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_json", "failed to parse webhook payload")
		return
	}

	for _, ev := range req.Events {
		ev := ev
		go s.processEvent(ev)
	}

	respondJSON(w, http.StatusOK, map[string]any{"status": "received"})
}

func (s *Server) processEvent(ev linebot.Event) {
	ctx, cancel := s.turnContext()
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("webhook event panic: %v", rec)
			if ev.ReplyToken != "" {
				if err := s.messenger.Reply(ctx, ev.ReplyToken, transportApology); err != nil {
					log.Printf("send transport apology: %v", err)
				}
			}
		}
	}()

	if !ev.IsTextMessage() {
		s.metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		return
	}

	text := ev.Message.Text
	if ev.InGroup() {
		// Unmentioned group chatter is dropped before the dedupe gate so
		// it never occupies gate capacity.
		if !linebot.MentionsBot(text, s.cfg.BotName) {
			s.metrics.WebhookEvents.WithLabelValues("ignored").Inc()
			return
		}
		text = linebot.StripMention(text, s.cfg.BotName)
		if text == "" {
			s.metrics.WebhookEvents.WithLabelValues("ignored").Inc()
			return
		}
	}

	if !s.gate.ShouldProcess(ev.DedupeKey()) {
		s.metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
		s.metrics.DedupeDrops.Inc()
		return
	}

	// Typing indicator is cosmetic and only works in direct chats.
	if !ev.InGroup() && ev.Source.UserID != "" {
		if err := s.messenger.ShowLoading(ctx, ev.Source.UserID); err != nil {
			log.Printf("show loading for %s: %v", ev.Source.UserID, err)
		}
	}

	reply := s.dispatcher.HandleTurn(ctx, ev.Identity(), text)
	if err := s.messenger.Reply(ctx, ev.ReplyToken, reply); err != nil {
		log.Printf("reply to %s: %v", ev.Source.UserID, err)
		s.metrics.WebhookEvents.WithLabelValues("reply_failed").Inc()
		return
	}
	s.metrics.WebhookEvents.WithLabelValues("dispatched").Inc()
}

type pushRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// handlePush sends an operator-initiated message to an allow-listed
// group. An empty target falls back to the first configured group.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_json", "failed to parse push request")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "missing_text", "text is required")
		return
	}

	target := strings.TrimSpace(req.To)
	if target == "" {
		target = s.policy.Default()
		if target == "" {
			respondError(w, http.StatusBadRequest, "no_target", "no target and no default group configured")
			return
		}
	}
	if !s.policy.Allowed(target) {
		respondError(w, http.StatusForbidden, "forbidden_target", "target is not on the push allow-list")
		return
	}

	if err := s.messenger.Push(r.Context(), target, req.Text); err != nil {
		log.Printf("push to %s: %v", target, err)
		respondError(w, http.StatusBadGateway, "push_failed", "platform rejected the push")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "sent", "to": target})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
