package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medbot/internal/answer"
	"medbot/internal/assistant"
	"medbot/internal/config"
	"medbot/internal/metrics"
)

// User-facing texts for failed requests.
const (
	UnavailableReply = "Sorry, the medical knowledge service is unavailable right now. Please try again later."
	TimeoutReply     = "Sorry, the answer took too long. Please try again."
)

const maxFormBytes = 64 << 10

//go:embed templates/chat.html
var templatesFS embed.FS

var chatPage = template.Must(template.ParseFS(templatesFS, "templates/chat.html"))

// Replier is the part of the assistant the handlers use.
type Replier interface {
	Reply(ctx context.Context, raw string) (assistant.Reply, error)
	Ready() bool
}

// Handler serves the chat page and the message endpoint.
type Handler struct {
	assistant Replier
	log       *zap.Logger
}

func NewHandler(a Replier, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{assistant: a, log: log}
}

// Routes registers every endpoint. Wrong methods get 405 from the mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("POST /get", h.get)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	mux.HandleFunc("GET /readyz", h.readyz)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ Title, Placeholder string }{
		Title:       "Medical Chatbot",
		Placeholder: "Ask a medical question...",
	}
	if err := chatPage.Execute(w, data); err != nil {
		h.log.Error("render chat page", zap.Error(err))
	}
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.assistant.Ready() {
		writeText(w, http.StatusOK, "ready")
		return
	}
	writeText(w, http.StatusServiceUnavailable, "starting")
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", reqID)
	log := h.log.With(zap.String("request_id", reqID))

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		log.Warn("bad form", zap.Error(err))
		writeText(w, http.StatusBadRequest, "invalid form")
		return
	}
	msg := r.PostFormValue("msg")
	log.Debug("user message", zap.String("msg", msg))

	reply, err := h.assistant.Reply(r.Context(), msg)
	if err != nil {
		status, text := http.StatusBadGateway, UnavailableReply
		if errors.Is(err, answer.ErrTimeout) {
			status, text = http.StatusGatewayTimeout, TimeoutReply
		}
		log.Error("answer failed",
			zap.Int("status", status),
			zap.String("query", reply.Query),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)
		writeText(w, status, text)
		return
	}
	log.Info("reply sent",
		zap.String("kind", string(reply.Kind)),
		zap.String("rule", reply.Rule),
		zap.Duration("took", time.Since(start)),
	)
	log.Debug("bot reply", zap.String("text", reply.Text))
	writeText(w, http.StatusOK, reply.Text)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}

// Serve runs an HTTP server on ln until ctx is cancelled, then shuts it
// down gracefully.
func Serve(ctx context.Context, ln net.Listener, cfg config.ServerConfig, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(cfg.ReadTimeoutSecs) * time.Second,
		ReadTimeout:       time.Duration(cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownSecs)*time.Second)
	defer cancel()
	log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
