package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"kreatorboard/internal/usertoken"
	"kreatorboard/internal/util"
	"kreatorboard/pkg/domain"
	"kreatorboard/services/chat/internal/app"
	"kreatorboard/services/chat/internal/ws"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Hub            *ws.Hub
	TokenVerifier  *usertoken.Verifier
	AllowedOrigins []string
}

// Server exposes HTTP endpoints for the chat service.
type Server struct {
	app            *app.App
	hub            *ws.Hub
	tokenVerifier  *usertoken.Verifier
	allowedOrigins []string
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:            cfg.App,
		hub:            cfg.Hub,
		tokenVerifier:  cfg.TokenVerifier,
		allowedOrigins: cfg.AllowedOrigins,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("chat", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/chat/conversations", s.withUser(s.handleConversations))
	s.mux.Handle("/chat/messages", s.withUser(s.handleSend))
	s.mux.Handle("/chat/messages/", s.withUser(s.handleThread))
	s.mux.HandleFunc("/chat/ws", s.handleWebsocket)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.userFromToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if user.IsBlocked {
			writeError(w, http.StatusForbidden, "account blocked")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) userFromToken(token string) (domain.User, bool) {
	if s.tokenVerifier == nil {
		return domain.User{}, false
	}
	userID, err := s.tokenVerifier.VerifySubject(token)
	if err != nil {
		return domain.User{}, false
	}
	user, ok, err := s.app.UserByID(userID)
	if err != nil || !ok {
		return domain.User{}, false
	}
	return user, true
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	items, err := s.app.Inbox(user)
	if err != nil {
		slog.Error("list inbox", "err", err, "user", user.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	partnerID := strings.TrimPrefix(r.URL.Path, "/chat/messages/")
	if partnerID == "" || strings.Contains(partnerID, "/") {
		http.NotFound(w, r)
		return
	}
	partner, messages, err := s.app.LoadThread(user, partnerID)
	if err != nil {
		if errors.Is(err, app.ErrPartnerNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		slog.Error("load thread", "err", err, "user", user.ID, "partner", partnerID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, threadResponse{Partner: partner, Messages: messages})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req sendRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	msg, err := s.app.Send(r.Context(), user, req.ReceiverID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrPartnerNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			slog.Error("send message", "err", err, "user", user.ID)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// handleWebsocket authenticates via query token because browsers cannot set
// headers on websocket upgrades.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, ok := s.userFromToken(token)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if user.IsBlocked {
		writeError(w, http.StatusForbidden, "account blocked")
		return
	}
	ws.Handle(s.hub, user.ID, s.allowedOrigins, w, r)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type sendRequest struct {
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
}

type threadResponse struct {
	Partner  domain.User      `json:"partner"`
	Messages []domain.Message `json:"messages"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
