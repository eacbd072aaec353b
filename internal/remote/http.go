package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"
	"github.com/matheus3301/chatsync/internal/transport"
	"github.com/matheus3301/chatsync/internal/wire"
	"go.uber.org/zap"
)

type contextKey string

const userContextKey contextKey = "user"

// Service serves the stub's REST API and its WebSocket endpoint.
type Service struct {
	db     *DB
	broker *Broker
	relay  *Relay
	logger *zap.Logger
}

// NewService wires the HTTP surface over db, the broker and its relay.
func NewService(db *DB, broker *Broker, relay *Relay, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, broker: broker, relay: relay, logger: logger}
}

// Handler returns the router:
//
//	GET    /api/conversations
//	GET    /api/conversations/{id}/messages   (advances the caller's read marker)
//	POST   /api/conversations/{id}/read
//	DELETE /api/conversations/{id}
//	POST   /api/conversations/{id}/restore
//	GET    /ws                                 (STOMP over WebSocket)
func (s *Service) Handler() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.auth)
	api.HandleFunc("/conversations", s.listConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id:[0-9]+}/messages", s.listMessages).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id:[0-9]+}/read", s.markRead).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id:[0-9]+}", s.deleteConversation).Methods(http.MethodDelete)
	api.HandleFunc("/conversations/{id:[0-9]+}/restore", s.restoreConversation).Methods(http.MethodPost)

	r.Handle("/ws", s.auth(http.HandlerFunc(s.serveWS))).Methods(http.MethodGet)
	return r
}

// auth resolves the bearer token (or, for browsers opening a WebSocket, the
// access_token query parameter) to a user.
func (s *Service) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			token = r.URL.Query().Get("access_token")
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		u, err := s.db.UserByToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(r *http.Request) *User {
	u, _ := r.Context().Value(userContextKey).(*User)
	return u
}

func (s *Service) listConversations(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	sums, err := s.db.ListSummaries(u.ID)
	if err != nil {
		s.fail(w, "list conversations", err)
		return
	}
	if sums == nil {
		sums = []wire.Summary{}
	}
	writeJSON(w, http.StatusOK, sums)
}

func (s *Service) listMessages(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	c, ok := s.conversation(w, r, u)
	if !ok {
		return
	}
	msgs, err := s.db.ListMessages(c.ID)
	if err != nil {
		s.fail(w, "list messages", err)
		return
	}
	if err := s.db.MarkRead(c.ID, u.ID, time.Now()); err != nil {
		s.fail(w, "mark read", err)
		return
	}
	out := make([]wire.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Wire())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) markRead(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	c, ok := s.conversation(w, r, u)
	if !ok {
		return
	}
	if err := s.db.MarkRead(c.ID, u.ID, time.Now()); err != nil {
		s.fail(w, "mark read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) deleteConversation(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	c, ok := s.conversation(w, r, u)
	if !ok {
		return
	}
	if err := s.db.SetDeleted(c, u.ID, true); err != nil {
		s.fail(w, "delete conversation", err)
		return
	}
	if s.relay != nil {
		reason := "conversation deleted by " + string(u.Role)
		if err := s.relay.NotifyDeleted(c.ID, c.Peer(u.ID), reason); err != nil {
			s.logger.Warn("notify peer of deletion", zap.Int64("conversation_id", c.ID), zap.Error(err))
		}
	}
	s.logger.Info("conversation deleted", zap.Int64("conversation_id", c.ID), zap.String("by", u.ID))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) restoreConversation(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	c, ok := s.conversation(w, r, u)
	if !ok {
		return
	}
	if err := s.db.SetDeleted(c, u.ID, false); err != nil {
		s.fail(w, "restore conversation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) serveWS(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{transport.Subprotocol},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	if c.Subprotocol() != transport.Subprotocol {
		_ = c.Close(websocket.StatusPolicyViolation, "subprotocol "+transport.Subprotocol+" required")
		return
	}
	c.SetReadLimit(1 << 20)
	if err := s.broker.Attach(websocket.NetConn(context.Background(), c, websocket.MessageText)); err != nil {
		_ = c.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	s.logger.Debug("push channel attached", zap.String("user", u.ID))
}

func (s *Service) conversation(w http.ResponseWriter, r *http.Request, u *User) (*Conversation, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return nil, false
	}
	c, err := s.db.ConversationFor(id, u.ID)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}
	if err != nil {
		s.fail(w, "load conversation", err)
		return nil, false
	}
	return c, true
}

func (s *Service) fail(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
