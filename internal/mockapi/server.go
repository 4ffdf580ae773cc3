// Package mockapi is a local stand-in for the ride-hailing back office: the
// login, logout and dashboard endpoints plus a Pusher-compatible push hub.
package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"dispatchdesk/internal/platform/clock"
	"dispatchdesk/internal/platform/logger"
	"dispatchdesk/internal/platform/pusher"
)

const (
	DefaultChannel = "dashboard"
	DefaultEvent   = "DASHBOARD_UPDATE"
)

type Config struct {
	// Secret signs issued tokens; a random one is used when empty.
	Secret   []byte
	TokenTTL time.Duration
	// Tick is the interval of simulated booking activity; zero disables it.
	Tick     time.Duration
	Channel  string
	Event    string
	Seed     uint64
	Clock    clock.Clock
	Activity time.Duration
}

type Server struct {
	cfg    Config
	log    *zap.Logger
	users  []User
	board  *board
	hub    *pusher.Hub
	router *mux.Router

	mu     sync.Mutex
	tokens map[string]int // jti -> user id
}

type accessClaims struct {
	Role int `json:"role"`
	jwt.RegisteredClaims
}

func New(cfg Config, log *zap.Logger) *Server {
	if len(cfg.Secret) == 0 {
		cfg.Secret = []byte(uuid.NewString())
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Event == "" {
		cfg.Event = DefaultEvent
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.SystemClock{}
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(cfg.Clock.Now().UnixNano())
	}
	log = logger.OrNop(log).Named("mockapi")
	s := &Server{
		cfg:    cfg,
		log:    log,
		users:  SeedUsers(),
		board:  newBoard(cfg.Seed, cfg.Clock.Now()),
		hub:    pusher.NewHub(log, cfg.Activity),
		tokens: map[string]int{},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.requireToken(s.handleLogout)).Methods(http.MethodPost)
	api.HandleFunc("/dashboard/counts", s.requireToken(s.handleCounts)).Methods(http.MethodGet)

	r.Handle("/app/{key}", s.hub).Methods(http.MethodGet)
	r.HandleFunc("/debug/trigger", s.handleTrigger).Methods(http.MethodPost)
	r.HandleFunc("/debug/revoke", s.handleRevoke).Methods(http.MethodPost)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	return r
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Hub() *pusher.Hub { return s.hub }

// Run drives simulated activity until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Tick <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := s.board.tick(s.cfg.Clock.Now())
			if _, err := s.hub.Trigger(s.cfg.Channel, s.cfg.Event, snap); err != nil {
				s.log.Warn("push update", zap.Error(err))
			}
		}
	}
}

// Trigger pushes the current dashboard to every subscriber.
func (s *Server) Trigger() (int, error) {
	return s.hub.Trigger(s.cfg.Channel, s.cfg.Event, s.board.snapshot())
}

// Revoke invalidates every issued token; the next request with any of them
// gets 401.
func (s *Server) Revoke() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.tokens)
	s.tokens = map[string]int{}
	return n
}

// Close drops all push connections.
func (s *Server) Close() {
	s.hub.Close()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req := loginRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	user, ok := findUser(s.users, req.Email)
	if !ok || !user.checkPassword(req.Password) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Username or password does not exist"})
		return
	}
	token, err := s.issue(user)
	if err != nil {
		s.log.Error("issue token", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "could not issue token"})
		return
	}
	s.log.Info("login", zap.String("email", user.Email), zap.Int("role", user.Role))
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "role": user.Role, "user_id": user.ID})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request, claims *accessClaims) {
	s.mu.Lock()
	delete(s.tokens, claims.ID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logout"})
}

func (s *Server) handleCounts(w http.ResponseWriter, _ *http.Request, _ *accessClaims) {
	writeJSON(w, http.StatusOK, s.board.snapshot())
}

func (s *Server) handleTrigger(w http.ResponseWriter, _ *http.Request) {
	n, err := s.Trigger()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"delivered": n})
}

func (s *Server) handleRevoke(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"revoked": s.Revoke()})
}

func (s *Server) issue(user User) (string, error) {
	now := s.cfg.Clock.Now()
	jti := uuid.NewString()
	claims := accessClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strings.TrimSpace(user.Email),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.tokens[jti] = user.ID
	s.mu.Unlock()
	return signed, nil
}

var errRevoked = errors.New("token revoked")

func (s *Server) verify(raw string) (*accessClaims, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.cfg.Clock.Now))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	_, ok := s.tokens[claims.ID]
	s.mu.Unlock()
	if !ok {
		return nil, errRevoked
	}
	return claims, nil
}

func (s *Server) requireToken(next func(http.ResponseWriter, *http.Request, *accessClaims)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
			return
		}
		claims, err := s.verify(strings.TrimSpace(raw))
		if err != nil {
			s.log.Debug("rejected token", zap.Error(err), zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
			return
		}
		next(w, r, claims)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
