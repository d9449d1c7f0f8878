package authtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/authkit/pkg/authapi"
	"github.com/dmitrymomot/authkit/pkg/httpserver"
	"github.com/dmitrymomot/authkit/pkg/jwt"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/requestid"
	"github.com/dmitrymomot/authkit/pkg/session"
)

// PathMe is the protected endpoint. It answers with the caller's subject.
const PathMe = "/me"

type account struct {
	id   string
	hash []byte
}

type seedUser struct{ email, password string }

// Server is an in-memory auth backend speaking the same protocol as the real
// API: login and register issue a token pair, refresh rotates it, and
// GET /me requires a valid bearer token.
type Server struct {
	ttl          time.Duration
	refreshDelay time.Duration
	signingKey   string
	bcryptCost   int
	seed         []seedUser
	logger       *slog.Logger

	tokens  *jwt.Issuer
	handler http.Handler
	refresh atomic.Int32

	mu       sync.Mutex
	accounts map[string]account // by email
	renewals map[string]string  // renewal token -> subject
	issued   map[string][]string
	revoked  map[string]struct{} // access token ids
}

func New(opts ...Option) (*Server, error) {
	s := &Server{
		ttl:        15 * time.Minute,
		signingKey: uuid.NewString(),
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger.Discard(),
		accounts:   make(map[string]account),
		renewals:   make(map[string]string),
		issued:     make(map[string][]string),
		revoked:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("authtest"))

	tokens, err := jwt.NewIssuer([]byte(s.signingKey), jwt.WithTTL(s.ttl), jwt.WithIssuerName("authtest"))
	if err != nil {
		return nil, err
	}
	s.tokens = tokens

	for _, u := range s.seed {
		if _, err := s.createAccount(u.email, u.password); err != nil {
			return nil, fmt.Errorf("seed %s: %w", u.email, err)
		}
	}

	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)

	r.Get("/healthz", httpserver.HealthCheckHandler(s.logger))
	r.Post(authapi.PathLogin, s.handleLogin)
	r.Post(authapi.PathRegister, s.handleRegister)
	r.Post(authapi.PathRefresh, s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(jwt.MiddlewareWithConfig(jwt.MiddlewareConfig{
			Issuer: s.tokens,
			Unauthorized: func(w http.ResponseWriter, _ *http.Request, err error) {
				writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			},
		}))
		r.Use(s.rejectRevoked)
		r.Get(PathMe, s.handleMe)
	})
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// RefreshCalls reports how many refresh requests reached the server.
func (s *Server) RefreshCalls() int {
	return int(s.refresh.Load())
}

// ExpireAccess invalidates every access token issued to subject so far,
// forcing the next protected request to answer 401.
func (s *Server) ExpireAccess(subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.issued[subject] {
		s.revoked[id] = struct{}{}
	}
	s.issued[subject] = nil
}

// RevokeRenewals drops every renewal token of subject, so the next refresh
// is rejected.
func (s *Server) RevokeRenewals(subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sub := range s.renewals {
		if sub == subject {
			delete(s.renewals, token)
		}
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type meResponse struct {
	Subject   string `json:"sub"`
	ExpiresAt int64  `json:"exp"`
	RequestID string `json:"requestId"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[normalizeEmail(req.Email)]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
		return
	}
	s.issue(w, r, acc.id)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	acc, err := s.createAccount(req.Email, req.Password)
	if errors.Is(err, errEmailTaken) {
		writeError(w, http.StatusConflict, "email_taken", err.Error())
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "register failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "registration failed")
		return
	}
	s.issue(w, r, acc.id)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refresh.Add(1)

	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}

	if s.refreshDelay > 0 {
		select {
		case <-time.After(s.refreshDelay):
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	subject, ok := s.renewals[req.RefreshToken]
	delete(s.renewals, req.RefreshToken)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "refresh token is invalid or already used")
		return
	}
	s.issue(w, r, subject)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := jwt.GetClaims(r.Context())
	writeJSON(w, http.StatusOK, meResponse{
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt,
		RequestID: requestid.FromContext(r.Context()),
	})
}

func (s *Server) rejectRevoked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := jwt.GetClaims(r.Context())
		s.mu.Lock()
		_, revoked := s.revoked[claims.ID]
		s.mu.Unlock()
		if revoked {
			writeError(w, http.StatusUnauthorized, "token_expired", "access token has expired")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request, subject string) {
	pair, err := s.mint(subject)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "token issue failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "could not issue tokens")
		return
	}
	s.logger.DebugContext(r.Context(), "tokens issued",
		logger.SubjectID(subject),
		logger.RequestID(requestid.FromContext(r.Context())),
	)
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) mint(subject string) (session.Pair, error) {
	access, claims, err := s.tokens.Issue(subject)
	if err != nil {
		return session.Pair{}, err
	}
	renewal := uuid.NewString()

	s.mu.Lock()
	s.renewals[renewal] = subject
	s.issued[subject] = append(s.issued[subject], claims.ID)
	s.mu.Unlock()

	return session.Pair{AccessToken: access, RenewalToken: renewal}, nil
}

var errEmailTaken = errors.New("email is already registered")

func (s *Server) createAccount(email, password string) (account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return account{}, err
	}

	key := normalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.accounts[key]; taken {
		return account{}, errEmailTaken
	}
	acc := account{id: uuid.NewString(), hash: hash}
	s.accounts[key] = acc
	return acc, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// Run serves s with srv until ctx is done.
func (s *Server) Run(ctx context.Context, srv *httpserver.Server) error {
	return srv.Run(ctx, s)
}
