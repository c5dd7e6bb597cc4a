// Package httpapi implements the thin HTTP surface that sits alongside the
// SRP6 logon gateway: account creation for new game accounts, a health
// check, and a couple of operator-only admin reporting endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"titancore/internal/account"
	"titancore/internal/apperr"
	"titancore/internal/crypto"
	"titancore/internal/db"
	"titancore/internal/gateway"
	"titancore/internal/middleware"
)

// Server is the account-creation and admin HTTP surface. It never touches
// the logon protocol directly; it shares the same account repository and
// connection pool the gateway uses underneath.
type Server struct {
	accounts               *account.Repository
	pool                   *db.ConnectionPool
	migrator               *db.Migrator
	registry               *gateway.ConnectionRegistry
	operatorCredentialHash string

	router *chi.Mux
	http   *http.Server
}

// Config bundles the dependencies the HTTP surface is built from.
type Config struct {
	Accounts               *account.Repository
	Pool                   *db.ConnectionPool
	Migrator               *db.Migrator
	Registry               *gateway.ConnectionRegistry
	OperatorCredentialHash string
}

// NewServer wires the router and returns a Server ready to Run.
func NewServer(addr string, cfg Config) *Server {
	s := &Server{
		accounts:               cfg.Accounts,
		pool:                   cfg.Pool,
		migrator:               cfg.Migrator,
		registry:               cfg.Registry,
		operatorCredentialHash: cfg.OperatorCredentialHash,
	}
	s.router = s.buildRouter()
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(middleware.LimitAccountCreation)
		r.Post("/accounts", s.handleCreateAccount)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.LimitAdmin)
		r.Use(s.requireOperator)
		r.Get("/admin/pool-stats", s.handlePoolStats)
		r.Get("/admin/migrations", s.handleMigrations)
	})

	return r
}

// Run starts serving until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("account service listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// requireOperator gates admin endpoints behind a single shared operator
// credential, checked with bcrypt so the configured hash never needs to
// leave this process as plaintext.
func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.operatorCredentialHash == "" {
			writeError(w, apperr.New(apperr.ErrValidation, "operator credential is not configured"))
			return
		}

		_, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(s.operatorCredentialHash), []byte(password)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	RegMail  string `json:"reg_mail"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("malformed request body"))
		return
	}

	if len(req.Username) == 0 || len(req.Username) > account.MaxUsernameLength {
		writeError(w, apperr.Validation("username must be 1-16 characters"))
		return
	}
	if len(req.Password) == 0 || len(req.Password) > account.MaxPasswordLength {
		writeError(w, apperr.Validation("password must be 1-16 characters"))
		return
	}

	salt, err := crypto.RandomSalt()
	if err != nil {
		writeError(w, apperr.New(apperr.ErrPanic, "failed to generate salt"))
		return
	}
	verifier := crypto.CalculatePasswordVerifier(req.Username, req.Password, salt)

	acct, err := s.accounts.Create(r.Context(), req.Username, req.Email, req.RegMail, salt, verifier)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       acct.ID,
		"username": acct.Username,
		"joined":   humanize.Time(acct.JoinDate),
	})
}

func (s *Server) handlePoolStats(w http.ResponseWriter, r *http.Request) {
	stats := s.pool.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"active":      humanize.Comma(int64(stats.Active)),
		"idle":        humanize.Comma(int64(stats.Idle)),
		"total":       humanize.Comma(int64(stats.Total)),
		"waiting":     humanize.Comma(int64(stats.Waiting)),
		"connections": humanize.Comma(int64(s.registry.Count())),
	})
}

func (s *Server) handleMigrations(w http.ResponseWriter, r *http.Request) {
	pending, err := s.migrator.Pending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(pending))
	for _, m := range pending {
		out = append(out, map[string]any{
			"version": m.Version,
			"name":    m.Name,
		})
	}

	current, err := s.migrator.CurrentVersion(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"current_version": current,
		"pending":         out,
		"pending_count":   humanize.Comma(int64(len(pending))),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
