// Package api serves health, metrics, status and the blacklist lookup over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/observability"
)

const shutdownTimeout = 5 * time.Second

// Blacklister answers wallet blacklist lookups. *admin.Service satisfies it.
type Blacklister interface {
	IsBlacklisted(ctx context.Context, wallet string, chain domain.Chain) (bool, error)
}

// TokenView exposes the active token snapshot. *adapter.TokenSnapshot satisfies it.
type TokenView interface {
	Chain(c domain.Chain) []*domain.TrackedToken
}

// Options configures a Server.
type Options struct {
	Blacklist Blacklister
	Tokens    TokenView // optional
	Logger    *zerolog.Logger
}

// Server is the HTTP surface of the bot.
type Server struct {
	blacklist Blacklister
	tokens    TokenView
	started   time.Time
	logger    zerolog.Logger
	now       func() time.Time
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	s := &Server{
		blacklist: opts.Blacklist,
		tokens:    opts.Tokens,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	s.started = s.now()
	if opts.Logger != nil {
		s.logger = opts.Logger.With().Str("component", "api").Logger()
	}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/v1/blacklist", s.handleBlacklist)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status       string               `json:"status"`
	Uptime       string               `json:"uptime"`
	Started      time.Time            `json:"started"`
	ActiveTokens map[domain.Chain]int `json:"active_tokens,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:  "running",
		Uptime:  s.now().Sub(s.started).Truncate(time.Second).String(),
		Started: s.started.UTC(),
	}
	if s.tokens != nil {
		resp.ActiveTokens = make(map[domain.Chain]int)
		for _, c := range append([]domain.Chain{domain.ChainSolana}, domain.EVMChains...) {
			resp.ActiveTokens[c] = len(s.tokens.Chain(c))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// BlacklistResponse is the JSON response for /v1/blacklist.
type BlacklistResponse struct {
	Chain       domain.Chain `json:"chain"`
	Wallet      string       `json:"wallet"`
	Blacklisted bool         `json:"blacklisted"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleBlacklist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	chain, err := domain.ParseChain(r.URL.Query().Get("chain"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	wallet := strings.TrimSpace(r.URL.Query().Get("wallet"))
	if wallet == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "wallet is required"})
		return
	}

	hit, err := s.blacklist.IsBlacklisted(r.Context(), wallet, chain)
	if err != nil {
		s.logger.Error().Err(err).Str("chain", string(chain)).Str("wallet", wallet).Msg("blacklist lookup failed")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, BlacklistResponse{Chain: chain, Wallet: wallet, Blacklisted: hit})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
