// Package stand is the HTTP face of the beverage stand: account and beverage
// routes, the live account stream and bank deposit intake
package stand

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baely/tab/internal/common/errors"
	commonHttp "github.com/baely/tab/internal/common/http"
	"github.com/baely/tab/internal/common/logger"
	"github.com/baely/tab/internal/hub"
	"github.com/baely/tab/internal/ledger"
)

// maxBody caps request bodies; every body is a nick, a beverage name or an amount
const maxBody = 1 << 10

// Service serves the stand's routes
type Service struct {
	ledger    *ledger.Ledger
	hub       *hub.Hub[[]ledger.Summary]
	router    chi.Router
	heartbeat time.Duration
	logger    *slog.Logger
}

// Config contains configuration for the Service
type Config struct {
	Heartbeat time.Duration
	Logger    *slog.Logger
}

// DefaultConfig returns the default service configuration
func DefaultConfig() *Config {
	return &Config{
		Heartbeat: 15 * time.Second,
		Logger:    slog.Default(),
	}
}

// NewWithConfig creates a Service serving l and streaming from h
func NewWithConfig(l *ledger.Ledger, h *hub.Hub[[]ledger.Summary], cfg *Config) *Service {
	s := &Service{
		ledger:    l,
		hub:       h,
		heartbeat: cfg.Heartbeat,
		logger:    cfg.Logger,
	}

	r := commonHttp.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/beverages", s.handleListBeverages)
	r.Get("/stream", s.handleStream)

	r.Route("/account", func(r chi.Router) {
		r.Get("/", s.handleListAccounts)
		r.Post("/", s.handleCreateAccount)
		r.Get("/{nick}", s.handleGetAccount)
		r.Put("/{nick}/drink", s.handleDrink)
		r.Put("/{nick}/topup", s.handleTopup)
	})

	s.router = r
	return s
}

// Chi returns the router for this service
func (s *Service) Chi() chi.Router {
	return s.router
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	commonHttp.Text(w, http.StatusOK, "ok")
}

func (s *Service) handleListBeverages(w http.ResponseWriter, r *http.Request) {
	commonHttp.JSON(w, http.StatusOK, toBeverages(s.ledger.ListBeverages()))
}

func (s *Service) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	commonHttp.JSON(w, http.StatusOK, toSummaries(s.ledger.ListAccounts()))
}

func (s *Service) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	nick, err := readText(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	account, err := s.ledger.CreateAccount(r.Context(), nick).Get()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	commonHttp.JSON(w, http.StatusCreated, summaryResponse{Nick: account.Nick, Balance: account.Balance.StringFixed(2)})
}

func (s *Service) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.ledger.GetAccount(chi.URLParam(r, "nick")).Get()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	commonHttp.JSON(w, http.StatusOK, toAccount(account))
}

func (s *Service) handleDrink(w http.ResponseWriter, r *http.Request) {
	beverage, err := readText(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.ledger.Drink(r.Context(), chi.URLParam(r, "nick"), beverage).Err(); err != nil {
		s.fail(w, r, err)
		return
	}
	commonHttp.Ack(w)
}

func (s *Service) handleTopup(w http.ResponseWriter, r *http.Request) {
	text, err := readText(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := ledger.ParseAmount(text)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.ledger.Topup(r.Context(), chi.URLParam(r, "nick"), amount).Err(); err != nil {
		s.fail(w, r, err)
		return
	}
	commonHttp.Ack(w)
}

func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.WithContext(r.Context(), s.logger)
	if commonHttp.StatusCode(err) == http.StatusInternalServerError {
		log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		log.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	commonHttp.HandleError(w, err)
}

// readText returns the trimmed request body
func readText(w http.ResponseWriter, r *http.Request) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		return "", errors.Wrap(errors.ErrInvalidInput, "failed to read request body: %v", err)
	}
	return strings.TrimSpace(string(body)), nil
}
