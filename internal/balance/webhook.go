package balance

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/baely/balance/pkg/model"
	"github.com/go-chi/chi/v5"

	"github.com/baely/tab/internal/common/errors"
	commonHttp "github.com/baely/tab/internal/common/http"
)

// maxWebhookBody caps the webhook payload Up may send
const maxWebhookBody = 64 << 10

// WebhookService handles webhook events from Up Banking
type WebhookService struct {
	upClient            *UpClient
	rawChan             chan []byte
	router              chi.Router
	mu                  sync.RWMutex
	transactionHandlers []TransactionEventHandler
	secret              string
	fetchTimeout        time.Duration
	logger              *slog.Logger
	stop                context.CancelFunc
	done                chan struct{}
}

// Config contains configuration for the WebhookService
type Config struct {
	UpAccessToken string
	WebhookSecret string
	BaseURI       string
	QueueSize     int
	FetchTimeout  time.Duration
	Logger        *slog.Logger
}

// DefaultConfig returns the default service configuration
func DefaultConfig() *Config {
	return &Config{
		UpAccessToken: os.Getenv("UP_ACCESS_TOKEN"),
		WebhookSecret: os.Getenv("UP_WEBHOOK_SECRET"),
		BaseURI:       DefaultUpBaseURI,
		QueueSize:     100,
		FetchTimeout:  30 * time.Second,
		Logger:        slog.Default(),
	}
}

// Enabled reports whether the service can fetch transactions at all
func (c *Config) Enabled() bool {
	return c.UpAccessToken != ""
}

// NewWithConfig creates a new WebhookService with custom configuration and
// starts its event worker. Stop it with Close.
func NewWithConfig(cfg *Config) *WebhookService {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}

	ctx, stop := context.WithCancel(context.Background())
	service := &WebhookService{
		upClient:     NewUpClient(cfg.BaseURI, cfg.UpAccessToken),
		rawChan:      make(chan []byte, queueSize),
		secret:       cfg.WebhookSecret,
		fetchTimeout: fetchTimeout,
		logger:       cfg.Logger,
		stop:         stop,
		done:         make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Post("/up/event", service.handleWebhook)
	service.router = r

	go service.processEvents(ctx)

	return service
}

// Chi returns the router for this service
func (s *WebhookService) Chi() chi.Router {
	return s.router
}

// RegisterHandler registers a handler for transaction events
func (s *WebhookService) RegisterHandler(handler TransactionEventHandler) {
	s.logger.Info("Registering transaction handler", "handler", handler)
	s.mu.Lock()
	s.transactionHandlers = append(s.transactionHandlers, handler)
	s.mu.Unlock()
}

// Close stops the event worker. Queued events that were not started are dropped.
func (s *WebhookService) Close() {
	s.stop()
	<-s.done
}

// handleWebhook verifies and queues incoming webhook requests
func (s *WebhookService) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		s.logger.Error("Failed to read request body", "error", err)
		commonHttp.Error(w, errors.Wrap(errors.ErrInvalidInput, "failed to read request body"), http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Up-Authenticity-Signature")
	if !ValidateWebhookEvent(body, signature, s.secret) {
		s.logger.Warn("Invalid webhook signature", "signature", signature)
		commonHttp.Error(w, errors.ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	select {
	case s.rawChan <- body:
	default:
		s.logger.Error("Webhook queue full, rejecting event")
		commonHttp.Error(w, errors.New("event queue full"), http.StatusServiceUnavailable)
		return
	}

	commonHttp.JSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// processEvents handles queued events one at a time until ctx is cancelled
func (s *WebhookService) processEvents(ctx context.Context) {
	defer close(s.done)

	s.logger.Info("Starting webhook event processor")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping webhook event processor", "pending", len(s.rawChan))
			return
		case raw := <-s.rawChan:
			s.processEvent(ctx, raw)
		}
	}
}

// processEvent handles a single event
func (s *WebhookService) processEvent(ctx context.Context, raw []byte) {
	event, err := parseEvent(raw)
	if err != nil {
		s.logger.Error("Failed to parse webhook event", "error", err)
		return
	}
	eventType := parseEventType(raw)
	s.logger.Info("Processing event", "type", event.Data.Type, "event_type", eventType, "id", event.Data.Id)

	eventTransaction := event.Data.Relationships.Transaction
	if eventTransaction == nil {
		s.logger.Info("Event contains no transaction details", "id", event.Data.Id)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	transaction, err := s.upClient.GetTransaction(ctx, eventTransaction.Data.Id)
	if err != nil {
		s.logger.Error("Failed to retrieve transaction", "id", eventTransaction.Data.Id, "error", err)
		return
	}

	accountID := transaction.Relationships.Account.Data.Id
	account, err := s.upClient.GetAccount(ctx, accountID)
	if err != nil {
		s.logger.Error("Failed to retrieve account", "id", accountID, "error", err)
		return
	}

	data := TransactionEvent{
		Type:        eventType,
		Account:     account,
		Transaction: transaction,
	}

	s.mu.RLock()
	handlers := append([]TransactionEventHandler(nil), s.transactionHandlers...)
	s.mu.RUnlock()

	for _, h := range handlers {
		if err := h.HandleEvent(data); err != nil {
			s.logger.Error("Handler failed to process event", "handler", h, "error", err)
		}
	}
}

// parseEvent converts JSON data to a webhook event
func parseEvent(value []byte) (model.WebhookEventCallback, error) {
	event := model.WebhookEventCallback{}
	if err := json.Unmarshal(value, &event); err != nil {
		return event, errors.Wrap(err, "invalid webhook payload")
	}
	return event, nil
}

// parseEventType reads data.attributes.eventType from a webhook payload
func parseEventType(value []byte) string {
	var envelope struct {
		Data struct {
			Attributes struct {
				EventType string `json:"eventType"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(value, &envelope); err != nil {
		return ""
	}
	return envelope.Data.Attributes.EventType
}
