package stand

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/baely/tab/internal/balance"
	"github.com/baely/tab/internal/common/errors"
	"github.com/baely/tab/internal/ledger"
)

// Deposits tops up accounts from incoming bank transfers. A newly created
// transfer whose description is an account's nickname credits that account
// once, however often Up delivers it.
type Deposits struct {
	ledger    *ledger.Ledger
	accountID string
	timeout   time.Duration
	logger    *slog.Logger
}

// DepositsConfig contains configuration for Deposits
type DepositsConfig struct {
	// UpAccountID restricts deposits to one Up account when set
	UpAccountID string
	Timeout     time.Duration
	Logger      *slog.Logger
}

// DefaultDepositsConfig returns the default deposits configuration
func DefaultDepositsConfig() *DepositsConfig {
	return &DepositsConfig{
		UpAccountID: os.Getenv("UP_ACCOUNT_ID"),
		Timeout:     10 * time.Second,
		Logger:      slog.Default(),
	}
}

// NewDeposits creates a deposit handler crediting l
func NewDeposits(l *ledger.Ledger, cfg *DepositsConfig) *Deposits {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Deposits{
		ledger:    l,
		accountID: strings.TrimSpace(cfg.UpAccountID),
		timeout:   timeout,
		logger:    cfg.Logger,
	}
}

// HandleEvent processes transaction events from the webhook service
// It implements the balance.TransactionEventHandler interface
func (d *Deposits) HandleEvent(event balance.TransactionEvent) error {
	tx := event.Transaction
	if event.Type != balance.EventTransactionCreated {
		d.logger.Debug("Ignoring transaction event", "type", event.Type, "id", tx.Id)
		return nil
	}
	if tx.Id == "" {
		d.logger.Warn("Ignoring transaction without id", "description", tx.Attributes.Description)
		return nil
	}

	accountID := tx.Relationships.Account.Data.Id
	if d.accountID != "" && accountID != d.accountID {
		d.logger.Debug("Ignoring transaction on another account", "account", accountID)
		return nil
	}

	cents := tx.Attributes.Amount.ValueInBaseUnits
	if cents <= 0 {
		d.logger.Debug("Ignoring outgoing transaction", "description", tx.Attributes.Description)
		return nil
	}

	nick := strings.TrimSpace(tx.Attributes.Description)
	if !d.ledger.HasAccount(nick) {
		d.logger.Info("Deposit does not name an account", "description", tx.Attributes.Description,
			"amount", tx.Attributes.Amount.Value)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	amount := decimal.New(int64(cents), -2)
	err := d.ledger.Deposit(ctx, nick, tx.Id, amount).Err()
	switch {
	case errors.Is(err, ledger.ErrDuplicateDeposit):
		d.logger.Info("Deposit already credited", "nick", nick, "id", tx.Id)
		return nil
	case err != nil:
		return errors.Wrap(err, "failed to credit deposit to %s", nick)
	}
	d.logger.Info("Deposit credited", "nick", nick, "id", tx.Id, "amount", amount.StringFixed(2))
	return nil
}
