// Package ledger owns the beverage stand's accounts.
//
// Every mutating operation runs under one lock: the change is staged on a copy
// of the account, the whole account set is written to the Store, and only then
// is the copy committed and the new account list handed to the Notifier. A
// failed save leaves both memory and the previous snapshot untouched.
package ledger

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/baely/tab/internal/catalog"
	"github.com/baely/tab/internal/common/errors"
	"github.com/baely/tab/internal/outcome"
)

// Store persists the complete account set
type Store interface {
	Load(ctx context.Context) ([]AccountView, error)
	Save(ctx context.Context, accounts []AccountView) error
}

// Notifier receives the account list after every change
type Notifier interface {
	Publish(accounts []Summary)
}

// Ledger is the authoritative set of accounts
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	catalog  *catalog.Catalog
	store    Store
	notifier Notifier
	logger   *slog.Logger
}

// Option configures a Ledger
type Option func(*Ledger)

// WithLogger sets the logger used for change and restore messages
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New restores the ledger from store and publishes the initial account list.
// A snapshot that cannot be loaded is logged and the ledger starts empty.
func New(ctx context.Context, cat *catalog.Catalog, store Store, notifier Notifier, opts ...Option) *Ledger {
	l := &Ledger{
		accounts: make(map[string]*Account),
		catalog:  cat,
		store:    store,
		notifier: notifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.restore(ctx)

	l.mu.RLock()
	l.notifier.Publish(l.summariesLocked())
	l.mu.RUnlock()

	return l
}

func (l *Ledger) restore(ctx context.Context) {
	views, err := l.store.Load(ctx)
	if err != nil {
		l.logger.Error("Failed to restore snapshot, starting with an empty ledger", "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, v := range views {
		switch {
		case v.Nick == "":
			l.logger.Warn("Skipping snapshot account without nickname")
			continue
		case v.Balance.IsNegative():
			l.logger.Error("Skipping snapshot account with negative balance", "nick", v.Nick, "balance", v.Balance.String())
			continue
		case !ValidNickname(v.Nick):
			l.logger.Warn("Restoring account with a nickname new accounts may not use", "nick", v.Nick)
		}
		if _, ok := l.accounts[v.Nick]; ok {
			l.logger.Warn("Skipping duplicate snapshot account", "nick", v.Nick)
			continue
		}
		l.accounts[v.Nick] = restoreAccount(v)
	}

	l.logger.Info("Ledger restored", "accounts", len(l.accounts))
}

// CreateAccount opens a zero balance account
func (l *Ledger) CreateAccount(ctx context.Context, nick string) outcome.Outcome[AccountView] {
	if !ValidNickname(nick) {
		return outcome.Failure[AccountView](failf(KindInvalidNickname,
			"invalid nickname %q: use 3 to 20 letters, digits or underscores", nick))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[nick]; ok {
		return outcome.Failure[AccountView](failf(KindAccountExists, "account %q already exists", nick))
	}

	account := newAccount(nick)
	if err := l.commitLocked(ctx, account, fmt.Sprintf("Account %s created", nick)); err != nil {
		return outcome.Failure[AccountView](err)
	}
	return outcome.Success(account.View())
}

// Drink charges nick the price of the named beverage
func (l *Ledger) Drink(ctx context.Context, nick, beverageName string) outcome.Outcome[AccountView] {
	l.mu.Lock()
	defer l.mu.Unlock()

	account, ok := l.accounts[nick]
	if !ok {
		return outcome.Failure[AccountView](noSuchAccount(nick))
	}
	beverage, ok := l.catalog.Lookup(beverageName)
	if !ok {
		return outcome.Failure[AccountView](failf(KindNoSuchBeverage, "unknown beverage %q", beverageName))
	}

	return outcome.Chain(account.clone().Debit(beverage.Name, beverage.Price), func(next *Account) outcome.Outcome[AccountView] {
		if err := l.commitLocked(ctx, next, fmt.Sprintf("%s drank %s", next, beverage)); err != nil {
			return outcome.Failure[AccountView](err)
		}
		return outcome.Success(next.View())
	})
}

// Topup credits nick with amount
func (l *Ledger) Topup(ctx context.Context, nick string, amount decimal.Decimal) outcome.Outcome[AccountView] {
	l.mu.Lock()
	defer l.mu.Unlock()

	account, ok := l.accounts[nick]
	if !ok {
		return outcome.Failure[AccountView](noSuchAccount(nick))
	}

	return outcome.Chain(account.clone().Credit(amount), func(next *Account) outcome.Outcome[AccountView] {
		if err := l.commitLocked(ctx, next, fmt.Sprintf("%s topped up by %s", next, amount.StringFixed(2))); err != nil {
			return outcome.Failure[AccountView](err)
		}
		return outcome.Success(next.View())
	})
}

// Deposit credits nick with amount for the bank transaction ref. Crediting the
// same ref twice fails with KindDuplicateDeposit and changes nothing.
func (l *Ledger) Deposit(ctx context.Context, nick, ref string, amount decimal.Decimal) outcome.Outcome[AccountView] {
	l.mu.Lock()
	defer l.mu.Unlock()

	account, ok := l.accounts[nick]
	if !ok {
		return outcome.Failure[AccountView](noSuchAccount(nick))
	}

	return outcome.Chain(account.clone().Deposit(ref, amount), func(next *Account) outcome.Outcome[AccountView] {
		if err := l.commitLocked(ctx, next, fmt.Sprintf("%s deposited %s", next, amount.StringFixed(2))); err != nil {
			return outcome.Failure[AccountView](err)
		}
		return outcome.Success(next.View())
	})
}

// GetAccount returns a copy of nick's account including its history
func (l *Ledger) GetAccount(nick string) outcome.Outcome[AccountView] {
	l.mu.RLock()
	defer l.mu.RUnlock()

	account, ok := l.accounts[nick]
	if !ok {
		return outcome.Failure[AccountView](noSuchAccount(nick))
	}
	return outcome.Success(account.View())
}

// ListAccounts returns every account without history, ordered by nickname
func (l *Ledger) ListAccounts() []Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.summariesLocked()
}

// ListBeverages returns the catalog
func (l *Ledger) ListBeverages() []catalog.Beverage {
	return l.catalog.List()
}

// HasAccount reports whether nick has an account
func (l *Ledger) HasAccount(nick string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.accounts[nick]
	return ok
}

// commitLocked persists the account set with next in place, then installs
// next and notifies. Caller must hold the write lock.
func (l *Ledger) commitLocked(ctx context.Context, next *Account, change string) error {
	views := make([]AccountView, 0, len(l.accounts)+1)
	for nick, account := range l.accounts {
		if nick != next.nick {
			views = append(views, account.View())
		}
	}
	views = append(views, next.View())
	slices.SortFunc(views, func(a, b AccountView) int { return cmp.Compare(a.Nick, b.Nick) })

	if err := l.store.Save(ctx, views); err != nil {
		l.logger.Error("Failed to save snapshot, change discarded", "nick", next.nick, "error", err)
		return errors.Internal(errors.Wrap(err, "failed to save snapshot"))
	}

	l.accounts[next.nick] = next
	l.notifier.Publish(l.summariesLocked())
	l.logger.Info(change, "nick", next.nick, "balance", next.balance.StringFixed(2))
	return nil
}

func (l *Ledger) summariesLocked() []Summary {
	out := make([]Summary, 0, len(l.accounts))
	for _, account := range l.accounts {
		out = append(out, account.Summary())
	}
	slices.SortFunc(out, func(a, b Summary) int { return cmp.Compare(a.Nick, b.Nick) })
	return out
}

func noSuchAccount(nick string) *Failure {
	return failf(KindNoSuchAccount, "account %q does not exist", nick)
}
