package ledger

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/baely/tab/internal/outcome"
)

// maxDepositRefs bounds how many bank transaction ids an account remembers
const maxDepositRefs = 256

// Account is one user's balance and the log of what they did with it.
// The balance never goes below zero and every successful Debit or Credit
// appends exactly one history entry.
type Account struct {
	nick     string
	balance  decimal.Decimal
	history  []string
	deposits []string
}

// AccountView is a read-only copy of an account. Deposits holds the most
// recently credited bank transaction ids, oldest first.
type AccountView struct {
	Nick     string          `json:"nick"`
	Balance  decimal.Decimal `json:"balance"`
	History  []string        `json:"history"`
	Deposits []string        `json:"deposits,omitempty"`
}

// Summary is the public per-account line of the account list
type Summary struct {
	Nick    string          `json:"nick"`
	Balance decimal.Decimal `json:"balance"`
}

func newAccount(nick string) *Account {
	return &Account{nick: nick, balance: decimal.Zero, history: []string{}}
}

func restoreAccount(v AccountView) *Account {
	deposits := slices.Clone(v.Deposits)
	if over := len(deposits) - maxDepositRefs; over > 0 {
		deposits = deposits[over:]
	}
	return &Account{nick: v.Nick, balance: v.Balance, history: slices.Clone(v.History), deposits: deposits}
}

func (a *Account) Nick() string { return a.nick }

func (a *Account) Balance() decimal.Decimal { return a.balance }

// History returns a copy of the action log, oldest first
func (a *Account) History() []string {
	return slices.Clone(a.history)
}

func (a *Account) View() AccountView {
	return AccountView{Nick: a.nick, Balance: a.balance, History: a.History(), Deposits: slices.Clone(a.deposits)}
}

func (a *Account) Summary() Summary {
	return Summary{Nick: a.nick, Balance: a.balance}
}

func (a *Account) String() string {
	return fmt.Sprintf("Account(nick=%s, balance=%s)", a.nick, a.balance.StringFixed(2))
}

func (a *Account) clone() *Account {
	return &Account{
		nick:     a.nick,
		balance:  a.balance,
		history:  slices.Clone(a.history),
		deposits: slices.Clone(a.deposits),
	}
}

// Debit takes amount for item if the balance covers it
func (a *Account) Debit(item string, amount decimal.Decimal) outcome.Outcome[*Account] {
	if amount.IsNegative() {
		return outcome.Failure[*Account](failf(KindInvalidAmount, "amount must be non-negative"))
	}
	if a.balance.LessThan(amount) {
		return outcome.Failure[*Account](failf(KindInsufficientBalance,
			"insufficient balance to drink %s: have %s, need %s", item, a.balance.StringFixed(2), amount.StringFixed(2)))
	}
	a.balance = a.balance.Sub(amount)
	a.history = append(a.history, fmt.Sprintf("drank %s (%s)", item, amount.StringFixed(2)))
	return outcome.Success(a)
}

// Credit adds a non-negative amount
func (a *Account) Credit(amount decimal.Decimal) outcome.Outcome[*Account] {
	if amount.IsNegative() {
		return outcome.Failure[*Account](failf(KindInvalidAmount, "amount must be non-negative"))
	}
	a.balance = a.balance.Add(amount)
	a.history = append(a.history, fmt.Sprintf("topped up %s", amount.StringFixed(2)))
	return outcome.Success(a)
}

// Deposit credits amount for the bank transaction ref once. A ref already in
// the remembered window fails with KindDuplicateDeposit.
func (a *Account) Deposit(ref string, amount decimal.Decimal) outcome.Outcome[*Account] {
	if slices.Contains(a.deposits, ref) {
		return outcome.Failure[*Account](failf(KindDuplicateDeposit, "deposit %s already credited to %s", ref, a.nick))
	}
	return outcome.Map(a.Credit(amount), func(a *Account) *Account {
		a.deposits = append(a.deposits, ref)
		if over := len(a.deposits) - maxDepositRefs; over > 0 {
			a.deposits = slices.Delete(a.deposits, 0, over)
		}
		return a
	})
}
