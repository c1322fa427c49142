package ledger

import (
	"fmt"

	"github.com/baely/tab/internal/common/errors"
)

// Kind identifies a business rule failure
type Kind int

const (
	KindInvalidNickname Kind = iota + 1
	KindAccountExists
	KindNoSuchAccount
	KindNoSuchBeverage
	KindInvalidAmount
	KindInsufficientBalance
	KindDuplicateDeposit
)

var kindNames = map[Kind]string{
	KindInvalidNickname:     "InvalidNickname",
	KindAccountExists:       "AccountExists",
	KindNoSuchAccount:       "NoSuchAccount",
	KindNoSuchBeverage:      "NoSuchBeverage",
	KindInvalidAmount:       "InvalidAmount",
	KindInsufficientBalance: "InsufficientBalance",
	KindDuplicateDeposit:    "DuplicateDeposit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Failure is a user-facing business rule violation. Two failures match under
// errors.Is when their kinds are equal, whatever their messages say.
type Failure struct {
	Kind    Kind
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// Is matches failures of the same kind
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Kind == f.Kind
}

// Unwrap exposes the error category used by transports
func (f *Failure) Unwrap() error {
	switch f.Kind {
	case KindNoSuchAccount:
		return errors.ErrNotFound
	case KindAccountExists, KindDuplicateDeposit:
		return errors.ErrAlreadyExists
	default:
		return errors.ErrInvalidInput
	}
}

// Sentinel failures for errors.Is
var (
	ErrInvalidNickname     = &Failure{Kind: KindInvalidNickname, Message: "invalid nickname"}
	ErrAccountExists       = &Failure{Kind: KindAccountExists, Message: "account already exists"}
	ErrNoSuchAccount       = &Failure{Kind: KindNoSuchAccount, Message: "account does not exist"}
	ErrNoSuchBeverage      = &Failure{Kind: KindNoSuchBeverage, Message: "unknown beverage"}
	ErrInvalidAmount       = &Failure{Kind: KindInvalidAmount, Message: "invalid amount"}
	ErrInsufficientBalance = &Failure{Kind: KindInsufficientBalance, Message: "insufficient balance"}
	ErrDuplicateDeposit    = &Failure{Kind: KindDuplicateDeposit, Message: "deposit already credited"}
)

func failf(kind Kind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsFailure reports whether err is a business rule failure rather than a fault
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}
