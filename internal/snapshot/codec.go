// Package snapshot stores the ledger's full account set, either in a file that
// is replaced atomically or in a single Postgres row.
package snapshot

import (
	"encoding/json"
	"time"

	"github.com/baely/tab/internal/common/errors"
	"github.com/baely/tab/internal/ledger"
)

// formatVersion is bumped when the document layout changes incompatibly
const formatVersion = 1

// ErrCorrupt is returned when a stored snapshot cannot be decoded
var ErrCorrupt = errors.New("snapshot corrupt")

type document struct {
	Version  int                  `json:"version"`
	SavedAt  time.Time            `json:"saved_at"`
	Accounts []ledger.AccountView `json:"accounts"`
}

// Encode serialises accounts. Balances are written as decimal strings so
// they round-trip exactly, and history order is kept.
func Encode(accounts []ledger.AccountView, savedAt time.Time) ([]byte, error) {
	if accounts == nil {
		accounts = []ledger.AccountView{}
	}
	return json.MarshalIndent(document{
		Version:  formatVersion,
		SavedAt:  savedAt.UTC(),
		Accounts: accounts,
	}, "", "  ")
}

// Decode parses a snapshot produced by Encode
func Decode(data []byte) ([]ledger.AccountView, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(ErrCorrupt, "%v", err)
	}
	if doc.Version != formatVersion {
		return nil, errors.Wrap(ErrCorrupt, "unsupported version %d", doc.Version)
	}
	for i := range doc.Accounts {
		if doc.Accounts[i].History == nil {
			doc.Accounts[i].History = []string{}
		}
	}
	return doc.Accounts, nil
}
